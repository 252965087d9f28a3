// Command loadtest измеряет задержку доставки смены статуса наблюдателям:
// заказы создаются через HTTP API, наблюдатели подключаются по gRPC WatchOrder,
// администратор меняет статус, а отчёт показывает, за сколько событие дошло до каждого.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/transport/grpcapi"
)

const (
	methodPlace    = "PlaceOrder"
	methodStatus   = "ChangeStatus"
	methodWatch    = "WatchOrder"
	methodDelivery = "Delivery"
	methodScenario = "scenario"
)

type loadMode string

const (
	modePlace     loadMode = "place"
	modeWatch     loadMode = "watch"
	modeLifecycle loadMode = "lifecycle"
)

// lifecycleStatuses — цепочка, которую проходит заказ в режиме lifecycle.
var lifecycleStatuses = []domain.OrderStatus{
	domain.OrderStatusConfirmed,
	domain.OrderStatusPreparing,
	domain.OrderStatusOutForDelivery,
	domain.OrderStatusDelivered,
}

type config struct {
	httpURL     string
	grpcAddr    string
	token       string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	watchers    int
	timeout     time.Duration
	mode        loadMode
	itemName    string
	priceMinor  int64
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	if err == nil {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[resultCode(err)]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenarioStats := c.methods[methodScenario]; scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

// httpStatusError описывает ответ HTTP API с неожиданным кодом.
type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d: %s", e.code, e.body)
}

func resultCode(err error) string {
	var httpErr *httpStatusError
	switch {
	case err == nil:
		return codes.OK.String()
	case errors.As(err, &httpErr):
		return fmt.Sprintf("HTTP_%d", httpErr.code)
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded.String()
	default:
		return status.Code(err).String()
	}
}

func parseConfig(args []string, lookup func(string) string) (config, error) {
	var (
		cfg           config
		modeValue     string
		timeoutValue  string
		durationValue string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.httpURL, "http", "http://localhost:8000", "HTTP API base URL")
	fs.StringVar(&cfg.grpcAddr, "grpc", "localhost:50051", "gRPC target address")
	fs.StringVar(&cfg.token, "token", lookup("YB_TOKEN"), "admin bearer token for status changes (default: YB_TOKEN)")
	fs.IntVar(&cfg.total, "total", 200, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 10, "number of gRPC client connections")
	fs.IntVar(&cfg.watchers, "watchers", 5, "observers attached to every order")
	fs.StringVar(&timeoutValue, "timeout", "5s", "per-call and per-delivery timeout")
	fs.StringVar(&modeValue, "mode", string(modeWatch), "load mode: place | watch | lifecycle")
	fs.StringVar(&cfg.itemName, "item", "Masala Dosa", "menu item name used for orders")
	fs.Int64Var(&cfg.priceMinor, "price-minor", 12000, "item price in paise")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.httpURL = strings.TrimRight(strings.TrimSpace(cfg.httpURL), "/")

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.priceMinor <= 0 {
		return cfg, errors.New("price-minor must be > 0")
	}
	if !strings.HasPrefix(cfg.httpURL, "http://") && !strings.HasPrefix(cfg.httpURL, "https://") {
		return cfg, errors.New("http must be an http(s) URL")
	}
	if strings.TrimSpace(cfg.itemName) == "" {
		return cfg, errors.New("item is required")
	}
	if cfg.mode != modePlace {
		if cfg.watchers <= 0 {
			return cfg, errors.New("watchers must be > 0")
		}
		if strings.TrimSpace(cfg.token) == "" {
			return cfg, errors.New("token is required to change statuses (-token or YB_TOKEN)")
		}
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePlace:
		return modePlace, nil
	case modeWatch:
		return modeWatch, nil
	case modeLifecycle:
		return modeLifecycle, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// orderAPI покрывает HTTP-часть сценария.
type orderAPI interface {
	PlaceOrder(ctx context.Context, itemName string, priceMinor int64) (string, error)
	ChangeStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}

// watchAPI открывает gRPC-подписку на заказ.
type watchAPI interface {
	WatchOrder(ctx context.Context, orderID string, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type httpOrderAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

func (a *httpOrderAPI) PlaceOrder(ctx context.Context, itemName string, priceMinor int64) (string, error) {
	price := decimal.New(priceMinor, -2)
	body, err := json.Marshal(map[string]any{
		"items": []map[string]any{{"name": itemName, "price": price, "quantity": 1}},
		"total": price,
	})
	if err != nil {
		return "", err
	}

	var placed struct {
		OrderID string `json:"order_id"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/v1/order/place", body, "", &placed); err != nil {
		return "", err
	}
	if placed.OrderID == "" {
		return "", errors.New("place response returned empty order id")
	}
	return placed.OrderID, nil
}

func (a *httpOrderAPI) ChangeStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return err
	}
	return a.do(ctx, http.MethodPatch, "/api/v1/order/"+orderID+"/status", body, a.token, nil)
}

func (a *httpOrderAPI) do(ctx context.Context, method, path string, body []byte, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpStatusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	api := &httpOrderAPI{baseURL: cfg.httpURL, token: cfg.token, client: &http.Client{Timeout: cfg.timeout}}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]watchAPI, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcapi.NewClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result := runLoad(cfg, api, clients)

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func runLoad(cfg config, api orderAPI, clients []watchAPI) report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for range jobs {
				if err := runScenario(cfg, api, clients, offset, col); err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(workerID)
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}
	return result
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario создаёт заказ, подключает наблюдателей и проводит заказ по статусам.
// Наблюдатели распределяются по gRPC-соединениям начиная с offset.
func runScenario(cfg config, api orderAPI, clients []watchAPI, offset int, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		col.record(methodScenario, time.Since(scenarioStart), err)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout*time.Duration(2+len(lifecycleStatuses)))
	defer cancel()

	start := time.Now()
	orderID, err := api.PlaceOrder(ctx, cfg.itemName, cfg.priceMinor)
	col.record(methodPlace, time.Since(start), err)
	if err != nil || cfg.mode == modePlace {
		return err
	}

	statuses := lifecycleStatuses[:1]
	if cfg.mode == modeLifecycle {
		statuses = lifecycleStatuses
	}

	streams, err := openWatchers(ctx, clients, offset, cfg.watchers, orderID, col)
	if err != nil {
		return err
	}

	for _, next := range statuses {
		changedAt := time.Now()
		start := time.Now()
		err := api.ChangeStatus(ctx, orderID, next)
		col.record(methodStatus, time.Since(start), err)
		if err != nil {
			return err
		}
		if err := awaitDelivery(ctx, streams, orderID, next, changedAt, cfg.timeout, col); err != nil {
			return err
		}
	}
	return nil
}

func openWatchers(ctx context.Context, clients []watchAPI, offset, count int, orderID string, col *collector) ([]grpc.ServerStreamingClient[structpb.Struct], error) {
	if len(clients) == 0 {
		return nil, errors.New("no grpc clients configured")
	}
	streams := make([]grpc.ServerStreamingClient[structpb.Struct], 0, count)
	for i := 0; i < count; i++ {
		client := clients[(offset+i)%len(clients)]
		start := time.Now()
		stream, err := client.WatchOrder(ctx, orderID)
		if err == nil {
			// Header приходит только после регистрации подписки на сервере.
			_, err = stream.Header()
		}
		col.record(methodWatch, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

// awaitDelivery ждёт событие с нужным статусом на каждом потоке и пишет задержку доставки.
func awaitDelivery(
	ctx context.Context,
	streams []grpc.ServerStreamingClient[structpb.Struct],
	orderID string,
	want domain.OrderStatus,
	changedAt time.Time,
	timeout time.Duration,
	col *collector,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errs := make(chan error, len(streams))
	for _, stream := range streams {
		go func() {
			err := receiveStatus(stream, orderID, want)
			col.record(methodDelivery, time.Since(changedAt), err)
			errs <- err
		}()
	}

	var firstErr error
	for range streams {
		select {
		case err := <-errs:
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-ctx.Done():
			return fmt.Errorf("order %s: waiting for %q: %w", orderID, want, ctx.Err())
		}
	}
	return firstErr
}

func receiveStatus(stream grpc.ServerStreamingClient[structpb.Struct], orderID string, want domain.OrderStatus) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			return err
		}
		if msg.GetFields()["order_id"].GetStringValue() != orderID {
			return fmt.Errorf("event for foreign order %q on stream of %q", msg.GetFields()["order_id"].GetStringValue(), orderID)
		}
		if msg.GetFields()["status"].GetStringValue() == string(want) {
			return nil
		}
	}
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s watchers=%d total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		cfg.watchers,
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == methodScenario {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(w,
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
