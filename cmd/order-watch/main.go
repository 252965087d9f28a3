// order-watch следит за одним заказом и пишет в лог каждую смену состояния канала и статуса.
//
//	order-watch -server http://localhost:8000 -order abc123
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/observer"
)

type options struct {
	server      string
	orderID     string
	token       string
	delay       time.Duration
	exponential bool
	refetch     bool
	jsonLogs    bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("order-watch", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := options{}
	fs.StringVar(&opts.server, "server", envOr("YB_SERVER_URL", "http://localhost:8000"), "base URL сервиса")
	fs.StringVar(&opts.orderID, "order", "", "идентификатор заказа")
	fs.StringVar(&opts.token, "token", os.Getenv("YB_TOKEN"), "bearer-токен (необязательно)")
	fs.DurationVar(&opts.delay, "reconnect", observer.DefaultReconnectDelay, "пауза перед переподключением")
	fs.BoolVar(&opts.exponential, "exponential", false, "экспоненциальная пауза с джиттером вместо фиксированной")
	fs.BoolVar(&opts.refetch, "refetch", true, "перечитывать заказ после переподключения")
	fs.BoolVar(&opts.jsonLogs, "json", false, "логи в JSON")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.orderID = strings.TrimSpace(opts.orderID)
	if opts.orderID == "" && fs.NArg() > 0 {
		opts.orderID = strings.TrimSpace(fs.Arg(0))
	}
	if opts.orderID == "" {
		return options{}, errors.New("order id is required")
	}
	if !strings.HasPrefix(opts.server, "http://") && !strings.HasPrefix(opts.server, "https://") {
		return options{}, fmt.Errorf("server must be an http(s) URL, got %q", opts.server)
	}
	opts.server = strings.TrimRight(opts.server, "/")
	return opts, nil
}

// wsURL переводит http(s) адрес в ws(s).
func wsURL(server string) string {
	if rest, ok := strings.CutPrefix(server, "https://"); ok {
		return "wss://" + rest
	}
	return "ws://" + strings.TrimPrefix(server, "http://")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func newObserver(opts options, logger *log.Entry) *observer.Observer {
	var backoff observer.Backoff = observer.FlatBackoff{Delay: opts.delay}
	if opts.exponential {
		backoff = observer.NewExponentialBackoff(time.Second, opts.delay*6)
	}

	header := http.Header{}
	if opts.token != "" {
		header.Set("Authorization", "Bearer "+opts.token)
	}

	return observer.New(opts.orderID,
		observer.WSDialer{BaseURL: wsURL(opts.server), Header: header},
		observer.HTTPFetcher{BaseURL: opts.server, Token: opts.token},
		observer.WithBackoff(backoff),
		observer.WithRefetchOnReconnect(opts.refetch),
		observer.WithLogger(logger),
		observer.WithOnUpdate(reportUpdates(logger)),
	)
}

// reportUpdates пишет в лог только изменения состояния или статуса.
func reportUpdates(logger *log.Entry) func(observer.Update) {
	var (
		lastState  = observer.State(-1)
		lastStatus domain.OrderStatus
	)
	updates := make(chan observer.Update, 16)
	go func() {
		for u := range updates {
			if u.State == lastState && u.Order.Status == lastStatus {
				continue
			}
			lastState, lastStatus = u.State, u.Order.Status
			logger.WithFields(log.Fields{
				"state":  u.State.String(),
				"status": u.Order.Status,
			}).Info("order update")
			if u.State == observer.StateClosed {
				return
			}
		}
	}()
	return func(u observer.Update) {
		select {
		case updates <- u:
		default:
		}
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if opts.jsonLogs {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	logger := log.WithField("component", "order-watch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newObserver(opts, logger).Run(ctx); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			logger.WithField("order_id", opts.orderID).Error("order not found")
			os.Exit(1)
		}
		logger.WithError(err).Fatal("observer failed")
	}
}
