// Package observer реализует клиентскую сторону канала наблюдения за заказом
// с начальной синхронизацией и переподключением после обрыва.
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/notify"
)

// State описывает состояние канала наблюдения.
type State int32

const (
	StateConnecting State = iota
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrClosed — наблюдатель уже остановлен и повторно не запускается.
	ErrClosed = errors.New("observer closed")
	// ErrAlreadyRunning — Run уже выполняется.
	ErrAlreadyRunning = errors.New("observer already running")

	errAlreadyLive = errors.New("live connection already exists")
)

// Conn представляет одно подключение к каналу уведомлений.
// Read блокируется до следующего сообщения; после Close возвращает ошибку.
type Conn interface {
	Read() ([]byte, error)
	Close() error
}

// Dialer открывает канал уведомлений по заказу.
type Dialer interface {
	Dial(ctx context.Context, orderID string) (Conn, error)
}

// Fetcher получает полное состояние заказа.
type Fetcher interface {
	FetchOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// Update несёт снимок, передаваемый подписчику при смене состояния или статуса.
type Update struct {
	State State
	Order domain.Order
}

// Option настраивает Observer.
type Option func(*Observer)

// WithBackoff задаёт стратегию пауз между попытками.
func WithBackoff(b Backoff) Option {
	return func(o *Observer) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithRefetchOnReconnect перечитывает заказ после каждого переподключения,
// чтобы не пропустить смены статуса за время обрыва.
func WithRefetchOnReconnect(enabled bool) Option {
	return func(o *Observer) { o.refetch = enabled }
}

// WithOnUpdate регистрирует обработчик обновлений.
// Во время начальной синхронизации обработчик может вызываться из двух горутин одновременно.
func WithOnUpdate(fn func(Update)) Option {
	return func(o *Observer) { o.onUpdate = fn }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Observer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Observer поддерживает локальную копию одного заказа в актуальном состоянии.
type Observer struct {
	orderID  string
	dialer   Dialer
	fetcher  Fetcher
	backoff  Backoff
	refetch  bool
	onUpdate func(Update)
	logger   *log.Entry

	mu          sync.Mutex
	state       State
	order       domain.Order
	hasSnapshot bool
	conn        Conn
	running     bool
	closed      bool
	cancel      context.CancelFunc
}

// New создаёт наблюдателя за заказом orderID.
func New(orderID string, dialer Dialer, fetcher Fetcher, opts ...Option) *Observer {
	o := &Observer{
		orderID: orderID,
		dialer:  dialer,
		fetcher: fetcher,
		backoff: FlatBackoff{Delay: DefaultReconnectDelay},
		logger:  log.WithField("component", "order-observer"),
		state:   StateConnecting,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithField("order_id", orderID)
	return o
}

// State возвращает текущее состояние.
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Live сообщает, жив ли канал.
func (o *Observer) Live() bool {
	return o.State() == StateLive
}

// Snapshot возвращает локальную копию заказа и признак того, что она уже получена.
func (o *Observer) Snapshot() (domain.Order, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.order, o.hasSnapshot
}

// Run синхронизирует заказ и держит канал открытым до отмены ctx или Close.
// Возвращает ошибку только если заказа не существует или наблюдатель уже остановлен.
func (o *Observer) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.mu.Unlock()

	stop := context.AfterFunc(ctx, o.dropConn)
	defer func() {
		stop()
		cancel()
		o.teardown()
	}()

	conn, err := o.initialSync(ctx)
	if err != nil {
		return err
	}

	attempt := 0
	for {
		if conn != nil {
			attempt = 0
			err := o.consume(ctx, conn)
			o.dropConn()
			if ctx.Err() != nil {
				return nil
			}
			o.logger.WithError(err).Warn("connection lost")
		}

		o.setState(StateConnecting)
		attempt++
		delay := o.backoff.Next(attempt)
		o.logger.WithFields(log.Fields{"attempt": attempt, "delay": delay}).Info("reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err = o.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, errAlreadyLive) {
				o.logger.WithError(err).Warn("reconnect failed")
			}
			conn = nil
			continue
		}
		if o.refetch {
			if err := o.fetch(ctx); err != nil && ctx.Err() == nil {
				o.logger.WithError(err).Warn("refetch after reconnect failed")
			}
		}
	}
}

// Close останавливает наблюдателя: закрывает подключение и отменяет ожидание переподключения.
func (o *Observer) Close() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	o.teardown()
}

// initialSync параллельно получает заказ и открывает первое подключение.
// Неудачное подключение не фатально: им займётся цикл переподключения.
func (o *Observer) initialSync(ctx context.Context) (Conn, error) {
	var conn Conn
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := o.fetch(gctx)
		if errors.Is(err, domain.ErrOrderNotFound) {
			return err
		}
		if err != nil && gctx.Err() == nil {
			o.logger.WithError(err).Warn("initial fetch failed")
		}
		return nil
	})
	g.Go(func() error {
		c, err := o.connect(gctx)
		if err != nil {
			if gctx.Err() == nil {
				o.logger.WithError(err).Warn("initial connect failed")
			}
			return nil
		}
		conn = c
		return nil
	})
	if err := g.Wait(); err != nil {
		o.dropConn()
		return nil, err
	}
	if conn != nil && ctx.Err() != nil {
		o.dropConn()
		return nil, nil
	}
	return conn, nil
}

func (o *Observer) connect(ctx context.Context) (Conn, error) {
	o.mu.Lock()
	if o.conn != nil {
		o.mu.Unlock()
		return nil, errAlreadyLive
	}
	o.mu.Unlock()

	conn, err := o.dialer.Dial(ctx, o.orderID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	switch {
	case o.closed:
		err = ErrClosed
	case ctx.Err() != nil:
		err = ctx.Err()
	case o.conn != nil:
		err = errAlreadyLive
	}
	if err != nil {
		o.mu.Unlock()
		_ = conn.Close()
		return nil, err
	}
	o.conn = conn
	o.state = StateLive
	update := o.updateLocked()
	o.mu.Unlock()

	o.logger.Info("live")
	o.emit(update)
	return conn, nil
}

func (o *Observer) fetch(ctx context.Context) error {
	order, err := o.fetcher.FetchOrder(ctx, o.orderID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.order = order
	o.hasSnapshot = true
	update := o.updateLocked()
	o.mu.Unlock()

	o.emit(update)
	return nil
}

// consume читает события до ошибки подключения.
func (o *Observer) consume(ctx context.Context, conn Conn) error {
	for {
		data, err := conn.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
		}

		ev, err := notify.DecodeEvent(data)
		if err != nil {
			if !errors.Is(err, notify.ErrUnknownEventType) {
				o.logger.WithError(err).Warn("skip malformed event")
			}
			continue
		}
		if ev.OrderID != "" && ev.OrderID != o.orderID {
			continue
		}
		o.applyStatus(ev.Status)
	}
}

// applyStatus меняет только статус в локальной копии, остальные поля не трогает.
func (o *Observer) applyStatus(status domain.OrderStatus) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.order.ID == "" {
		o.order.ID = o.orderID
	}
	o.order.Status = status
	update := o.updateLocked()
	o.mu.Unlock()

	o.logger.WithField("status", status).Info("status updated")
	o.emit(update)
}

func (o *Observer) setState(s State) {
	o.mu.Lock()
	if o.closed || o.state == s {
		o.mu.Unlock()
		return
	}
	o.state = s
	update := o.updateLocked()
	o.mu.Unlock()
	o.emit(update)
}

// dropConn закрывает текущее подключение, если оно есть.
func (o *Observer) dropConn() {
	o.mu.Lock()
	conn := o.conn
	o.conn = nil
	o.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (o *Observer) teardown() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	conn := o.conn
	o.conn = nil
	o.state = StateClosed
	update := o.updateLocked()
	o.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	o.logger.Info("closed")
	o.emit(update)
}

func (o *Observer) updateLocked() Update {
	return Update{State: o.state, Order: o.order}
}

func (o *Observer) emit(u Update) {
	if o.onUpdate != nil {
		o.onUpdate(u)
	}
}
