package observer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/notify"
)

type fakeConn struct {
	msgs      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) Read() ([]byte, error) {
	select {
	case data := <-c.msgs:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, ev notify.Event) {
	t.Helper()
	data, err := ev.Encode()
	require.NoError(t, err)
	c.msgs <- data
}

// fakeDialer выдаёт заранее подготовленные подключения; nil в очереди означает ошибку.
type fakeDialer struct {
	mu    sync.Mutex
	queue []*fakeConn
	dials int
}

func newFakeDialer(conns ...*fakeConn) *fakeDialer {
	return &fakeDialer{queue: conns}
}

func (d *fakeDialer) Dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.queue) == 0 {
		return nil, domain.ErrTransientNetwork
	}
	next := d.queue[0]
	d.queue = d.queue[1:]
	if next == nil {
		return nil, domain.ErrTransientNetwork
	}
	return next, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeFetcher struct {
	mu    sync.Mutex
	order domain.Order
	err   error
	calls int
}

func (f *fakeFetcher) FetchOrder(context.Context, string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.order, f.err
}

func (f *fakeFetcher) set(status domain.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order.Status = status
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pendingOrder() domain.Order {
	return domain.Order{
		ID:         "abc123",
		Items:      []domain.OrderItem{{Name: "Masala Dosa", PriceMinor: 12000, Quantity: 2}},
		TotalMinor: 24000,
		Status:     domain.OrderStatusPending,
	}
}

func runObserver(t *testing.T, o *Observer) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	return cancel, done
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func statusOf(o *Observer) domain.OrderStatus {
	order, _ := o.Snapshot()
	return order.Status
}

func TestObserver_InitialSyncAndLiveUpdates(t *testing.T) {
	conn := newFakeConn()
	fetcher := &fakeFetcher{order: pendingOrder()}
	o := New("abc123", newFakeDialer(conn), fetcher, WithBackoff(FlatBackoff{Delay: 10 * time.Millisecond}))
	runObserver(t, o)

	eventually(t, o.Live)
	eventually(t, func() bool { _, ok := o.Snapshot(); return ok })
	require.Equal(t, domain.OrderStatusPending, statusOf(o))

	conn.send(t, notify.StatusChanged("abc123", domain.OrderStatusConfirmed))
	eventually(t, func() bool { return statusOf(o) == domain.OrderStatusConfirmed })

	order, _ := o.Snapshot()
	require.Equal(t, int64(24000), order.TotalMinor)
	require.Len(t, order.Items, 1)
}

func TestObserver_IgnoresForeignAndMalformedMessages(t *testing.T) {
	conn := newFakeConn()
	o := New("abc123", newFakeDialer(conn), &fakeFetcher{order: pendingOrder()})
	runObserver(t, o)
	eventually(t, o.Live)
	eventually(t, func() bool { _, ok := o.Snapshot(); return ok })

	conn.send(t, notify.StatusChanged("xyz999", domain.OrderStatusCancelled))
	conn.msgs <- []byte(`not json`)
	conn.msgs <- []byte(`{"type":"eta_changed","order_id":"abc123"}`)
	conn.msgs <- []byte(`{"order_id":"abc123","status":"Preparing"}`)

	eventually(t, func() bool { return statusOf(o) == domain.OrderStatusPreparing })
	require.True(t, o.Live())
}

func TestObserver_AppliesBareStatusMessage(t *testing.T) {
	conn := newFakeConn()
	o := New("abc123", newFakeDialer(conn), &fakeFetcher{order: pendingOrder()})
	runObserver(t, o)
	eventually(t, o.Live)
	eventually(t, func() bool { _, ok := o.Snapshot(); return ok })

	conn.msgs <- []byte(`{"status":"Confirmed"}`)

	eventually(t, func() bool { return statusOf(o) == domain.OrderStatusConfirmed })
	order, _ := o.Snapshot()
	require.Equal(t, "abc123", order.ID)
	require.Equal(t, int64(24000), order.TotalMinor)
}

func TestObserver_ReconnectWaitsForDelayAndDialsOnce(t *testing.T) {
	const delay = 300 * time.Millisecond
	first, second := newFakeConn(), newFakeConn()
	dialer := newFakeDialer(first, second)
	o := New("abc123", dialer, &fakeFetcher{order: pendingOrder()}, WithBackoff(FlatBackoff{Delay: delay}))
	runObserver(t, o)
	eventually(t, o.Live)
	require.Equal(t, 1, dialer.count())

	dropped := time.Now()
	require.NoError(t, first.Close())
	eventually(t, func() bool { return o.State() == StateConnecting })

	time.Sleep(delay / 3)
	require.Equal(t, 1, dialer.count(), "no dial before the delay elapses")
	require.False(t, o.Live())

	eventually(t, o.Live)
	require.GreaterOrEqual(t, time.Since(dropped), delay)
	require.Equal(t, 2, dialer.count())

	time.Sleep(delay + delay/2)
	require.Equal(t, 2, dialer.count(), "a live connection must not be redialled")
}

func TestObserver_ReconnectsAfterDrop(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := newFakeDialer(first, nil, second)
	fetcher := &fakeFetcher{order: pendingOrder()}

	var mu sync.Mutex
	var states []State
	o := New("abc123", dialer, fetcher,
		WithBackoff(FlatBackoff{Delay: 10 * time.Millisecond}),
		WithRefetchOnReconnect(true),
		WithOnUpdate(func(u Update) {
			mu.Lock()
			defer mu.Unlock()
			if len(states) == 0 || states[len(states)-1] != u.State {
				states = append(states, u.State)
			}
		}),
	)
	runObserver(t, o)
	eventually(t, o.Live)
	eventually(t, func() bool { return fetcher.count() == 1 })

	fetcher.set(domain.OrderStatusOutForDelivery)
	require.NoError(t, first.Close())

	eventually(t, func() bool { return dialer.count() == 3 && o.Live() })
	eventually(t, func() bool { return statusOf(o) == domain.OrderStatusOutForDelivery })
	require.Equal(t, 2, fetcher.count())

	second.send(t, notify.StatusChanged("abc123", domain.OrderStatusDelivered))
	eventually(t, func() bool { return statusOf(o) == domain.OrderStatusDelivered })

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, states, StateConnecting)
	require.Equal(t, StateLive, states[len(states)-1])
}

func TestObserver_NoRefetchByDefault(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := newFakeDialer(first, second)
	fetcher := &fakeFetcher{order: pendingOrder()}
	o := New("abc123", dialer, fetcher, WithBackoff(FlatBackoff{Delay: 5 * time.Millisecond}))
	runObserver(t, o)
	eventually(t, o.Live)

	require.NoError(t, first.Close())
	eventually(t, func() bool { return dialer.count() == 2 && o.Live() })
	require.Equal(t, 1, fetcher.count())
}

func TestObserver_TeardownCancelsPendingReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn)
	o := New("abc123", dialer, &fakeFetcher{order: pendingOrder()}, WithBackoff(FlatBackoff{Delay: time.Hour}))
	cancel, done := runObserver(t, o)
	eventually(t, o.Live)

	require.NoError(t, conn.Close())
	eventually(t, func() bool { return o.State() == StateConnecting })
	require.False(t, o.Live())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Equal(t, StateClosed, o.State())
	require.Equal(t, 1, dialer.count())
}

func TestObserver_CloseStopsEverything(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn, newFakeConn())
	o := New("abc123", dialer, &fakeFetcher{order: pendingOrder()}, WithBackoff(FlatBackoff{Delay: 5 * time.Millisecond}))
	_, done := runObserver(t, o)
	eventually(t, o.Live)

	o.Close()
	o.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	require.Equal(t, StateClosed, o.State())

	select {
	case <-conn.closed:
	default:
		t.Fatal("connection must be closed on teardown")
	}

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, dialer.count())
	require.ErrorIs(t, o.Run(context.Background()), ErrClosed)
}

func TestObserver_OrderNotFound(t *testing.T) {
	o := New("missing", newFakeDialer(newFakeConn()), &fakeFetcher{err: domain.ErrOrderNotFound})

	err := o.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	require.Equal(t, StateClosed, o.State())
}

func TestObserver_InitialConnectFailureRetries(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(nil, nil, conn)
	fetcher := &fakeFetcher{err: errors.New("temporary")}
	o := New("abc123", dialer, fetcher, WithBackoff(FlatBackoff{Delay: 5 * time.Millisecond}))
	runObserver(t, o)

	eventually(t, o.Live)
	require.Equal(t, 3, dialer.count())

	_, ok := o.Snapshot()
	require.False(t, ok)

	conn.send(t, notify.StatusChanged("abc123", domain.OrderStatusConfirmed))
	eventually(t, func() bool { return statusOf(o) == domain.OrderStatusConfirmed })
	order, _ := o.Snapshot()
	require.Equal(t, "abc123", order.ID)
}

func TestObserver_RunTwice(t *testing.T) {
	o := New("abc123", newFakeDialer(newFakeConn()), &fakeFetcher{order: pendingOrder()})
	runObserver(t, o)
	eventually(t, o.Live)
	require.ErrorIs(t, o.Run(context.Background()), ErrAlreadyRunning)
}

func TestObserver_SkipsDialWhenLive(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn, newFakeConn())
	o := New("abc123", dialer, &fakeFetcher{order: pendingOrder()})
	runObserver(t, o)
	eventually(t, o.Live)

	_, err := o.connect(context.Background())
	require.ErrorIs(t, err, errAlreadyLive)
	require.Equal(t, 1, dialer.count())
}

func TestBackoff(t *testing.T) {
	require.Equal(t, DefaultReconnectDelay, FlatBackoff{}.Next(1))
	require.Equal(t, 2*time.Second, FlatBackoff{Delay: 2 * time.Second}.Next(7))

	b := NewExponentialBackoff(100*time.Millisecond, time.Second)
	b.rnd = func() float64 { return 1 }
	require.Equal(t, 100*time.Millisecond, b.Next(1))
	require.Equal(t, 400*time.Millisecond, b.Next(3))
	require.Equal(t, time.Second, b.Next(5))
	require.Equal(t, time.Second, b.Next(100))

	b.rnd = func() float64 { return 0.5 }
	require.Equal(t, 100*time.Millisecond, b.Next(2))

	b = NewExponentialBackoff(0, 0)
	for attempt := 1; attempt < 10; attempt++ {
		d := b.Next(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 30*time.Second)
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "live", StateLive.String())
	require.Equal(t, "closed", StateClosed.String())
}
