package notify

import (
	"errors"
	"sync"
)

var (
	// ErrChannelBackpressure — очередь канала заполнена, подписчик не успевает читать.
	ErrChannelBackpressure = errors.New("channel backpressure")
	// ErrChannelClosed — канал уже закрыт.
	ErrChannelClosed = errors.New("channel closed")
)

// Channel представляет исходящую сторону одного подключения наблюдателя.
// Deliver не должен блокироваться. Реализации должны быть сравнимыми (обычно указатель).
type Channel interface {
	Deliver(Event) error
	Close()
}

// QueueChannel буферизует события для одного подключения.
// Транспорт вычитывает Events() в отдельной горутине; порядок событий сохраняется.
type QueueChannel struct {
	mu     sync.Mutex
	queue  chan Event
	done   chan struct{}
	closed bool
}

// DefaultQueueSize задаёт размер очереди по умолчанию.
const DefaultQueueSize = 16

// NewQueueChannel создаёт канал с очередью заданного размера.
func NewQueueChannel(size int) *QueueChannel {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &QueueChannel{
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
}

// Deliver кладёт событие в очередь без ожидания.
func (c *QueueChannel) Deliver(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	select {
	case c.queue <- ev:
		return nil
	default:
		return ErrChannelBackpressure
	}
}

// Events возвращает очередь; она закрывается после Close, остаток можно дочитать.
func (c *QueueChannel) Events() <-chan Event {
	return c.queue
}

// Done закрывается вместе с каналом.
func (c *QueueChannel) Done() <-chan struct{} {
	return c.done
}

// Close идемпотентен.
func (c *QueueChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.queue)
	close(c.done)
}

// Closed сообщает, закрыт ли канал.
func (c *QueueChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
