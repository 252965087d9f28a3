// Package ws реализует канал живых уведомлений о статусе заказа поверх WebSocket.
package ws

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/notify"
)

const (
	defaultWriteWait    = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultPingInterval = (defaultPongWait * 9) / 10
	maxClientMessage    = 512
)

// Subscriber — хаб уведомлений с точки зрения транспорта.
type Subscriber interface {
	Subscribe(orderID string, ch notify.Channel) error
	Unsubscribe(orderID string, ch notify.Channel)
}

// Handler подписывает каждое WebSocket-подключение на заказ из URL.
// Клиент ничего не присылает: сервер только отправляет события и пинги.
type Handler struct {
	hub          Subscriber
	upgrader     websocket.Upgrader
	queueSize    int
	writeWait    time.Duration
	pongWait     time.Duration
	pingInterval time.Duration
	logger       *log.Entry
}

// Option настраивает Handler.
type Option func(*Handler)

// WithQueueSize задаёт размер исходящей очереди одного подключения.
func WithQueueSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithPingInterval задаёт период keep-alive пингов; ожидание pong в полтора раза дольше.
func WithPingInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pingInterval = d
			h.pongWait = d + d/2
		}
	}
}

// WithAllowedOrigins разрешает подключения с перечисленных источников ("*" разрешает любые).
// Без этой опции действует проверка same-origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			if _, ok := allowed["*"]; ok {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler создаёт обработчик канала уведомлений.
func NewHandler(hub Subscriber, opts ...Option) *Handler {
	h := &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		queueSize:    notify.DefaultQueueSize,
		writeWait:    defaultWriteWait,
		pongWait:     defaultPongWait,
		pingInterval: defaultPingInterval,
		logger:       log.WithField("component", "ws-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeOrder принимает подключение и держит его до разрыва или закрытия канала хабом.
func (h *Handler) ServeOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	if orderID == "" {
		http.Error(w, "order id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).WithField("order_id", orderID).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.WithFields(log.Fields{
		"order_id":  orderID,
		"remote_ip": r.RemoteAddr,
	})

	ch := notify.NewQueueChannel(h.queueSize)
	if err := h.hub.Subscribe(orderID, ch); err != nil {
		logger.WithError(err).Warn("subscribe rejected")
		h.closeWith(conn, closeCode(err), err.Error())
		return
	}
	defer func() {
		h.hub.Unsubscribe(orderID, ch)
		ch.Close()
	}()
	logger.Info("observer connected")

	readDone := make(chan struct{})
	go h.readLoop(conn, readDone)

	h.writeLoop(conn, ch, readDone, logger)
	logger.Info("observer disconnected")
}

// readLoop только обнаруживает закрытие: входящие сообщения игнорируются.
func (h *Handler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, ch *notify.QueueChannel, readDone <-chan struct{}, logger *log.Entry) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				// Хаб закрыл канал: отставание или остановка сервера.
				h.closeWith(conn, websocket.CloseGoingAway, "channel closed")
				return
			}
			data, err := ev.Encode()
			if err != nil {
				logger.WithError(err).Error("encode event")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.WithError(err).Debug("write event failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeWait))
}

func closeCode(err error) int {
	switch {
	case errors.Is(err, notify.ErrTooManySubscribers):
		return websocket.CloseTryAgainLater
	case errors.Is(err, notify.ErrHubClosed):
		return websocket.CloseGoingAway
	default:
		return websocket.CloseInternalServerErr
	}
}
