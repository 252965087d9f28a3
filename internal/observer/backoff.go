package observer

import (
	"math/rand/v2"
	"time"
)

// DefaultReconnectDelay — пауза перед повторным подключением по умолчанию.
const DefaultReconnectDelay = 5 * time.Second

// Backoff вычисляет паузу перед попыткой переподключения attempt (начиная с 1).
type Backoff interface {
	Next(attempt int) time.Duration
}

// FlatBackoff ждёт одинаковую паузу перед каждой попыткой.
type FlatBackoff struct {
	Delay time.Duration
}

// Next возвращает Delay или DefaultReconnectDelay, если Delay не задан.
func (b FlatBackoff) Next(int) time.Duration {
	if b.Delay <= 0 {
		return DefaultReconnectDelay
	}
	return b.Delay
}

// ExponentialBackoff растит паузу экспоненциально, с полным джиттером и потолком.
type ExponentialBackoff struct {
	Base time.Duration
	Cap  time.Duration

	rnd func() float64
}

// NewExponentialBackoff создаёт стратегию; нулевые значения заменяются на 500ms и 30s.
func NewExponentialBackoff(base, limit time.Duration) *ExponentialBackoff {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if limit <= 0 {
		limit = 30 * time.Second
	}
	if limit < base {
		limit = base
	}
	return &ExponentialBackoff{Base: base, Cap: limit, rnd: rand.Float64}
}

// Next возвращает случайную паузу из [0, min(Cap, Base·2^(attempt-1))].
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ceiling := b.Cap
	if shift := attempt - 1; shift < 32 {
		if d := b.Base << shift; d > 0 && d < b.Cap {
			ceiling = d
		}
	}
	rnd := b.rnd
	if rnd == nil {
		rnd = rand.Float64
	}
	return time.Duration(rnd() * float64(ceiling))
}
