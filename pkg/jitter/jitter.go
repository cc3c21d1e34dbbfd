// Package jitter добавляет случайность в интервалы повторов,
// чтобы воркеры нескольких реплик не обращались к брокеру одновременно.
package jitter

import (
	"math/rand/v2"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Duration возвращает продолжительность с применённым джиттером.
// Результат находится в диапазоне [d, d*(1+factor)).
func Duration(d time.Duration, factor float64) time.Duration {
	return DurationWith(d, factor, rand.Float64)
}

// DurationWith использует переданный источник случайности (значения в [0, 1)).
func DurationWith(d time.Duration, factor float64, rnd func() float64) time.Duration {
	if d <= 0 || factor <= 0 {
		return d
	}
	return d + time.Duration(rnd()*factor*float64(d))
}

// ExponentialBackoff вычисляет экспоненциальную задержку с джиттером.
// attempt нумеруется с нуля, задержка до джиттера ограничена max.
func ExponentialBackoff(base, max time.Duration, attempt int, factor float64) time.Duration {
	return Duration(capped(base, max, attempt), factor)
}

func capped(base, max time.Duration, attempt int) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= max || backoff <= 0 {
			return max
		}
	}
	if backoff > max {
		return max
	}
	return backoff
}

// Backoff хранит номер попытки между вызовами. Не потокобезопасен.
type Backoff struct {
	Base    time.Duration
	Max     time.Duration
	Factor  float64
	attempt int
}

// NewBackoff создаёт Backoff с DefaultJitter.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max, Factor: DefaultJitter}
}

// Next возвращает очередную задержку и увеличивает счётчик попыток.
func (b *Backoff) Next() time.Duration {
	d := ExponentialBackoff(b.Base, b.Max, b.attempt, b.Factor)
	b.attempt++
	return d
}

// Attempt возвращает количество уже выданных задержек.
func (b *Backoff) Attempt() int { return b.attempt }

// Reset сбрасывает счётчик после успешной операции.
func (b *Backoff) Reset() { b.attempt = 0 }
