// Package clock позволяет подменять текущее время в проверках окон подписки и промокодов.
package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени.
type Clock interface {
	Now() time.Time
}

// Real возвращает системное время в UTC.
type Real struct{}

// Now возвращает текущее время.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fixed часы для тестов: время меняется только явно.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed создаёт часы, остановленные на t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// Now возвращает сохранённое время.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set переставляет часы.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance сдвигает часы на d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
