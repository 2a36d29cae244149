// Package notify содержит ленту всплывающих уведомлений об ошибках запросов.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultCapacity = 50

// Level описывает важность уведомления.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification описывает одно всплывающее уведомление.
type Notification struct {
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode,omitempty"`
	At         time.Time `json:"at"`
}

// Feed хранит последние уведомления до их выборки интерфейсом.
// При переполнении отбрасываются самые старые.
type Feed struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	logger   *zap.Logger
	now      func() time.Time
}

// NewFeed создаёт ленту вместимостью capacity (при 0 используется значение по умолчанию).
func NewFeed(capacity int, logger *zap.Logger) *Feed {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{capacity: capacity, logger: logger, now: time.Now}
}

// Notify добавляет уведомление. Вызов не блокируется.
func (f *Feed) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = f.now()
	}
	if n.Level == "" {
		n.Level = LevelError
	}

	f.logger.Warn("notification",
		zap.String("level", string(n.Level)),
		zap.String("message", n.Message),
		zap.Int("status", n.StatusCode),
	)

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) == f.capacity {
		copy(f.items, f.items[1:])
		f.items = f.items[:len(f.items)-1]
	}
	f.items = append(f.items, n)
}

// Drain возвращает накопленные уведомления и очищает ленту.
func (f *Feed) Drain() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.items
	f.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Len возвращает число непрочитанных уведомлений.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
