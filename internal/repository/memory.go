package repository

import (
	"context"
	"sync"
)

// MemoryRepository хранит состояние в памяти процесса. Используется по умолчанию и в тестах.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string][]byte)}
}

// Load возвращает копию сохранённого значения.
func (r *MemoryRepository) Load(_ context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Save сохраняет копию значения.
func (r *MemoryRepository) Save(_ context.Context, key string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[key] = append([]byte(nil), payload...)
	return nil
}

// Delete удаляет значение по ключу.
func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, key)
	return nil
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}
