// Package repository содержит хранилища сохраняемого состояния клиента (сессии и корзины).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound возвращается, если по ключу ничего не сохранено.
var ErrNotFound = errors.New("state not found")

// Repository описывает долговременное хранилище срезов состояния клиента.
type Repository interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key возвращает ключ среза состояния внутри корневого пространства имён.
func Key(root, slice string) string {
	return root + ":" + slice
}

// Open создаёт хранилище по URI: postgres://, redis://, file:// или пустая строка для памяти.
func Open(ctx context.Context, uri string) (Repository, error) {
	switch {
	case uri == "":
		return NewMemoryRepository(), nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return NewPostgresRepository(ctx, uri)
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		return NewRedisRepository(ctx, uri)
	case strings.HasPrefix(uri, "file://"):
		return NewFileRepository(strings.TrimPrefix(uri, "file://"))
	default:
		return nil, fmt.Errorf("unsupported state storage uri %q", uri)
	}
}
