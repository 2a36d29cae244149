// Package session хранит текущую сессию пользователя удалённого API и сохраняет её между запусками.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
)

// Storage описывает долговременное хранилище сессии.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// Set возвращает новую сессию, полностью заменяющую предыдущую.
// Пустой токен даёт пустую сессию: без токена сведения о пользователе не имеют смысла.
func Set(_ model.Session, token string, identity *model.Identity) model.Session {
	if token == "" {
		return model.Session{}
	}
	var id *model.Identity
	if identity != nil {
		cp := *identity
		id = &cp
	}
	return model.Session{Token: token, Identity: id}
}

// Cleared возвращает пустую сессию.
func Cleared(model.Session) model.Session {
	return model.Session{}
}

// Store хранит текущую сессию и сохраняет её после каждого изменения.
type Store struct {
	mu      sync.RWMutex
	current model.Session
	storage Storage
	key     string
	logger  *zap.Logger
}

// NewStore создаёт хранилище с пустой сессией, сохраняемой под ключом key.
func NewStore(storage Storage, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{storage: storage, key: key, logger: logger}
}

// Rehydrate восстанавливает сессию из хранилища. Должен вызываться до первого запроса к API.
func (s *Store) Rehydrate(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	data, err := s.storage.Load(ctx, s.key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var restored model.Session
	if err := json.Unmarshal(data, &restored); err != nil {
		s.logger.Warn("discarding persisted session", zap.String("key", s.key), zap.Error(err))
		return nil
	}
	restored = Set(model.Session{}, restored.Token, restored.Identity)

	s.mu.Lock()
	s.current = restored
	s.mu.Unlock()

	s.logger.Debug("session rehydrated", zap.Bool("authenticated", restored.Authenticated()))
	return nil
}

// Session возвращает копию текущей сессии.
func (s *Store) Session() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Set(model.Session{}, s.current.Token, s.current.Identity)
}

// Token возвращает текущий токен доступа или пустую строку.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// SetSession заменяет текущую сессию.
func (s *Store) SetSession(ctx context.Context, token string, identity *model.Identity) error {
	return s.apply(ctx, func(cur model.Session) model.Session {
		return Set(cur, token, identity)
	})
}

// Logout очищает текущую сессию.
func (s *Store) Logout(ctx context.Context) error {
	return s.apply(ctx, Cleared)
}

// ReplaceToken заменяет токен, только если текущий токен равен old. Сведения о пользователе
// сохраняются; пустой next очищает сессию. Возвращает false, если сессия уже изменилась.
func (s *Store) ReplaceToken(ctx context.Context, old, next string) (bool, error) {
	replaced := false
	err := s.apply(ctx, func(cur model.Session) model.Session {
		if cur.Token != old {
			return cur
		}
		replaced = true
		return Set(cur, next, cur.Identity)
	})
	return replaced, err
}

func (s *Store) apply(ctx context.Context, reduce func(model.Session) model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = reduce(s.current)
	if s.storage == nil {
		return nil
	}

	var err error
	if !s.current.Authenticated() {
		err = s.storage.Delete(ctx, s.key)
	} else {
		var payload []byte
		payload, err = json.Marshal(s.current)
		if err == nil {
			err = s.storage.Save(ctx, s.key, payload)
		}
	}
	if err != nil {
		s.logger.Error("persist session", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
