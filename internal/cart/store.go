package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/validation"
)

// Storage описывает долговременное хранилище, в которое сохраняется корзина.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}

// Store хранит корзину и сохраняет её после каждого изменения.
type Store struct {
	mu      sync.RWMutex
	state   model.CartState
	storage Storage
	key     string
	logger  *zap.Logger
}

// NewStore создаёт пустую корзину, сохраняемую под ключом key.
func NewStore(storage Storage, key string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:   Empty(),
		storage: storage,
		key:     key,
		logger:  logger,
	}
}

// Rehydrate восстанавливает корзину из хранилища. Повреждённое состояние отбрасывается.
func (s *Store) Rehydrate(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	data, err := s.storage.Load(ctx, s.key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	var state model.CartState
	if err := json.Unmarshal(data, &state); err != nil || !Consistent(state) {
		s.logger.Warn("discarding persisted cart", zap.String("key", s.key), zap.Error(err))
		return nil
	}
	if state.Lines == nil {
		state.Lines = []model.CartLine{}
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.logger.Debug("cart rehydrated", zap.Int("lines", len(state.Lines)), zap.Int("items", state.TotalItemCount))
	return nil
}

// State возвращает копию текущего состояния корзины.
func (s *Store) State() model.CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.state)
}

// AddItem добавляет товар в корзину.
func (s *Store) AddItem(ctx context.Context, item model.CartItem) (model.CartState, error) {
	if err := validation.CartItem(item); err != nil {
		return s.State(), err
	}
	return s.apply(ctx, func(st model.CartState) model.CartState {
		return AddItem(st, item)
	})
}

// RemoveItem удаляет позицию корзины.
func (s *Store) RemoveItem(ctx context.Context, productID string) (model.CartState, error) {
	return s.apply(ctx, func(st model.CartState) model.CartState {
		return RemoveItem(st, productID)
	})
}

// UpdateQuantity меняет количество товара в позиции.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) (model.CartState, error) {
	return s.apply(ctx, func(st model.CartState) model.CartState {
		return UpdateQuantity(st, productID, quantity)
	})
}

// Clear очищает корзину.
func (s *Store) Clear(ctx context.Context) (model.CartState, error) {
	return s.apply(ctx, Clear)
}

// apply применяет редьюсер и сохраняет результат. Состояние в памяти обновляется
// даже если сохранение не удалось; ошибка сохранения возвращается вызывающему.
func (s *Store) apply(ctx context.Context, reduce func(model.CartState) model.CartState) (model.CartState, error) {
	s.mu.Lock()
	s.state = reduce(s.state)
	snapshot := clone(s.state)
	payload, err := json.Marshal(snapshot)
	// Сохранение под блокировкой: порядок записей совпадает с порядком изменений.
	if err == nil && s.storage != nil {
		err = s.storage.Save(ctx, s.key, payload)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("persist cart", zap.String("key", s.key), zap.Error(err))
		return snapshot, fmt.Errorf("persist cart: %w", err)
	}
	return snapshot, nil
}
