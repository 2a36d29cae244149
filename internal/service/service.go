// Package service реализует сценарии клиента витрины: вход и выход, корзину,
// оформление заказа и административные операции поверх эндпоинтов API.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/session"
	"github.com/mmeshcher/storefront/internal/storefront"
	"github.com/mmeshcher/storefront/internal/validation"
)

var (
	// ErrNotAuthenticated возвращается операциям, требующим сессии.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEmptyCart возвращается при попытке оформить пустую корзину.
	ErrEmptyCart = errors.New("cart is empty")
)

// SessionStore описывает хранилище сессии, используемое сервисом.
type SessionStore interface {
	Session() model.Session
	SetSession(ctx context.Context, token string, identity *model.Identity) error
	Logout(ctx context.Context) error
}

// CartStore описывает хранилище корзины, используемое сервисом.
type CartStore interface {
	State() model.CartState
	AddItem(ctx context.Context, item model.CartItem) (model.CartState, error)
	RemoveItem(ctx context.Context, productID string) (model.CartState, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (model.CartState, error)
	Clear(ctx context.Context) (model.CartState, error)
}

// CacheResetter сбрасывает кеш ответов API.
type CacheResetter interface {
	Reset()
}

// CheckoutInput описывает данные оформления заказа.
type CheckoutInput struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Service содержит сценарии клиента витрины.
type Service struct {
	api      *storefront.API
	cache    CacheResetter
	sessions SessionStore
	cart     CartStore
	logger   *zap.Logger
}

// NewService создаёт сервис поверх эндпоинтов api и хранилищ состояния.
func NewService(api *storefront.API, cache CacheResetter, sessions SessionStore, cart CartStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:      api,
		cache:    cache,
		sessions: sessions,
		cart:     cart,
		logger:   logger,
	}
}

// Session возвращает текущую сессию.
func (s *Service) Session() model.Session {
	return s.sessions.Session()
}

// Login выполняет вход и сохраняет сессию. Данные пользователя берутся из токена.
func (s *Service) Login(ctx context.Context, creds model.Credentials) (model.Session, error) {
	if err := validation.Credentials(creds); err != nil {
		return model.Session{}, err
	}

	token, err := s.api.Login.Do(ctx, creds)
	if err != nil {
		return model.Session{}, err
	}

	identity, err := session.IdentityFromToken(token)
	if err != nil {
		return model.Session{}, fmt.Errorf("decode access token: %w", err)
	}

	// Ответы, полученные под другим пользователем, не должны быть видны новому.
	s.resetCache()
	if err := s.sessions.SetSession(ctx, token, identity); err != nil {
		s.logger.Warn("persist session after login", zap.Error(err))
	}
	s.logger.Info("user logged in", zap.String("user_id", identity.ID), zap.String("role", string(identity.Role)))

	return s.sessions.Session(), nil
}

// Logout завершает сессию и очищает кеш ответов.
func (s *Service) Logout(ctx context.Context) error {
	err := s.sessions.Logout(ctx)
	s.resetCache()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (s *Service) resetCache() {
	if s.cache != nil {
		s.cache.Reset()
	}
}

// Register регистрирует нового пользователя.
func (s *Service) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	if err := validation.Registration(reg); err != nil {
		return model.User{}, err
	}
	return s.api.Register.Do(ctx, reg)
}

// ChangePassword меняет пароль текущего пользователя.
func (s *Service) ChangePassword(ctx context.Context, change model.PasswordChange) error {
	if !s.sessions.Session().Authenticated() {
		return ErrNotAuthenticated
	}
	if err := validation.PasswordChange(change); err != nil {
		return err
	}
	_, err := s.api.ChangePassword.Do(ctx, change)
	return err
}

// Cart возвращает состояние корзины.
func (s *Service) Cart() model.CartState {
	return s.cart.State()
}

// AddToCart добавляет товар в корзину.
func (s *Service) AddToCart(ctx context.Context, item model.CartItem) (model.CartState, error) {
	return s.cart.AddItem(ctx, item)
}

// RemoveFromCart удаляет позицию из корзины.
func (s *Service) RemoveFromCart(ctx context.Context, productID string) (model.CartState, error) {
	return s.cart.RemoveItem(ctx, productID)
}

// UpdateCartQuantity меняет количество товара в корзине.
func (s *Service) UpdateCartQuantity(ctx context.Context, productID string, quantity int) (model.CartState, error) {
	return s.cart.UpdateQuantity(ctx, productID, quantity)
}

// ClearCart очищает корзину.
func (s *Service) ClearCart(ctx context.Context) (model.CartState, error) {
	return s.cart.Clear(ctx)
}

// Checkout оформляет заказ из содержимого корзины. Корзина очищается только после
// успешного создания заказа.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (model.Order, error) {
	if !s.sessions.Session().Authenticated() {
		return model.Order{}, ErrNotAuthenticated
	}

	state := s.cart.State()
	if len(state.Lines) == 0 {
		return model.Order{}, ErrEmptyCart
	}
	if err := validation.Checkout(in.Address, in.Phone); err != nil {
		return model.Order{}, err
	}

	lines := make([]model.OrderLine, 0, len(state.Lines))
	for _, l := range state.Lines {
		lines = append(lines, model.OrderLine{Product: l.ProductID, Quantity: l.Quantity})
	}

	order, err := s.api.CreateOrder.Do(ctx, model.OrderInput{
		Products: lines,
		Address:  in.Address,
		Phone:    in.Phone,
	})
	if err != nil {
		return model.Order{}, err
	}

	if _, err := s.cart.Clear(ctx); err != nil {
		s.logger.Warn("clear cart after checkout", zap.String("order_id", order.ID), zap.Error(err))
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.Int("items", state.TotalItemCount),
		zap.Float64("subtotal", state.Subtotal()),
	)

	return order, nil
}

// Products возвращает страницу каталога.
func (s *Service) Products(ctx context.Context, params model.ProductParams) (model.Page[model.Product], error) {
	return s.api.Products.Fetch(ctx, params)
}

// Product возвращает товар по идентификатору.
func (s *Service) Product(ctx context.Context, id string) (model.Product, error) {
	return s.api.Product.Fetch(ctx, id)
}

// MyOrders возвращает заказы текущего пользователя.
func (s *Service) MyOrders(ctx context.Context, params model.OrderParams) (model.Page[model.Order], error) {
	if !s.sessions.Session().Authenticated() {
		return model.Page[model.Order]{}, ErrNotAuthenticated
	}
	return s.api.MyOrders.Fetch(ctx, params)
}

// Order возвращает заказ по идентификатору.
func (s *Service) Order(ctx context.Context, id string) (model.Order, error) {
	return s.api.Order.Fetch(ctx, id)
}

// Payment возвращает сведения о платеже по заказу.
func (s *Service) Payment(ctx context.Context, orderID string) (model.Payment, error) {
	return s.api.Payment.Fetch(ctx, orderID)
}

// VerifyPayment запрашивает у API проверку платежа по заказу.
func (s *Service) VerifyPayment(ctx context.Context, orderID string) (model.Payment, error) {
	return s.api.VerifyPayment.Do(ctx, orderID)
}
