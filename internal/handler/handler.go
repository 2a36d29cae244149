// Package handler содержит HTTP-шлюз клиента витрины: корзину, сессию, каталог и заказы.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/notify"
	"github.com/mmeshcher/storefront/internal/pipeline"
	"github.com/mmeshcher/storefront/internal/service"
	"github.com/mmeshcher/storefront/internal/validation"
)

// Service определяет контракт сценариев клиента, используемых HTTP-обработчиками.
type Service interface {
	Session() model.Session
	Login(ctx context.Context, creds model.Credentials) (model.Session, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, reg model.Registration) (model.User, error)
	ChangePassword(ctx context.Context, change model.PasswordChange) error

	Cart() model.CartState
	AddToCart(ctx context.Context, item model.CartItem) (model.CartState, error)
	RemoveFromCart(ctx context.Context, productID string) (model.CartState, error)
	UpdateCartQuantity(ctx context.Context, productID string, quantity int) (model.CartState, error)
	ClearCart(ctx context.Context) (model.CartState, error)
	Checkout(ctx context.Context, in service.CheckoutInput) (model.Order, error)

	Products(ctx context.Context, params model.ProductParams) (model.Page[model.Product], error)
	Product(ctx context.Context, id string) (model.Product, error)
	MyOrders(ctx context.Context, params model.OrderParams) (model.Page[model.Order], error)
	Order(ctx context.Context, id string) (model.Order, error)
	Payment(ctx context.Context, orderID string) (model.Payment, error)
	VerifyPayment(ctx context.Context, orderID string) (model.Payment, error)

	Orders(ctx context.Context, params model.OrderParams) (model.Page[model.Order], error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	Users(ctx context.Context, params model.UserParams) (model.Page[model.User], error)
	UpdateUser(ctx context.Context, id string, in model.UserInput) (model.User, error)
	DeleteUser(ctx context.Context, id string) error
	CreateProduct(ctx context.Context, in model.ProductInput) (model.Product, error)
	UpdateProduct(ctx context.Context, id string, in model.ProductInput) (model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// Notifications возвращает накопленные всплывающие уведомления.
type Notifications interface {
	Drain() []notify.Notification
}

// Handler реализует HTTP-обработчики шлюза.
type Handler struct {
	service       Service
	notifications Notifications
	logger        *zap.Logger
	guard         *middleware.SessionGuard
	metrics       http.Handler
}

// NewHandler создаёт обработчики шлюза. metrics может быть nil.
func NewHandler(s Service, notifications Notifications, logger *zap.Logger, guard *middleware.SessionGuard, metrics http.Handler) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:       s,
		notifications: notifications,
		logger:        logger,
		guard:         guard,
		metrics:       metrics,
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку сценария в HTTP-ответ.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr      *validation.Error
		authErr   *pipeline.AuthExpiredError
		statusErr *pipeline.HTTPStatusError
		netErr    *pipeline.NetworkError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, service.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "session expired"})
	case errors.As(err, &statusErr):
		writeJSON(w, statusErr.StatusCode, errorResponse{Error: statusErr.Message})
	case errors.As(err, &netErr):
		h.logger.Warn("upstream unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: http.StatusText(http.StatusBadGateway)})
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &validation.Error{Fields: map[string]string{"body": "malformed JSON"}}
	}
	return nil
}

// GetCart возвращает содержимое корзины.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cartResponse(h.service.Cart()))
}

type cartView struct {
	model.CartState
	Subtotal float64 `json:"subtotal"`
}

func cartResponse(s model.CartState) cartView {
	if s.Lines == nil {
		s.Lines = []model.CartLine{}
	}
	return cartView{CartState: s, Subtotal: s.Subtotal()}
}

// AddCartItem добавляет товар в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var item model.CartItem
	if err := decodeBody(r, &item); err != nil {
		h.writeError(w, r, err)
		return
	}

	state, err := h.service.AddToCart(r.Context(), item)
	if err != nil {
		h.writeCartError(w, r, state, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(state))
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateCartItem меняет количество товара в корзине.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	state, err := h.service.UpdateCartQuantity(r.Context(), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		h.writeCartError(w, r, state, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(state))
}

// RemoveCartItem удаляет позицию из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.RemoveFromCart(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeCartError(w, r, state, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(state))
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.ClearCart(r.Context())
	if err != nil {
		h.writeCartError(w, r, state, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(state))
}

// writeCartError отвечает ошибкой проверки как 400. Ошибка сохранения корзины
// не мешает ответу: состояние в памяти уже изменено.
func (h *Handler) writeCartError(w http.ResponseWriter, r *http.Request, state model.CartState, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		h.writeError(w, r, err)
		return
	}
	h.logger.Warn("cart change not persisted", zap.Error(err))
	writeJSON(w, http.StatusOK, cartResponse(state))
}

type sessionResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          *model.Identity `json:"user,omitempty"`
}

// GetSession возвращает сведения о текущей сессии без токена.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s := h.service.Session()
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: s.Authenticated(), User: s.Identity})
}

// Login выполняет вход пользователя.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeBody(r, &creds); err != nil {
		h.writeError(w, r, err)
		return
	}

	s, err := h.service.Login(r.Context(), creds)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: s.Authenticated(), User: s.Identity})
}

// Logout завершает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		h.logger.Warn("logout not persisted", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Register регистрирует нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := decodeBody(r, &reg); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.service.Register(r.Context(), reg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// ChangePassword меняет пароль текущего пользователя.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var change model.PasswordChange
	if err := decodeBody(r, &change); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), change); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts возвращает страницу каталога.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params, err := productParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.service.Products(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetProduct возвращает товар.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Checkout оформляет заказ из корзины.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var in service.CheckoutInput
	if err := decodeBody(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.service.Checkout(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// MyOrders возвращает заказы текущего пользователя.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	params, err := orderParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.service.MyOrders(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetOrder возвращает заказ.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetPayment возвращает сведения о платеже по заказу.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Payment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// VerifyPayment запрашивает проверку платежа по заказу.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.VerifyPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Notifications возвращает и очищает накопленные уведомления.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	var list []notify.Notification
	if h.notifications != nil {
		list = h.notifications.Drain()
	}
	if list == nil {
		list = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func listParams(r *http.Request) (model.ListParams, error) {
	q := r.URL.Query()
	p := model.ListParams{Sort: q.Get("sort"), SearchTerm: q.Get("searchTerm")}

	var err error
	if p.Page, err = intParam(q.Get("page"), "page"); err != nil {
		return p, err
	}
	if p.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return p, err
	}
	return p, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &validation.Error{Fields: map[string]string{name: "must be a non-negative integer"}}
	}
	return n, nil
}

func floatParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return nil, &validation.Error{Fields: map[string]string{name: "must be a non-negative number"}}
	}
	return &f, nil
}

func productParams(r *http.Request) (model.ProductParams, error) {
	lp, err := listParams(r)
	if err != nil {
		return model.ProductParams{}, err
	}
	q := r.URL.Query()
	p := model.ProductParams{
		ListParams: lp,
		Brand:      q["brand"],
		Category:   q["category"],
		Model:      q["model"],
	}
	if p.MinPrice, err = floatParam(q.Get("minPrice"), "minPrice"); err != nil {
		return p, err
	}
	if p.MaxPrice, err = floatParam(q.Get("maxPrice"), "maxPrice"); err != nil {
		return p, err
	}
	return p, nil
}

func orderParams(r *http.Request) (model.OrderParams, error) {
	lp, err := listParams(r)
	if err != nil {
		return model.OrderParams{}, err
	}
	return model.OrderParams{ListParams: lp, Status: model.OrderStatus(r.URL.Query().Get("status"))}, nil
}

func userParams(r *http.Request) (model.UserParams, error) {
	lp, err := listParams(r)
	if err != nil {
		return model.UserParams{}, err
	}
	return model.UserParams{ListParams: lp, Role: model.Role(r.URL.Query().Get("role"))}, nil
}
