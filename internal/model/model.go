// Package model содержит доменные сущности клиента витрины мото- и велотехники.
package model

import (
	"math"
	"time"
)

// Role описывает роль пользователя удалённого API.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity описывает пользователя, которому принадлежит текущий токен.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
}

// IsAdmin сообщает, обладает ли пользователь правами администратора.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Session содержит токен доступа и сведения о пользователе.
// Identity имеет смысл только при непустом Token.
type Session struct {
	Token    string    `json:"token,omitempty"`
	Identity *Identity `json:"user,omitempty"`
}

// Authenticated сообщает, есть ли у сессии токен доступа.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// CartItem описывает товар, добавляемый в корзину.
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
}

// CartLine описывает позицию корзины.
type CartLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

// CartState содержит позиции корзины в порядке добавления и общее количество товаров.
type CartState struct {
	Lines          []CartLine `json:"lines"`
	TotalItemCount int        `json:"totalItemCount"`
}

// Subtotal возвращает стоимость корзины, округлённую до копеек.
func (s CartState) Subtotal() float64 {
	var cents int64
	for _, l := range s.Lines {
		cents += int64(math.Round(l.UnitPrice*100)) * int64(l.Quantity)
	}
	return float64(cents) / 100
}

// Tag описывает категорию ресурсов для инвалидации кеша.
type Tag string

const (
	TagProducts Tag = "Products"
	TagOrders   Tag = "Orders"
	TagUsers    Tag = "Users"
	TagPayments Tag = "Payments"
)

// Meta содержит сведения о пагинации списка.
type Meta struct {
	Page      int `json:"page"`
	Limit     int `json:"limit"`
	Total     int `json:"total"`
	TotalPage int `json:"totalPage"`
}

// Page описывает нормализованный ответ списочного эндпоинта.
type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

// Product описывает товар каталога.
type Product struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	InStock     bool      `json:"inStock"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// ProductInput описывает данные для создания или изменения товара.
type ProductInput struct {
	Name        string   `json:"name,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Model       string   `json:"model,omitempty"`
	Category    string   `json:"category,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Quantity    *int     `json:"quantity,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
}

// OrderStatus описывает статус заказа на стороне API.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// OrderLine описывает позицию заказа.
type OrderLine struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// Transaction описывает платёж по заказу.
type Transaction struct {
	ID                string `json:"id"`
	TransactionStatus string `json:"transactionStatus"`
	BankStatus        string `json:"bank_status,omitempty"`
	Method            string `json:"method,omitempty"`
	DateTime          string `json:"date_time,omitempty"`
}

// Order описывает заказ пользователя.
type Order struct {
	ID          string       `json:"_id"`
	User        string       `json:"user"`
	Products    []OrderLine  `json:"products"`
	TotalPrice  float64      `json:"totalPrice"`
	Status      OrderStatus  `json:"status"`
	Transaction *Transaction `json:"transaction,omitempty"`
	CheckoutURL string       `json:"checkout_url,omitempty"`
	CreatedAt   time.Time    `json:"createdAt,omitempty"`
}

// OrderInput описывает данные для создания заказа.
type OrderInput struct {
	Products []OrderLine `json:"products"`
	Address  string      `json:"address,omitempty"`
	Phone    string      `json:"phone,omitempty"`
}

// Payment описывает результат проверки платежа по заказу.
type Payment struct {
	OrderID           string  `json:"order_id"`
	TransactionStatus string  `json:"transactionStatus"`
	Amount            float64 `json:"amount"`
	Method            string  `json:"method,omitempty"`
	DateTime          string  `json:"date_time,omitempty"`
}

// User описывает пользователя удалённого API.
type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsBlocked bool      `json:"isBlocked"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// UserInput описывает изменяемые поля пользователя.
type UserInput struct {
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role,omitempty"`
	IsBlocked *bool  `json:"isBlocked,omitempty"`
}

// Credentials описывает данные для входа.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration описывает данные для регистрации пользователя.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordChange описывает данные для смены пароля.
type PasswordChange struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
