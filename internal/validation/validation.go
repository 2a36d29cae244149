// Package validation содержит проверки пользовательского ввода, выполняемые до обращения к API.
package validation

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/mmeshcher/storefront/internal/model"
)

const minPasswordLength = 6

// Error содержит ошибки отдельных полей формы.
type Error struct {
	Fields map[string]string `json:"fields"`
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type collector struct {
	fields map[string]string
}

func (c *collector) add(field, msg string) {
	if c.fields == nil {
		c.fields = make(map[string]string)
	}
	if _, exists := c.fields[field]; !exists {
		c.fields[field] = msg
	}
}

func (c *collector) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &Error{Fields: c.fields}
}

// IsValidEmail проверяет адрес электронной почты.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Credentials проверяет данные формы входа.
func Credentials(c model.Credentials) error {
	var v collector
	if !IsValidEmail(c.Email) {
		v.add("email", "invalid email address")
	}
	if c.Password == "" {
		v.add("password", "password is required")
	}
	return v.err()
}

// Registration проверяет данные формы регистрации.
func Registration(r model.Registration) error {
	var v collector
	if strings.TrimSpace(r.Name) == "" {
		v.add("name", "name is required")
	}
	if !IsValidEmail(r.Email) {
		v.add("email", "invalid email address")
	}
	if len(r.Password) < minPasswordLength {
		v.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return v.err()
}

// PasswordChange проверяет данные формы смены пароля.
func PasswordChange(p model.PasswordChange) error {
	var v collector
	if p.OldPassword == "" {
		v.add("oldPassword", "current password is required")
	}
	if len(p.NewPassword) < minPasswordLength {
		v.add("newPassword", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	} else if p.NewPassword == p.OldPassword {
		v.add("newPassword", "new password must differ from the current one")
	}
	return v.err()
}

// CartItem проверяет товар перед добавлением в корзину.
func CartItem(item model.CartItem) error {
	var v collector
	if strings.TrimSpace(item.ProductID) == "" {
		v.add("productId", "product id is required")
	}
	if item.Price < 0 {
		v.add("price", "price must not be negative")
	}
	return v.err()
}

// Checkout проверяет данные оформления заказа.
func Checkout(address, phone string) error {
	var v collector
	if strings.TrimSpace(address) == "" {
		v.add("address", "delivery address is required")
	}
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			v.add("phone", "phone may contain digits only")
		}
	}
	if digits < 7 {
		v.add("phone", "phone number is too short")
	}
	return v.err()
}

// ProductInput проверяет данные товара. При create все основные поля обязательны.
func ProductInput(p model.ProductInput, create bool) error {
	var v collector
	if create {
		if strings.TrimSpace(p.Name) == "" {
			v.add("name", "name is required")
		}
		if strings.TrimSpace(p.Brand) == "" {
			v.add("brand", "brand is required")
		}
		if p.Price == nil {
			v.add("price", "price is required")
		}
		if p.Quantity == nil {
			v.add("quantity", "quantity is required")
		}
	}
	if p.Price != nil && *p.Price < 0 {
		v.add("price", "price must not be negative")
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		v.add("quantity", "quantity must not be negative")
	}
	return v.err()
}
