package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/storefront/internal/model"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"rider@example.com", true},
		{"", false},
		{"rider", false},
		{"rider @example.com", false},
		{"Rider <rider@example.com>", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidEmail(tt.email))
		})
	}
}

func TestRegistration(t *testing.T) {
	err := Registration(model.Registration{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	err = Registration(model.Registration{Name: " ", Email: "bad", Password: "123"})
	require.Error(t, err)

	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Fields, 3)
	assert.Contains(t, vErr.Fields, "name")
	assert.Contains(t, vErr.Fields, "email")
	assert.Contains(t, vErr.Fields, "password")
	assert.Equal(t, "validation failed: email: invalid email address; name: name is required; password: password must be at least 6 characters", err.Error())
}

func TestPasswordChange(t *testing.T) {
	require.NoError(t, PasswordChange(model.PasswordChange{OldPassword: "old-pass", NewPassword: "new-pass"}))

	err := PasswordChange(model.PasswordChange{OldPassword: "same-pass", NewPassword: "same-pass"})
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Fields, "newPassword")
}

func TestCartItem(t *testing.T) {
	require.NoError(t, CartItem(model.CartItem{ProductID: "p1", Price: 0}))

	err := CartItem(model.CartItem{ProductID: "", Price: -1})
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Fields, 2)
}

func TestCheckout(t *testing.T) {
	require.NoError(t, Checkout("Main st. 1", "+7 (900) 123-45-67"))

	err := Checkout("", "12ab")
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Fields, "address")
	assert.Equal(t, "phone may contain digits only", vErr.Fields["phone"])
}

func TestProductInput(t *testing.T) {
	price := 10.0
	qty := 3
	negative := -1

	require.NoError(t, ProductInput(model.ProductInput{Name: "X1", Brand: "Trek", Price: &price, Quantity: &qty}, true))
	require.NoError(t, ProductInput(model.ProductInput{Quantity: &qty}, false))

	err := ProductInput(model.ProductInput{Quantity: &negative}, false)
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Fields, "quantity")

	err = ProductInput(model.ProductInput{}, true)
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Fields, 4)
}
