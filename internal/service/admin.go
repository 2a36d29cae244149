package service

import (
	"context"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/storefront"
	"github.com/mmeshcher/storefront/internal/validation"
)

// Orders возвращает все заказы магазина.
func (s *Service) Orders(ctx context.Context, params model.OrderParams) (model.Page[model.Order], error) {
	return s.api.Orders.Fetch(ctx, params)
}

// UpdateOrderStatus меняет статус заказа.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	switch status {
	case model.OrderStatusPending, model.OrderStatusPaid, model.OrderStatusShipped,
		model.OrderStatusCompleted, model.OrderStatusCancelled:
	default:
		return model.Order{}, &validation.Error{Fields: map[string]string{"status": "unknown order status"}}
	}
	return s.api.UpdateOrderStatus.Do(ctx, storefront.StatusUpdate{ID: id, Status: status})
}

// DeleteOrder удаляет заказ.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	_, err := s.api.DeleteOrder.Do(ctx, id)
	return err
}

// Users возвращает пользователей.
func (s *Service) Users(ctx context.Context, params model.UserParams) (model.Page[model.User], error) {
	return s.api.Users.Fetch(ctx, params)
}

// UpdateUser меняет роль или блокировку пользователя.
func (s *Service) UpdateUser(ctx context.Context, id string, in model.UserInput) (model.User, error) {
	return s.api.UpdateUser.Do(ctx, storefront.UserUpdate{ID: id, Input: in})
}

// DeleteUser удаляет пользователя.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	_, err := s.api.DeleteUser.Do(ctx, id)
	return err
}

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(ctx context.Context, in model.ProductInput) (model.Product, error) {
	if err := validation.ProductInput(in, true); err != nil {
		return model.Product{}, err
	}
	return s.api.CreateProduct.Do(ctx, in)
}

// UpdateProduct изменяет товар.
func (s *Service) UpdateProduct(ctx context.Context, id string, in model.ProductInput) (model.Product, error) {
	if err := validation.ProductInput(in, false); err != nil {
		return model.Product{}, err
	}
	return s.api.UpdateProduct.Do(ctx, storefront.ProductUpdate{ID: id, Input: in})
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.api.DeleteProduct.Do(ctx, id)
	return err
}
