// Package storefront описывает эндпоинты удалённого API витрины поверх слоя запросов:
// какие запросы кешируются, какими тегами помечаются и какие теги инвалидируют мутации.
package storefront

import (
	"net/http"
	"net/url"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/pipeline"
	"github.com/mmeshcher/storefront/internal/query"
)

// UserUpdate описывает изменение пользователя администратором.
type UserUpdate struct {
	ID    string          `json:"id"`
	Input model.UserInput `json:"input"`
}

// ProductUpdate описывает изменение товара.
type ProductUpdate struct {
	ID    string             `json:"id"`
	Input model.ProductInput `json:"input"`
}

// StatusUpdate описывает смену статуса заказа.
type StatusUpdate struct {
	ID     string            `json:"id"`
	Status model.OrderStatus `json:"status"`
}

// API содержит все эндпоинты витрины.
type API struct {
	Products *query.Query[model.ProductParams, model.Page[model.Product]]
	Product  *query.Query[string, model.Product]
	Orders   *query.Query[model.OrderParams, model.Page[model.Order]]
	MyOrders *query.Query[model.OrderParams, model.Page[model.Order]]
	Order    *query.Query[string, model.Order]
	Payment  *query.Query[string, model.Payment]
	Users    *query.Query[model.UserParams, model.Page[model.User]]
	User     *query.Query[string, model.User]

	Login             *query.Mutation[model.Credentials, string]
	Register          *query.Mutation[model.Registration, model.User]
	ChangePassword    *query.Mutation[model.PasswordChange, struct{}]
	UpdateUser        *query.Mutation[UserUpdate, model.User]
	DeleteUser        *query.Mutation[string, struct{}]
	CreateProduct     *query.Mutation[model.ProductInput, model.Product]
	UpdateProduct     *query.Mutation[ProductUpdate, model.Product]
	DeleteProduct     *query.Mutation[string, struct{}]
	CreateOrder       *query.Mutation[model.OrderInput, model.Order]
	UpdateOrderStatus *query.Mutation[StatusUpdate, model.Order]
	VerifyPayment     *query.Mutation[string, model.Payment]
	DeleteOrder       *query.Mutation[string, struct{}]
}

// New объявляет эндпоинты витрины в слое l.
func New(l *query.Layer) *API {
	return &API{
		Products: query.DefineQuery(l, "getAllProducts", func(p model.ProductParams) pipeline.Request {
			return get("/products", p.Values())
		}, decodePage[model.Product], model.TagProducts),
		Product: query.DefineQuery(l, "getSingleProduct", func(id string) pipeline.Request {
			return get(resource("/products", id), nil)
		}, decodeOne[model.Product], model.TagProducts),
		Orders: query.DefineQuery(l, "getAllOrders", func(p model.OrderParams) pipeline.Request {
			return get("/orders", p.Values())
		}, decodePage[model.Order], model.TagOrders),
		MyOrders: query.DefineQuery(l, "getMyOrders", func(p model.OrderParams) pipeline.Request {
			return get("/orders/my-orders", p.Values())
		}, decodePage[model.Order], model.TagOrders),
		Order: query.DefineQuery(l, "getSingleOrder", func(id string) pipeline.Request {
			return get(resource("/orders", id), nil)
		}, decodeOne[model.Order], model.TagOrders),
		Payment: query.DefineQuery(l, "getPayment", func(orderID string) pipeline.Request {
			return get(resource("/orders", orderID)+"/payment", nil)
		}, decodeOne[model.Payment], model.TagPayments),
		Users: query.DefineQuery(l, "getAllUsers", func(p model.UserParams) pipeline.Request {
			return get("/users", p.Values())
		}, decodePage[model.User], model.TagUsers),
		User: query.DefineQuery(l, "getSingleUser", func(id string) pipeline.Request {
			return get(resource("/users", id), nil)
		}, decodeOne[model.User], model.TagUsers),

		Login: query.DefineMutation(l, "login", func(c model.Credentials) pipeline.Request {
			return pipeline.Request{Method: http.MethodPost, Path: "/auth/login", Body: c, Public: true}
		}, decodeToken),
		Register: query.DefineMutation(l, "register", func(r model.Registration) pipeline.Request {
			return pipeline.Request{Method: http.MethodPost, Path: "/users/register", Body: r, Public: true}
		}, decodeOne[model.User], model.TagUsers),
		ChangePassword: query.DefineMutation[model.PasswordChange, struct{}](l, "changePassword", func(p model.PasswordChange) pipeline.Request {
			return pipeline.Request{Method: http.MethodPost, Path: "/users/change-password", Body: p}
		}, nil),
		UpdateUser: query.DefineMutation(l, "updateUser", func(u UserUpdate) pipeline.Request {
			return pipeline.Request{Method: http.MethodPatch, Path: resource("/users", u.ID), Body: u.Input}
		}, decodeOne[model.User], model.TagUsers),
		DeleteUser: query.DefineMutation[string, struct{}](l, "deleteUser", func(id string) pipeline.Request {
			return pipeline.Request{Method: http.MethodDelete, Path: resource("/users", id)}
		}, nil, model.TagUsers),
		CreateProduct: query.DefineMutation(l, "createProduct", func(p model.ProductInput) pipeline.Request {
			return pipeline.Request{Method: http.MethodPost, Path: "/products", Body: p}
		}, decodeOne[model.Product], model.TagProducts),
		UpdateProduct: query.DefineMutation(l, "updateProduct", func(p ProductUpdate) pipeline.Request {
			return pipeline.Request{Method: http.MethodPatch, Path: resource("/products", p.ID), Body: p.Input}
		}, decodeOne[model.Product], model.TagProducts),
		DeleteProduct: query.DefineMutation[string, struct{}](l, "deleteProduct", func(id string) pipeline.Request {
			return pipeline.Request{Method: http.MethodDelete, Path: resource("/products", id)}
		}, nil, model.TagProducts),
		CreateOrder: query.DefineMutation(l, "createOrder", func(o model.OrderInput) pipeline.Request {
			return pipeline.Request{Method: http.MethodPost, Path: "/orders", Body: o}
		}, decodeOne[model.Order], model.TagOrders, model.TagProducts),
		UpdateOrderStatus: query.DefineMutation(l, "updateOrderStatus", func(s StatusUpdate) pipeline.Request {
			return pipeline.Request{
				Method: http.MethodPatch,
				Path:   resource("/orders", s.ID) + "/status",
				Body:   map[string]model.OrderStatus{"status": s.Status},
			}
		}, decodeOne[model.Order], model.TagOrders),
		VerifyPayment: query.DefineMutation(l, "verifyPayment", func(orderID string) pipeline.Request {
			return pipeline.Request{Method: http.MethodPatch, Path: resource("/orders", orderID) + "/payment"}
		}, decodeOne[model.Payment], model.TagOrders, model.TagPayments),
		DeleteOrder: query.DefineMutation[string, struct{}](l, "deleteOrder", func(id string) pipeline.Request {
			return pipeline.Request{Method: http.MethodDelete, Path: resource("/orders", id)}
		}, nil, model.TagOrders),
	}
}

func get(path string, params url.Values) pipeline.Request {
	return pipeline.Request{Method: http.MethodGet, Path: path, Query: params}
}

func resource(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}
