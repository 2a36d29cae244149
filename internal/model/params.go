package model

import (
	"net/url"
	"strconv"
)

// ListParams содержит общие параметры пагинации, сортировки и поиска.
type ListParams struct {
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Sort       string `json:"sort,omitempty"`
	SearchTerm string `json:"searchTerm,omitempty"`
}

// Values возвращает параметры в виде плоских пар ключ-значение. Пустые значения опускаются.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.SearchTerm != "" {
		v.Set("searchTerm", p.SearchTerm)
	}
	return v
}

// ProductParams содержит параметры выборки каталога.
// Многозначные фильтры сериализуются повторяющимися ключами.
type ProductParams struct {
	ListParams
	Brand    []string `json:"brand,omitempty"`
	Category []string `json:"category,omitempty"`
	Model    []string `json:"model,omitempty"`
	MinPrice *float64 `json:"minPrice,omitempty"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
}

// Values возвращает параметры выборки каталога для строки запроса.
func (p ProductParams) Values() url.Values {
	v := p.ListParams.Values()
	for _, b := range p.Brand {
		v.Add("brand", b)
	}
	for _, c := range p.Category {
		v.Add("category", c)
	}
	for _, m := range p.Model {
		v.Add("model", m)
	}
	if p.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*p.MinPrice, 'f', -1, 64))
	}
	if p.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*p.MaxPrice, 'f', -1, 64))
	}
	return v
}

// OrderParams содержит параметры выборки заказов.
type OrderParams struct {
	ListParams
	Status OrderStatus `json:"status,omitempty"`
}

// Values возвращает параметры выборки заказов для строки запроса.
func (p OrderParams) Values() url.Values {
	v := p.ListParams.Values()
	if p.Status != "" {
		v.Set("status", string(p.Status))
	}
	return v
}

// UserParams содержит параметры выборки пользователей.
type UserParams struct {
	ListParams
	Role Role `json:"role,omitempty"`
}

// Values возвращает параметры выборки пользователей для строки запроса.
func (p UserParams) Values() url.Values {
	v := p.ListParams.Values()
	if p.Role != "" {
		v.Set("role", string(p.Role))
	}
	return v
}
