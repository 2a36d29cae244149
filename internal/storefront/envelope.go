package storefront

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mmeshcher/storefront/internal/model"
)

var errUnexpectedEnvelope = errors.New("unexpected response envelope")

// decodePage приводит списочный ответ к model.Page. Поддерживаются формы
// {data: [...], meta}, {data: {result: [...], meta}}, {data: {data: [...], meta}} и голый массив.
func decodePage[T any](body []byte) (model.Page[T], error) {
	var page model.Page[T]
	if !gjson.ValidBytes(body) {
		return page, fmt.Errorf("%w: invalid json", errUnexpectedEnvelope)
	}

	root := gjson.ParseBytes(body)
	var list, meta gjson.Result
	switch {
	case root.IsArray():
		list = root
	case root.Get("data").IsArray():
		list, meta = root.Get("data"), root.Get("meta")
	case root.Get("data.result").IsArray():
		list, meta = root.Get("data.result"), root.Get("data.meta")
	case root.Get("data.data").IsArray():
		list, meta = root.Get("data.data"), root.Get("data.meta")
	default:
		return page, fmt.Errorf("%w: no list in response", errUnexpectedEnvelope)
	}

	if err := json.Unmarshal([]byte(list.Raw), &page.Data); err != nil {
		return page, fmt.Errorf("decode list: %w", err)
	}
	if meta.IsObject() {
		if err := json.Unmarshal([]byte(meta.Raw), &page.Meta); err != nil {
			return page, fmt.Errorf("decode meta: %w", err)
		}
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	return page, nil
}

// decodeOne извлекает ресурс из {data: T} или голого T.
func decodeOne[T any](body []byte) (T, error) {
	var v T
	if !gjson.ValidBytes(body) {
		return v, fmt.Errorf("%w: invalid json", errUnexpectedEnvelope)
	}

	raw := body
	if data := gjson.GetBytes(body, "data"); data.IsObject() {
		raw = []byte(data.Raw)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode resource: %w", err)
	}
	return v, nil
}

// decodeToken извлекает токен доступа из ответа входа.
func decodeToken(body []byte) (string, error) {
	for _, path := range []string{"data.accessToken", "accessToken", "data.token", "token"} {
		if token := gjson.GetBytes(body, path).String(); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%w: no access token", errUnexpectedEnvelope)
}
