package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError описывает сбой транспорта до получения ответа.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError описывает ответ API с кодом вне диапазона 2xx.
type HTTPStatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// AuthExpiredError возвращается, если на 401 не удалось обновить токен. Сессия к этому моменту очищена.
type AuthExpiredError struct {
	Cause *HTTPStatusError
}

func (e *AuthExpiredError) Error() string {
	return "session expired: " + e.Cause.Error()
}

func (e *AuthExpiredError) Unwrap() error {
	return e.Cause
}

// StatusCode возвращает HTTP-код из ошибки конвейера, если он есть.
func StatusCode(err error) (int, bool) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// IsNotFound сообщает, что API ответил 404.
func IsNotFound(err error) bool {
	code, ok := StatusCode(err)
	return ok && code == http.StatusNotFound
}

// IsAuthExpired сообщает, что сессия была завершена из-за неудачного обновления токена.
func IsAuthExpired(err error) bool {
	var authErr *AuthExpiredError
	return errors.As(err, &authErr)
}

func notifiable(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}
