// Package pipeline содержит конвейер запросов: единственный HTTP-клиент удалённого API витрины.
//
// Конвейер подставляет токен текущей сессии, при ответе 401 один раз обновляет токен
// и повторяет запрос, а об ошибках 400/401/403/404 сообщает всплывающим уведомлением.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/mmeshcher/storefront/internal/metrics"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/notify"
)

const (
	// DefaultRefreshPath задаёт эндпоинт обновления токена по cookie.
	DefaultRefreshPath = "/auth/refresh-token"

	headerAuthorization = "authorization"
	headerRequestID     = "X-Request-ID"
)

// SessionStore описывает хранилище сессии, с которым работает конвейер.
type SessionStore interface {
	Session() model.Session
	// ReplaceToken заменяет токен, только если текущий равен old; пустой next завершает сессию.
	ReplaceToken(ctx context.Context, old, next string) (bool, error)
}

// errSessionChanged означает, что сессия сменилась, пока обновлялся токен.
var errSessionChanged = errors.New("session changed during token refresh")

// Notifier показывает пользователю всплывающие уведомления.
type Notifier interface {
	Notify(n notify.Notification)
}

// Request описывает запрос к API. Заголовок авторизации вызывающий не задаёт.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Public отключает авторизацию и обновление токена (вход, регистрация).
	Public bool
}

// Response содержит прочитанный ответ API.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config содержит параметры подключения к API.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshPath string
}

// Client выполняет запросы к API.
type Client struct {
	baseURL     string
	refreshPath string
	httpClient  *http.Client
	sessions    SessionStore
	notifier    Notifier
	logger      *zap.Logger
	limiter     *rate.Limiter
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	refreshes   singleflight.Group
}

// Option настраивает Client.
type Option func(*Client)

// WithRateLimit ограничивает частоту исходящих запросов.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient задаёт HTTP-клиент. Без cookie jar обновление токена по cookie не работает.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics включает учёт метрик.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer задаёт трассировщик OpenTelemetry.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// New создаёт конвейер запросов к API по адресу cfg.BaseURL.
func New(cfg Config, sessions SessionStore, notifier Notifier, logger *zap.Logger, opts ...Option) (*Client, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("api base url is empty")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	refreshPath := cfg.RefreshPath
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:     base,
		refreshPath: refreshPath,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("github.com/mmeshcher/storefront/internal/pipeline"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Execute выполняет запрос. Ответ с кодом вне 2xx возвращается как *HTTPStatusError,
// сбой транспорта как *NetworkError, неудачное обновление токена как *AuthExpiredError.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "storefront.api "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	resp, err := c.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code, ok := StatusCode(err); ok {
			span.SetAttributes(attribute.Int("http.response.status_code", code))
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (c *Client) execute(ctx context.Context, req Request) (*Response, error) {
	token := ""
	if !req.Public {
		token = c.sessions.Session().Token
	}

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.Public {
		newToken, err := c.recoverToken(ctx, token)
		switch {
		case err == nil:
			resp, err = c.send(ctx, req, newToken)
			if err != nil {
				return nil, err
			}
		case ctx.Err() != nil:
			return nil, &NetworkError{Op: req.Method + " " + req.Path, Err: ctx.Err()}
		case errors.Is(err, errSessionChanged):
			statusErr := newStatusError(resp)
			c.notify(statusErr)
			return nil, statusErr
		default:
			statusErr := newStatusError(resp)
			c.notify(statusErr)
			return nil, &AuthExpiredError{Cause: statusErr}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := newStatusError(resp)
		c.notify(statusErr)
		return nil, statusErr
	}

	return resp, nil
}

// recoverToken возвращает токен для единственного повторного запроса.
// Если другой запрос уже обновил токен, обращения к эндпоинту обновления не происходит.
// Одновременные вызовы разделяют одно обновление, которое не прерывается отменой
// контекста одного из них.
func (c *Client) recoverToken(ctx context.Context, used string) (string, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		switch current := c.sessions.Session().Token; {
		case current == used:
			return c.refresh(shared, used)
		case current == "":
			return nil, errSessionChanged
		default:
			return current, nil
		}
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	}
}

// refresh получает новый токен и подставляет его вместо used. Если за время обновления
// сессия изменилась (выход или новый вход), новый токен отбрасывается.
func (c *Client) refresh(ctx context.Context, used string) (string, error) {
	token, err := c.requestToken(ctx)
	if err != nil {
		c.metrics.ObserveRefresh(false)
		c.logger.Warn("token refresh failed, logging out", zap.Error(err))
		cleared, logoutErr := c.sessions.ReplaceToken(ctx, used, "")
		if logoutErr != nil {
			c.logger.Error("logout after failed refresh", zap.Error(logoutErr))
		}
		if !cleared {
			return "", errSessionChanged
		}
		return "", err
	}
	c.metrics.ObserveRefresh(true)

	// Данные пользователя берутся из текущей сессии, а не из нового токена.
	replaced, err := c.sessions.ReplaceToken(ctx, used, token)
	if err != nil {
		c.logger.Warn("persist refreshed session", zap.Error(err))
	}
	if !replaced {
		c.logger.Info("session changed during token refresh, new token discarded")
		return "", errSessionChanged
	}
	c.logger.Info("access token refreshed")

	return token, nil
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: c.refreshPath, Public: true}, "")
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newStatusError(resp)
	}

	token := gjson.GetBytes(resp.Body, "data.accessToken").String()
	if token == "" {
		token = gjson.GetBytes(resp.Body, "accessToken").String()
	}
	if token == "" {
		return "", errors.New("refresh response carries no access token")
	}
	return token, nil
}

func (c *Client) send(ctx context.Context, req Request, token string) (*Response, error) {
	op := req.Method + " " + req.Path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.metrics.ObserveError("rate_limit")
			return nil, &NetworkError{Op: op, Err: err}
		}
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set(headerAuthorization, token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveError("network")
		c.logger.Warn("api request failed", zap.String("op", op), zap.String("request_id", requestID), zap.Error(err))
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveError("network")
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	elapsed := time.Since(start)
	c.metrics.ObserveRequest(req.Method, resp.StatusCode, elapsed.Seconds())
	c.logger.Debug("api request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", elapsed),
		zap.String("request_id", requestID),
	)

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) notify(err *HTTPStatusError) {
	if c.notifier == nil || !notifiable(err.StatusCode) {
		return
	}
	c.notifier.Notify(notify.Notification{
		Level:      notify.LevelError,
		Message:    err.Message,
		StatusCode: err.StatusCode,
	})
}

func newStatusError(resp *Response) *HTTPStatusError {
	msg := ""
	if gjson.ValidBytes(resp.Body) {
		msg = gjson.GetBytes(resp.Body, "message").String()
		if msg == "" {
			msg = gjson.GetBytes(resp.Body, "error").String()
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPStatusError{StatusCode: resp.StatusCode, Message: msg, Body: resp.Body}
}
