package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/storefront/internal/metrics"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/pipeline"
)

// DefaultKeepUnusedFor задаёт, сколько хранится запись, к которой никто не обращается.
const DefaultKeepUnusedFor = 60 * time.Second

// Executor выполняет запросы к API. Реализуется конвейером запросов.
type Executor interface {
	Execute(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// Layer объединяет кеш, исполнитель запросов и подавление дублирующихся загрузок.
type Layer struct {
	exec       Executor
	cache      *Cache
	flights    singleflight.Group
	// epoch меняется при Reset: загрузки, начатые до сброса, не разделяются с последующими.
	epoch      atomic.Uint64
	logger     *zap.Logger
	metrics    *metrics.Metrics
	keepUnused time.Duration
}

// LayerOption настраивает Layer.
type LayerOption func(*Layer)

// WithMetrics включает учёт метрик кеша.
func WithMetrics(m *metrics.Metrics) LayerOption {
	return func(l *Layer) {
		l.metrics = m
	}
}

// WithKeepUnusedFor задаёт время жизни неиспользуемых записей.
func WithKeepUnusedFor(d time.Duration) LayerOption {
	return func(l *Layer) {
		if d > 0 {
			l.keepUnused = d
		}
	}
}

// NewLayer создаёт слой запросов поверх exec.
func NewLayer(exec Executor, logger *zap.Logger, opts ...LayerOption) *Layer {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Layer{
		exec:       exec,
		cache:      NewCache(),
		logger:     logger,
		keepUnused: DefaultKeepUnusedFor,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Cache возвращает кеш слоя.
func (l *Layer) Cache() *Cache {
	return l.cache
}

// Invalidate помечает устаревшими записи с любым из тегов. Запросы, начатые после
// инвалидации, не присоединяются к уже идущим загрузкам этих записей.
func (l *Layer) Invalidate(tags ...model.Tag) {
	total := 0
	for _, tag := range tags {
		keys := l.cache.Invalidate(tag)
		for _, key := range keys {
			l.flights.Forget(l.flightKey(key))
		}
		l.metrics.Invalidated(string(tag), len(keys))
		total += len(keys)
	}
	if total > 0 {
		l.logger.Debug("cache entries invalidated", zap.Any("tags", tags), zap.Int("entries", total))
	}
}

// Reset очищает кеш. Вызывается при выходе пользователя.
func (l *Layer) Reset() {
	l.epoch.Add(1)
	l.cache.Reset()
	l.metrics.SetEntries(0)
	l.logger.Debug("cache reset")
}

func (l *Layer) flightKey(key string) string {
	return strconv.FormatUint(l.epoch.Load(), 10) + "|" + key
}

// StartJanitor запускает фоновое удаление записей, не использовавшихся дольше KeepUnusedFor.
func (l *Layer) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.keepUnused
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.cache.Prune(l.keepUnused); n > 0 {
					l.logger.Debug("unused cache entries pruned", zap.Int("entries", n))
				}
				l.metrics.SetEntries(l.cache.Len())
			}
		}
	}()
}

// Query описывает кешируемый запрос к эндпоинту с аргументами A и результатом R.
type Query[A, R any] struct {
	layer     *Layer
	name      string
	build     func(A) pipeline.Request
	transform func([]byte) (R, error)
	tags      []model.Tag
}

// DefineQuery объявляет запрос. Результаты снабжаются тегами tags для инвалидации.
func DefineQuery[A, R any](l *Layer, name string, build func(A) pipeline.Request, transform func([]byte) (R, error), tags ...model.Tag) *Query[A, R] {
	return &Query[A, R]{
		layer:     l,
		name:      name,
		build:     build,
		transform: transform,
		tags:      tags,
	}
}

// Key возвращает ключ кеша для аргументов.
func (q *Query[A, R]) Key(args A) string {
	return cacheKey(q.name, args)
}

// Fetch возвращает результат из кеша или загружает его.
// Одновременные вызовы с одинаковыми аргументами выполняют один сетевой запрос.
func (q *Query[A, R]) Fetch(ctx context.Context, args A) (R, error) {
	key := q.Key(args)
	if v, ok := q.layer.cache.Lookup(key); ok {
		q.layer.metrics.Hit(q.name)
		result, _ := v.(R)
		return result, nil
	}
	return q.load(ctx, key, args, false)
}

// Refetch загружает результат заново, минуя кеш.
func (q *Query[A, R]) Refetch(ctx context.Context, args A) (R, error) {
	return q.load(ctx, q.Key(args), args, true)
}

func (q *Query[A, R]) load(ctx context.Context, key string, args A, force bool) (R, error) {
	var zero R

	// Загрузка не прерывается отменой одного из ожидающих.
	detached := context.WithoutCancel(ctx)
	var leader atomic.Bool

	ch := q.layer.flights.DoChan(q.layer.flightKey(key), func() (any, error) {
		leader.Store(true)
		if !force {
			if v, ok := q.layer.cache.Lookup(key); ok {
				return v, nil
			}
		}
		return q.fetch(detached, key, args)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if !leader.Load() {
			q.layer.metrics.SharedWait(q.name)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		result, _ := res.Val.(R)
		return result, nil
	}
}

func (q *Query[A, R]) fetch(ctx context.Context, key string, args A) (any, error) {
	l := q.layer
	l.metrics.Miss(q.name)

	generation := l.cache.Begin(key, q.tags)
	defer func() { l.metrics.SetEntries(l.cache.Len()) }()

	resp, err := l.exec.Execute(ctx, q.build(args))
	if err != nil {
		l.cache.Reject(key, generation, err)
		l.logger.Debug("query failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	result, err := decode(q.transform, resp.Body)
	if err != nil {
		err = fmt.Errorf("%s: %w", q.name, err)
		l.cache.Reject(key, generation, err)
		return nil, err
	}

	l.cache.Fulfill(key, generation, result)
	return result, nil
}

// Mutation описывает запрос, изменяющий данные на сервере. После успешного ответа
// инвалидирует записи кеша с тегами invalidates.
type Mutation[A, R any] struct {
	layer       *Layer
	name        string
	build       func(A) pipeline.Request
	transform   func([]byte) (R, error)
	invalidates []model.Tag
}

// DefineMutation объявляет мутацию.
func DefineMutation[A, R any](l *Layer, name string, build func(A) pipeline.Request, transform func([]byte) (R, error), invalidates ...model.Tag) *Mutation[A, R] {
	return &Mutation[A, R]{
		layer:       l,
		name:        name,
		build:       build,
		transform:   transform,
		invalidates: invalidates,
	}
}

// Do выполняет мутацию. При ошибке кеш не изменяется.
func (m *Mutation[A, R]) Do(ctx context.Context, args A) (R, error) {
	var zero R

	resp, err := m.layer.exec.Execute(ctx, m.build(args))
	if err != nil {
		return zero, err
	}

	m.layer.Invalidate(m.invalidates...)

	result, err := decode(m.transform, resp.Body)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", m.name, err)
	}
	return result, nil
}

func decode[R any](transform func([]byte) (R, error), body []byte) (R, error) {
	if transform == nil {
		var zero R
		return zero, nil
	}
	result, err := transform(body)
	if err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

func cacheKey(name string, args any) string {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%s(%#v)", name, args)
	}
	return name + "(" + string(payload) + ")"
}
