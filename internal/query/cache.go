// Package query содержит слой запросов к ресурсам: кеш ответов API с инвалидацией по тегам
// и декларативные определения запросов и мутаций поверх конвейера.
package query

import (
	"sync"
	"time"

	"github.com/mmeshcher/storefront/internal/model"
)

// Status описывает состояние записи кеша.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusFulfilled
	StatusRejected
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	case StatusStale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// EntryView содержит копию записи кеша для наблюдения извне.
type EntryView struct {
	Key        string
	Status     Status
	Data       any
	Err        error
	Tags       []model.Tag
	FetchedAt  time.Time
	LastAccess time.Time
}

type entry struct {
	status     Status
	data       any
	err        error
	tags       []model.Tag
	fetchedAt  time.Time
	lastAccess time.Time
	// generation принадлежит последней начатой загрузке; ответы более ранних загрузок отбрасываются.
	generation uint64
	// invalidated отмечает инвалидацию во время загрузки: её ответ сохраняется устаревшим.
	invalidated bool
}

// Cache хранит результаты запросов по ключу (эндпоинт + аргументы).
// Записи изменяются только через методы Cache.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*entry
	generations uint64
	now         func() time.Time
}

// NewCache создаёт пустой кеш.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry), now: time.Now}
}

// Lookup возвращает данные актуальной записи. Устаревшие, отклонённые и загружающиеся записи считаются промахом.
func (c *Cache) Lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e.lastAccess = c.now()
	if e.status != StatusFulfilled {
		return nil, false
	}
	return e.data, true
}

// Begin переводит запись в состояние загрузки и возвращает поколение этой загрузки.
// Поколения не повторяются, в том числе после Reset. Прежние данные сохраняются до завершения загрузки.
func (c *Cache) Begin(key string, tags []model.Tag) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	c.generations++
	e.generation = c.generations
	e.invalidated = false
	e.status = StatusLoading
	e.err = nil
	e.tags = append([]model.Tag(nil), tags...)
	e.lastAccess = c.now()
	return e.generation
}

// Fulfill сохраняет успешный ответ загрузки generation. Если запись была инвалидирована
// после Begin, данные сохраняются в состоянии Stale и будут перезапрошены при следующем обращении.
// Ответ игнорируется, если запись удалена или после него начата новая загрузка.
func (c *Cache) Fulfill(key string, generation uint64, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.generation != generation {
		return
	}
	e.data = data
	e.err = nil
	e.fetchedAt = c.now()
	if e.invalidated {
		e.status = StatusStale
	} else {
		e.status = StatusFulfilled
	}
	e.invalidated = false
}

// Reject фиксирует ошибку загрузки generation. Данные в кеш не попадают; следующий запрос снова идёт в сеть.
func (c *Cache) Reject(key string, generation uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.generation != generation {
		return
	}
	e.invalidated = false
	e.status = StatusRejected
	e.data = nil
	e.err = err
}

// Invalidate помечает устаревшими все записи, теги которых пересекаются с tags,
// и возвращает их ключи.
func (c *Cache) Invalidate(tags ...model.Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	wanted := make(map[model.Tag]struct{}, len(tags))
	for _, t := range tags {
		wanted[t] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for key, e := range c.entries {
		if !intersects(e.tags, wanted) {
			continue
		}
		switch e.status {
		case StatusFulfilled:
			e.status = StatusStale
		case StatusLoading:
			e.invalidated = true
		default:
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func intersects(tags []model.Tag, wanted map[model.Tag]struct{}) bool {
	for _, t := range tags {
		if _, ok := wanted[t]; ok {
			return true
		}
	}
	return false
}

// Evict удаляет запись.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Prune удаляет записи, к которым не обращались дольше idle, и возвращает их число.
// Загружающиеся записи не удаляются.
func (c *Cache) Prune(idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-idle)
	removed := 0
	for key, e := range c.entries {
		if e.status == StatusLoading || !e.lastAccess.Before(cutoff) {
			continue
		}
		delete(c.entries, key)
		removed++
	}
	return removed
}

// Reset удаляет все записи.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len возвращает число записей.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entry возвращает копию записи по ключу.
func (c *Cache) Entry(key string) (EntryView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return EntryView{Key: key, Status: StatusUninitialized}, false
	}
	return EntryView{
		Key:        key,
		Status:     e.status,
		Data:       e.data,
		Err:        e.err,
		Tags:       append([]model.Tag(nil), e.tags...),
		FetchedAt:  e.fetchedAt,
		LastAccess: e.lastAccess,
	}, true
}
