package paging

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Manager is the page state machine for one list view. It never fetches by
// itself; every load goes through the DataSource.
//
// Failed loads leave page, filters and items untouched so that a retry
// resumes from the same position. Loads started before a Reset complete
// without touching state.
type Manager[T any] struct {
	mu     sync.Mutex
	source DataSource[T]
	logger *zap.Logger

	currentPage int
	filters     Filters
	items       []T
	pagination  *Pagination
	loading     bool
	loadingMore bool
	generation  uint64

	observers []func(State[T])
}

func NewManager[T any](source DataSource[T], logger *zap.Logger) *Manager[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager[T]{
		source:      source,
		logger:      logger.Named("paging"),
		currentPage: 1,
		filters:     Filters{},
	}
}

// Observe registers fn to be called with a fresh snapshot after every state
// change.
func (m *Manager[T]) Observe(fn func(State[T])) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// SetFilters replaces the filter set and rewinds to page 1.
func (m *Manager[T]) SetFilters(filters Filters) {
	m.mu.Lock()
	m.filters = filters.Clone()
	m.currentPage = 1
	m.mu.Unlock()

	m.notify()
}

// ApplyResult replaces the held items, or appends to them when append is
// set, and moves to the page reported by pagination.
func (m *Manager[T]) ApplyResult(items []T, pagination Pagination, appendItems bool) {
	m.mu.Lock()
	m.applyResult(items, pagination, appendItems)
	m.mu.Unlock()

	m.notify()
}

func (m *Manager[T]) applyResult(items []T, pagination Pagination, appendItems bool) {
	if appendItems {
		m.items = append(m.items, items...)
	} else {
		m.items = slices.Clone(items)
	}
	m.pagination = &pagination
	m.currentPage = max(pagination.CurrentPage, 1)
}

func (m *Manager[T]) CanLoadNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.canLoadNext()
}

func (m *Manager[T]) canLoadNext() bool {
	return m.pagination != nil &&
		m.currentPage < m.pagination.LastPage &&
		!m.loadingMore
}

func (m *Manager[T]) CanLoadPrevious() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.canLoadPrevious()
}

func (m *Manager[T]) canLoadPrevious() bool {
	return m.currentPage > 1 && !m.loadingMore
}

// Load replaces the list with the first page for filters.
func (m *Manager[T]) Load(ctx context.Context, filters Filters) error {
	return m.LoadItems(ctx, filters, 1, false)
}

// LoadItems fetches one page. On success a replace load also adopts filters
// as the current filter set.
func (m *Manager[T]) LoadItems(ctx context.Context, filters Filters, page int, appendItems bool) error {
	if page < 1 {
		page = 1
	}
	filters = filters.Clone()

	m.mu.Lock()
	m.setBusy(appendItems, true)
	generation := m.generation
	m.mu.Unlock()
	m.notify()

	return m.fetch(ctx, generation, filters, page, appendItems)
}

func (m *Manager[T]) fetch(ctx context.Context, generation uint64, filters Filters, page int, appendItems bool) error {
	m.logger.Debug("loading page",
		zap.Int("page", page),
		zap.Bool("append", appendItems),
		zap.Strings("filters", filters.Active()),
	)

	items, pagination, err := m.source.LoadPage(ctx, page, filters)

	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarding page loaded before reset",
			zap.Int("page", page),
			zap.Bool("append", appendItems),
		)
		return err
	}
	m.setBusy(appendItems, false)
	if err == nil {
		if !appendItems {
			m.filters = filters
		}
		m.applyResult(items, pagination, appendItems)
	}
	m.mu.Unlock()
	m.notify()

	if err != nil {
		m.logger.Warn("page load failed",
			zap.Int("page", page),
			zap.Bool("append", appendItems),
			zap.Error(err),
		)
		return err
	}

	m.logger.Debug("page loaded",
		zap.Int("page", pagination.CurrentPage),
		zap.Int("last_page", pagination.LastPage),
		zap.Int("received", len(items)),
	)
	return nil
}

func (m *Manager[T]) setBusy(appendItems, busy bool) {
	if appendItems {
		m.loadingMore = busy
	} else {
		m.loading = busy
	}
}

// LoadNext appends the following page. It is a logged no-op when
// CanLoadNext is false.
func (m *Manager[T]) LoadNext(ctx context.Context) error {
	m.mu.Lock()
	if !m.canLoadNext() {
		m.logSkip("next")
		m.mu.Unlock()
		return nil
	}
	page := m.currentPage + 1
	filters := m.filters.Clone()
	m.loadingMore = true
	generation := m.generation
	m.mu.Unlock()
	m.notify()

	return m.fetch(ctx, generation, filters, page, true)
}

// LoadPrevious replaces the list with the preceding page. It is a logged
// no-op when CanLoadPrevious is false.
func (m *Manager[T]) LoadPrevious(ctx context.Context) error {
	m.mu.Lock()
	if !m.canLoadPrevious() {
		m.logSkip("previous")
		m.mu.Unlock()
		return nil
	}
	page := m.currentPage - 1
	filters := m.filters.Clone()
	m.loading = true
	generation := m.generation
	m.mu.Unlock()
	m.notify()

	return m.fetch(ctx, generation, filters, page, false)
}

// Refresh reloads page 1 with the current filters.
func (m *Manager[T]) Refresh(ctx context.Context) error {
	m.mu.Lock()
	filters := m.filters.Clone()
	m.mu.Unlock()

	return m.LoadItems(ctx, filters, 1, false)
}

func (m *Manager[T]) logSkip(direction string) {
	fields := []zap.Field{
		zap.String("direction", direction),
		zap.Int("current_page", m.currentPage),
		zap.Bool("loading_more", m.loadingMore),
	}
	if m.pagination != nil {
		fields = append(fields, zap.Int("last_page", m.pagination.LastPage))
	}
	m.logger.Warn("page load skipped", fields...)
}

// Reset returns to the zero state and abandons loads in flight. Observers
// stay registered.
func (m *Manager[T]) Reset() {
	m.mu.Lock()
	m.generation++
	m.currentPage = 1
	m.filters = Filters{}
	m.items = nil
	m.pagination = nil
	m.loading = false
	m.loadingMore = false
	m.mu.Unlock()

	m.notify()
}

func (m *Manager[T]) State() State[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshot()
}

func (m *Manager[T]) snapshot() State[T] {
	s := State[T]{
		CurrentPage: m.currentPage,
		Filters:     m.filters.Clone(),
		Items:       slices.Clone(m.items),
		Loading:     m.loading,
		LoadingMore: m.loadingMore,
	}
	if m.pagination != nil {
		p := *m.pagination
		s.Pagination = &p
	}
	return s
}

func (m *Manager[T]) notify() {
	m.mu.Lock()
	if len(m.observers) == 0 {
		m.mu.Unlock()
		return
	}
	state := m.snapshot()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func (m *Manager[T]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.items)
}

func (m *Manager[T]) Pagination() (Pagination, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pagination == nil {
		return Pagination{}, false
	}
	return *m.pagination, true
}

func (m *Manager[T]) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.loading
}

func (m *Manager[T]) LoadingMore() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.loadingMore
}

func (m *Manager[T]) CurrentPage() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.currentPage
}

func (m *Manager[T]) Filters() Filters {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filters.Clone()
}

// TotalItems is the server-side total, or 0 before the first load.
func (m *Manager[T]) TotalItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pagination == nil {
		return 0
	}
	return m.pagination.Total
}

func (m *Manager[T]) CurrentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}

func (m *Manager[T]) RemainingItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pagination == nil {
		return 0
	}
	return max(m.pagination.Total-len(m.items), 0)
}

// NextPage returns the page LoadNext would fetch.
func (m *Manager[T]) NextPage() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canLoadNext() {
		return 0, false
	}
	return m.currentPage + 1, true
}

// PreviousPage returns the page LoadPrevious would fetch.
func (m *Manager[T]) PreviousPage() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canLoadPrevious() {
		return 0, false
	}
	return m.currentPage - 1, true
}
