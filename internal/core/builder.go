package core

import (
	"context"

	"skill_persistence/internal/storage"

	"github.com/rs/zerolog"
)

// SkillBuilder collects handlers and interceptors; Build freezes them into a Skill.
// Registration order is dispatch order.
type SkillBuilder struct {
	handlers             []RequestHandler
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	exceptionHandlers    []ExceptionHandler

	store    storage.AttributeStore
	keyFn    storage.PartitionKeyFn
	logger   zerolog.Logger
	observer Observer
}

// NewSkillBuilder creates a builder without persistence
func NewSkillBuilder() *SkillBuilder {
	return &SkillBuilder{logger: zerolog.Nop()}
}

// NewStandardSkillBuilder creates a builder whose cycles persist through store,
// keyed by keyFn
func NewStandardSkillBuilder(store storage.AttributeStore, keyFn storage.PartitionKeyFn) *SkillBuilder {
	return NewSkillBuilder().WithPersistence(store, keyFn)
}

// WithPersistence sets the attribute store and partition key function
func (b *SkillBuilder) WithPersistence(store storage.AttributeStore, keyFn storage.PartitionKeyFn) *SkillBuilder {
	b.store = store
	b.keyFn = keyFn
	return b
}

func (b *SkillBuilder) WithLogger(logger zerolog.Logger) *SkillBuilder {
	b.logger = logger
	return b
}

func (b *SkillBuilder) WithObserver(observer Observer) *SkillBuilder {
	b.observer = observer
	return b
}

func (b *SkillBuilder) AddRequestHandlers(handlers ...RequestHandler) *SkillBuilder {
	b.handlers = append(b.handlers, handlers...)
	return b
}

func (b *SkillBuilder) AddExceptionHandlers(handlers ...ExceptionHandler) *SkillBuilder {
	b.exceptionHandlers = append(b.exceptionHandlers, handlers...)
	return b
}

func (b *SkillBuilder) AddRequestInterceptors(interceptors ...RequestInterceptor) *SkillBuilder {
	b.requestInterceptors = append(b.requestInterceptors, interceptors...)
	return b
}

func (b *SkillBuilder) AddResponseInterceptors(interceptors ...ResponseInterceptor) *SkillBuilder {
	b.responseInterceptors = append(b.responseInterceptors, interceptors...)
	return b
}

// Build validates the composition and compiles the dispatch pipeline
func (b *SkillBuilder) Build(ctx context.Context) (*Skill, error) {
	if len(b.handlers) == 0 {
		return nil, &ConfigurationError{Component: "skill", Reason: "at least one request handler is required"}
	}
	for _, h := range b.handlers {
		if h == nil {
			return nil, &ConfigurationError{Component: "skill", Reason: "request handler cannot be nil"}
		}
	}

	if b.needsPersistence() {
		if b.store == nil {
			return nil, &ConfigurationError{Component: "persistence", Reason: "attribute store is required by a registered interceptor"}
		}
		if b.keyFn == nil {
			return nil, &ConfigurationError{Component: "persistence", Reason: "partition key function is required by a registered interceptor"}
		}
	}
	if (b.store == nil) != (b.keyFn == nil) {
		return nil, &ConfigurationError{Component: "persistence", Reason: "attribute store and partition key function must be set together"}
	}

	skill := &Skill{
		handlers:             append([]RequestHandler(nil), b.handlers...),
		requestInterceptors:  append([]RequestInterceptor(nil), b.requestInterceptors...),
		responseInterceptors: append([]ResponseInterceptor(nil), b.responseInterceptors...),
		exceptionHandlers:    append([]ExceptionHandler(nil), b.exceptionHandlers...),
		store:                b.store,
		keyFn:                b.keyFn,
		logger:               b.logger.With().Str("component", "skill").Logger(),
		observer:             b.observer,
	}
	if err := skill.compile(ctx); err != nil {
		return nil, &ConfigurationError{Component: "skill", Reason: "pipeline did not compile", Err: err}
	}
	return skill, nil
}

func (b *SkillBuilder) needsPersistence() bool {
	check := func(v any) bool {
		r, ok := v.(PersistenceRequirer)
		return ok && r.RequiresPersistence()
	}
	for _, i := range b.requestInterceptors {
		if check(i) {
			return true
		}
	}
	for _, i := range b.responseInterceptors {
		if check(i) {
			return true
		}
	}
	return false
}
