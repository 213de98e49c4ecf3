package core

import (
	"context"
	"time"

	"skill_persistence/pkg"
)

// CycleState tracks one request/response cycle through the persistence pipeline
type CycleState int

const (
	StateUnloaded CycleState = iota
	StateLoaded
	StateHandled
	StateSaved
	StateDiscarded
)

func (s CycleState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateHandled:
		return "handled"
	case StateSaved:
		return "saved"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// HandlerInput is everything a handler or interceptor may touch during one cycle
type HandlerInput struct {
	RequestEnvelope   *pkg.RequestEnvelope
	AttributesManager *AttributesManager
	ResponseBuilder   *ResponseBuilder
}

// RequestType returns the envelope's request type
func (h *HandlerInput) RequestType() string {
	return h.RequestEnvelope.Request.Type
}

// IntentName returns the intent name for IntentRequests, empty otherwise
func (h *HandlerInput) IntentName() string {
	if h.RequestEnvelope.Request.Type != pkg.IntentRequestType || h.RequestEnvelope.Request.Intent == nil {
		return ""
	}
	return h.RequestEnvelope.Request.Intent.Name
}

// RequestHandler is one variant of the handler set. CanHandle must be a pure
// predicate; the dispatcher runs the first handler whose predicate matches.
type RequestHandler interface {
	CanHandle(input *HandlerInput) bool
	Handle(ctx context.Context, input *HandlerInput) (*pkg.Response, error)
}

// RequestInterceptor runs before handler dispatch
type RequestInterceptor interface {
	Process(ctx context.Context, input *HandlerInput) error
}

// ResponseInterceptor runs after the handler produced a response
type ResponseInterceptor interface {
	Process(ctx context.Context, input *HandlerInput, response *pkg.Response) error
}

// ExceptionHandler turns a handler failure into a user facing response
type ExceptionHandler interface {
	CanHandle(input *HandlerInput, err error) bool
	Handle(ctx context.Context, input *HandlerInput, err error) (*pkg.Response, error)
}

// PersistenceRequirer is implemented by components that cannot run without an attribute store
type PersistenceRequirer interface {
	RequiresPersistence() bool
}

// Observer receives the outcome of every finished cycle
type Observer interface {
	CycleFinished(requestType string, state CycleState, err error, elapsed time.Duration)
}

// ====================== Adapters ======================

// RequestInterceptorFunc adapts a function to RequestInterceptor
type RequestInterceptorFunc func(ctx context.Context, input *HandlerInput) error

func (f RequestInterceptorFunc) Process(ctx context.Context, input *HandlerInput) error {
	return f(ctx, input)
}

// ResponseInterceptorFunc adapts a function to ResponseInterceptor
type ResponseInterceptorFunc func(ctx context.Context, input *HandlerInput, response *pkg.Response) error

func (f ResponseInterceptorFunc) Process(ctx context.Context, input *HandlerInput, response *pkg.Response) error {
	return f(ctx, input, response)
}

type funcHandler struct {
	canHandle func(*HandlerInput) bool
	handle    func(context.Context, *HandlerInput) (*pkg.Response, error)
}

func (h funcHandler) CanHandle(input *HandlerInput) bool { return h.canHandle(input) }

func (h funcHandler) Handle(ctx context.Context, input *HandlerInput) (*pkg.Response, error) {
	return h.handle(ctx, input)
}

// NewHandler builds a RequestHandler from a predicate and a handling function
func NewHandler(canHandle func(*HandlerInput) bool, handle func(context.Context, *HandlerInput) (*pkg.Response, error)) RequestHandler {
	return funcHandler{canHandle: canHandle, handle: handle}
}

// ====================== Predicates ======================

// IsRequestType matches envelopes of the given request type
func IsRequestType(requestType string) func(*HandlerInput) bool {
	return func(input *HandlerInput) bool {
		return input.RequestType() == requestType
	}
}

// IsIntentName matches IntentRequests for any of the given intent names
func IsIntentName(names ...string) func(*HandlerInput) bool {
	return func(input *HandlerInput) bool {
		intent := input.IntentName()
		for _, name := range names {
			if intent == name {
				return true
			}
		}
		return false
	}
}
