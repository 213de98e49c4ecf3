package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skill_persistence/internal/storage"
	"skill_persistence/pkg"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"
)

const responseVersion = "1.0"

// Skill dispatches request envelopes. It is immutable after Build and safe
// for concurrent use; every Invoke runs an independent cycle.
type Skill struct {
	handlers             []RequestHandler
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	exceptionHandlers    []ExceptionHandler

	store    storage.AttributeStore
	keyFn    storage.PartitionKeyFn
	logger   zerolog.Logger
	observer Observer

	pipeline compose.Runnable[*turn, *turn]
}

// turn carries one cycle through the compiled chain. Failures travel inside
// the turn so every stage can decide whether to run.
type turn struct {
	input    *HandlerInput
	response *pkg.Response
	// err aborts dispatch; it comes from a request interceptor or the handler
	err error
	// responseErr collects response interceptor failures; it never alters the response
	responseErr error
}

// compile builds the request-interceptors → dispatch → response-interceptors chain
func (s *Skill) compile(ctx context.Context) error {
	chain := compose.NewChain[*turn, *turn]().
		AppendLambda(compose.InvokableLambda(s.runRequestInterceptors)).
		AppendLambda(compose.InvokableLambda(s.dispatch)).
		AppendLambda(compose.InvokableLambda(s.runResponseInterceptors))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return fmt.Errorf("error compiling skill pipeline: %w", err)
	}
	s.pipeline = runnable
	return nil
}

// Invoke runs one request/response cycle.
//
// A *RetrievalError (or *ConfigurationError) aborts the cycle and is returned
// with a nil envelope. Response interceptor failures such as *PersistenceError
// are returned together with the already built envelope.
func (s *Skill) Invoke(ctx context.Context, envelope *pkg.RequestEnvelope) (*pkg.ResponseEnvelope, error) {
	if envelope == nil {
		return nil, fmt.Errorf("request envelope cannot be nil")
	}
	start := time.Now()

	input := &HandlerInput{
		RequestEnvelope:   envelope,
		AttributesManager: NewAttributesManager(envelope, s.store, s.keyFn),
		ResponseBuilder:   NewResponseBuilder(),
	}
	log := s.logger.With().
		Str("request_id", envelope.Request.RequestID).
		Str("request_type", envelope.Request.Type).
		Logger()

	t, err := s.pipeline.Invoke(ctx, &turn{input: input})
	if err != nil {
		s.finish(log, input, err, start)
		return nil, fmt.Errorf("error running skill pipeline: %w", err)
	}

	if t.err != nil {
		if isFatal(t.err) {
			s.finish(log, input, t.err, start)
			return nil, t.err
		}
		response, err := s.handleException(ctx, input, t.err)
		if err != nil {
			s.finish(log, input, err, start)
			return nil, err
		}
		t.response = response
	}

	input.AttributesManager.MarkDiscarded()
	responseEnvelope := s.buildEnvelope(input, t.response)

	if t.responseErr != nil {
		log.Error().Err(t.responseErr).Msg("Response interceptor failed, response delivered unchanged")
	}
	s.finish(log, input, t.responseErr, start)
	return responseEnvelope, t.responseErr
}

// ====================== Pipeline stages ======================

func (s *Skill) runRequestInterceptors(ctx context.Context, t *turn) (*turn, error) {
	for _, interceptor := range s.requestInterceptors {
		if err := interceptor.Process(ctx, t.input); err != nil {
			t.err = err
			return t, nil
		}
	}
	return t, nil
}

func (s *Skill) dispatch(ctx context.Context, t *turn) (*turn, error) {
	if t.err != nil {
		return t, nil
	}

	handler := s.findHandler(t.input)
	if handler == nil {
		t.err = fmt.Errorf("%w: request type %q intent %q", ErrNoHandlerMatched, t.input.RequestType(), t.input.IntentName())
		return t, nil
	}

	response, err := handler.Handle(ctx, t.input)
	if err != nil {
		t.err = err
		return t, nil
	}
	if response == nil {
		response = &pkg.Response{}
	}
	t.response = response
	t.input.AttributesManager.markHandled()
	return t, nil
}

func (s *Skill) runResponseInterceptors(ctx context.Context, t *turn) (*turn, error) {
	if t.err != nil {
		return t, nil
	}
	var errs []error
	for _, interceptor := range s.responseInterceptors {
		if err := interceptor.Process(ctx, t.input, t.response); err != nil {
			errs = append(errs, err)
		}
	}
	t.responseErr = errors.Join(errs...)
	return t, nil
}

// ====================== Private Methods ======================

func (s *Skill) findHandler(input *HandlerInput) RequestHandler {
	for _, handler := range s.handlers {
		if handler.CanHandle(input) {
			return handler
		}
	}
	return nil
}

func (s *Skill) handleException(ctx context.Context, input *HandlerInput, cause error) (*pkg.Response, error) {
	for _, handler := range s.exceptionHandlers {
		if !handler.CanHandle(input, cause) {
			continue
		}
		response, err := handler.Handle(ctx, input, cause)
		if err != nil {
			return nil, fmt.Errorf("exception handler failed: %w (cause: %v)", err, cause)
		}
		if response == nil {
			response = &pkg.Response{}
		}
		return response, nil
	}
	return nil, cause
}

func (s *Skill) buildEnvelope(input *HandlerInput, response *pkg.Response) *pkg.ResponseEnvelope {
	envelope := &pkg.ResponseEnvelope{Version: responseVersion}
	if response != nil {
		envelope.Response = *response
	}
	if !envelope.Response.EndsSession() {
		if attributes := input.AttributesManager.SessionAttributes(); len(attributes) > 0 {
			envelope.SessionAttributes = attributes.Clone()
		}
	}
	return envelope
}

func (s *Skill) finish(log zerolog.Logger, input *HandlerInput, err error, start time.Time) {
	elapsed := time.Since(start)
	state := input.AttributesManager.State()
	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.Str("state", state.String()).Dur("elapsed", elapsed).Msg("Cycle finished")

	if s.observer != nil {
		s.observer.CycleFinished(input.RequestType(), state, err, elapsed)
	}
}
