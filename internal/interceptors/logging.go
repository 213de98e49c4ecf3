package interceptors

import (
	"context"

	"skill_persistence/internal/core"
	"skill_persistence/pkg"

	"github.com/rs/zerolog"
)

// RequestLogger logs every inbound request
type RequestLogger struct {
	logger zerolog.Logger
}

func NewRequestLogger(logger zerolog.Logger) *RequestLogger {
	return &RequestLogger{logger: logger.With().Str("component", "request_logger").Logger()}
}

func (r *RequestLogger) Process(_ context.Context, input *core.HandlerInput) error {
	r.logger.Info().
		Str("request_id", input.RequestEnvelope.Request.RequestID).
		Str("request_type", input.RequestType()).
		Str("intent", input.IntentName()).
		Interface("request", input.RequestEnvelope.Request).
		Msg("Skill request")
	return nil
}

// ResponseLogger logs every produced response
type ResponseLogger struct {
	logger zerolog.Logger
}

func NewResponseLogger(logger zerolog.Logger) *ResponseLogger {
	return &ResponseLogger{logger: logger.With().Str("component", "response_logger").Logger()}
}

func (r *ResponseLogger) Process(_ context.Context, input *core.HandlerInput, response *pkg.Response) error {
	r.logger.Info().
		Str("request_id", input.RequestEnvelope.Request.RequestID).
		Bool("ends_session", response.EndsSession()).
		Interface("response", response).
		Msg("Skill response")
	return nil
}
