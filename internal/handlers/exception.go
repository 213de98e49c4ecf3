package handlers

import (
	"context"

	"skill_persistence/internal/core"
	"skill_persistence/pkg"

	"github.com/rs/zerolog"
)

// AllExceptionHandler answers every handler failure with the fallback prompt
type AllExceptionHandler struct {
	fallback string
	logger   zerolog.Logger
}

func NewAllExceptionHandler(fallback string, logger zerolog.Logger) *AllExceptionHandler {
	return &AllExceptionHandler{
		fallback: fallback,
		logger:   logger.With().Str("component", "exception_handler").Logger(),
	}
}

func (h *AllExceptionHandler) CanHandle(*core.HandlerInput, error) bool {
	return true
}

func (h *AllExceptionHandler) Handle(_ context.Context, input *core.HandlerInput, err error) (*pkg.Response, error) {
	h.logger.Error().
		Err(err).
		Str("request_type", input.RequestType()).
		Str("intent", input.IntentName()).
		Msg("In AllExceptionHandler")

	return input.ResponseBuilder.
		Speak(h.fallback).
		SetCard(core.SimpleCard("Error", h.fallback)).
		Ask(h.fallback).
		Response(), nil
}
