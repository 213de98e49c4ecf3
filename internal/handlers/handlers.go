package handlers

import (
	"context"
	"fmt"

	"skill_persistence/internal/core"
	"skill_persistence/internal/services"
	"skill_persistence/pkg"
	"skill_persistence/src/model"

	"github.com/rs/zerolog"
)

// Intent names handled by the demo skill
const (
	GetAttributeIntent = "GetAttributeIntent"
	HelpIntent         = "AMAZON.HelpIntent"
	CancelIntent       = "AMAZON.CancelIntent"
	StopIntent         = "AMAZON.StopIntent"
)

// Default returns the skill's handlers in dispatch order
func Default(prompts model.PromptConfig, logger zerolog.Logger) []core.RequestHandler {
	logger = logger.With().Str("component", "handlers").Logger()
	return []core.RequestHandler{
		&LaunchHandler{prompts: prompts, logger: logger},
		&CancelAndStopHandler{prompts: prompts, logger: logger},
		&SessionEndedHandler{logger: logger},
		&HelpHandler{prompts: prompts, logger: logger},
		&GetAttributeHandler{prompts: prompts, logger: logger},
	}
}

// LaunchHandler greets the user and keeps the session open
type LaunchHandler struct {
	prompts model.PromptConfig
	logger  zerolog.Logger
}

func (h *LaunchHandler) CanHandle(input *core.HandlerInput) bool {
	return core.IsRequestType(pkg.LaunchRequestType)(input)
}

func (h *LaunchHandler) Handle(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
	h.logger.Info().Msg("In LaunchRequest")
	return input.ResponseBuilder.
		Speak(h.prompts.Welcome).
		SetCard(core.SimpleCard("Launch Request", h.prompts.Welcome)).
		Ask(h.prompts.Welcome).
		SetShouldEndSession(false).
		Response(), nil
}

// GetAttributeHandler stores the spoken key/value pair in session attributes.
// The pair reaches the store only when the session later ends.
type GetAttributeHandler struct {
	prompts model.PromptConfig
	logger  zerolog.Logger
}

func (h *GetAttributeHandler) CanHandle(input *core.HandlerInput) bool {
	return core.IsIntentName(GetAttributeIntent)(input)
}

func (h *GetAttributeHandler) Handle(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
	h.logger.Info().Msg("In GetAttributeIntent")

	values := services.SlotValues(input.RequestEnvelope.Request.Intent)
	key := services.Value(values, "key")
	value := services.Value(values, "value")

	speech := h.prompts.Unknown
	if key != "" && value != "" {
		input.AttributesManager.SessionAttributes()[key] = value
		speech = fmt.Sprintf(h.prompts.Saved, key, value)
	}

	return input.ResponseBuilder.
		Speak(speech).
		SetCard(core.SimpleCard("Get Attributes Intent", speech)).
		Ask(speech).
		SetShouldEndSession(false).
		Response(), nil
}

// HelpHandler repeats the usage hint
type HelpHandler struct {
	prompts model.PromptConfig
	logger  zerolog.Logger
}

func (h *HelpHandler) CanHandle(input *core.HandlerInput) bool {
	return core.IsIntentName(HelpIntent)(input)
}

func (h *HelpHandler) Handle(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
	h.logger.Info().Msg("In HelpIntent")
	return input.ResponseBuilder.
		Speak(h.prompts.Help).
		Ask(h.prompts.Help).
		SetCard(core.SimpleCard("Help Intent", h.prompts.Help)).
		Response(), nil
}

// CancelAndStopHandler says goodbye and ends the session, which triggers a save
type CancelAndStopHandler struct {
	prompts model.PromptConfig
	logger  zerolog.Logger
}

func (h *CancelAndStopHandler) CanHandle(input *core.HandlerInput) bool {
	return core.IsIntentName(CancelIntent, StopIntent)(input)
}

func (h *CancelAndStopHandler) Handle(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
	h.logger.Info().Msg("In CancelAndStopHandler")
	return input.ResponseBuilder.
		Speak(h.prompts.Goodbye).
		SetCard(core.SimpleCard("Stop and Cancel Intents", h.prompts.Goodbye)).
		SetShouldEndSession(true).
		Response(), nil
}

// SessionEndedHandler acknowledges a session the platform already closed
type SessionEndedHandler struct {
	logger zerolog.Logger
}

func (h *SessionEndedHandler) CanHandle(input *core.HandlerInput) bool {
	return core.IsRequestType(pkg.SessionEndedRequestType)(input)
}

func (h *SessionEndedHandler) Handle(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
	h.logger.Info().Str("reason", input.RequestEnvelope.Request.Reason).Msg("In SessionEndedRequest")
	return input.ResponseBuilder.Response(), nil
}
