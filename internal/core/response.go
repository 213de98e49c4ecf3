package core

import "skill_persistence/pkg"

// ResponseBuilder assembles the response for one cycle
type ResponseBuilder struct {
	response pkg.Response
}

// NewResponseBuilder creates an empty builder
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

// Speak sets the output speech
func (b *ResponseBuilder) Speak(speech string) *ResponseBuilder {
	b.response.OutputSpeech = ssml(speech)
	return b
}

// Ask sets the reprompt and keeps the session open
func (b *ResponseBuilder) Ask(reprompt string) *ResponseBuilder {
	b.response.Reprompt = &pkg.Reprompt{OutputSpeech: ssml(reprompt)}
	b.response.ShouldEndSession = pkg.Bool(false)
	return b
}

// SetCard attaches a companion-app card
func (b *ResponseBuilder) SetCard(card *pkg.Card) *ResponseBuilder {
	b.response.Card = card
	return b
}

// SetShouldEndSession sets the explicit end-of-session flag
func (b *ResponseBuilder) SetShouldEndSession(end bool) *ResponseBuilder {
	b.response.ShouldEndSession = pkg.Bool(end)
	return b
}

// Response returns a copy of the response built so far
func (b *ResponseBuilder) Response() *pkg.Response {
	response := b.response
	return &response
}

// SimpleCard builds a card with a title and plain content
func SimpleCard(title, content string) *pkg.Card {
	return &pkg.Card{Type: "Simple", Title: title, Content: content}
}

func ssml(speech string) *pkg.OutputSpeech {
	return &pkg.OutputSpeech{Type: "SSML", SSML: "<speak>" + speech + "</speak>"}
}
