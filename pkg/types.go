package pkg

// Request envelope types for the voice skill wire format

// Well-known request types
const (
	LaunchRequestType       = "LaunchRequest"
	IntentRequestType       = "IntentRequest"
	SessionEndedRequestType = "SessionEndedRequest"
)

// RequestEnvelope is the top level payload delivered for every turn
type RequestEnvelope struct {
	Version string   `json:"version"`
	Session *Session `json:"session,omitempty"`
	Context Context  `json:"context"`
	Request Request  `json:"request"`
}

// Session describes the conversational session the request belongs to
type Session struct {
	New         bool           `json:"new"`
	SessionID   string         `json:"sessionId"`
	Application Application    `json:"application"`
	User        User           `json:"user"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Context carries device and caller identity
type Context struct {
	System System `json:"System"`
}

// System holds the identities used to derive partition keys
type System struct {
	Application    Application `json:"application"`
	User           User        `json:"user"`
	Device         *Device     `json:"device,omitempty"`
	APIEndpoint    string      `json:"apiEndpoint,omitempty"`
	APIAccessToken string      `json:"apiAccessToken,omitempty"`
}

type Application struct {
	ApplicationID string `json:"applicationId"`
}

type User struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken,omitempty"`
}

type Device struct {
	DeviceID string `json:"deviceId"`
}

// Request is the typed body of the envelope
type Request struct {
	Type      string        `json:"type"`
	RequestID string        `json:"requestId"`
	Timestamp string        `json:"timestamp,omitempty"`
	Locale    string        `json:"locale,omitempty"`
	Intent    *Intent       `json:"intent,omitempty"`
	Reason    string        `json:"reason,omitempty"` // SessionEndedRequest only
	Error     *RequestError `json:"error,omitempty"`
}

type RequestError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Intent represents a resolved user intent with its slots
type Intent struct {
	Name               string          `json:"name"`
	ConfirmationStatus string          `json:"confirmationStatus,omitempty"`
	Slots              map[string]Slot `json:"slots,omitempty"`
}

// Slot is a single filled (or empty) intent slot
type Slot struct {
	Name        string       `json:"name"`
	Value       string       `json:"value,omitempty"`
	Resolutions *Resolutions `json:"resolutions,omitempty"`
}

type Resolutions struct {
	ResolutionsPerAuthority []Authority `json:"resolutionsPerAuthority"`
}

// Authority is one entity-resolution source for a slot
type Authority struct {
	Authority string         `json:"authority"`
	Status    Status         `json:"status"`
	Values    []ValueWrapper `json:"values,omitempty"`
}

type Status struct {
	Code string `json:"code"`
}

// Entity resolution status codes
const (
	StatusSuccessMatch   = "ER_SUCCESS_MATCH"
	StatusSuccessNoMatch = "ER_SUCCESS_NO_MATCH"
)

type ValueWrapper struct {
	Value ResolvedValue `json:"value"`
}

type ResolvedValue struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Response envelope types

// ResponseEnvelope is returned to the voice platform for every turn
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          Response       `json:"response"`
}

// Response is the speech, card and session control for one turn.
// ShouldEndSession is tri-state: nil leaves the decision to the platform.
type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	ShouldEndSession *bool         `json:"shouldEndSession,omitempty"`
}

type OutputSpeech struct {
	Type string `json:"type"`
	SSML string `json:"ssml,omitempty"`
	Text string `json:"text,omitempty"`
}

type Reprompt struct {
	OutputSpeech *OutputSpeech `json:"outputSpeech"`
}

// Card is a simple companion-app card
type Card struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// EndsSession reports whether the response explicitly ends the session
func (r *Response) EndsSession() bool {
	return r != nil && r.ShouldEndSession != nil && *r.ShouldEndSession
}

// Bool returns a pointer to b
func Bool(b bool) *bool {
	return &b
}
