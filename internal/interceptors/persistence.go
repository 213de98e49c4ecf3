package interceptors

import (
	"context"
	"fmt"
	"time"

	"skill_persistence/internal/core"
	"skill_persistence/internal/storage"
	"skill_persistence/pkg"

	"github.com/rs/zerolog"
)

// Attribute names written by the persistence interceptors
const (
	LaunchCountKey   = "launchCount"
	BootstrapKey     = "loadedAtTimestamp"
	BootstrapValue   = "LOAD"
	LastUseKey       = "lastUseTimestamp"
	lastUseCountForm = "SAVE NOW %d"
)

// LastUseMarker produces the lastUseTimestamp value stamped before each save
type LastUseMarker func(now time.Time, launchCount int) any

// CountMarker stamps "SAVE NOW <launchCount+1>"
func CountMarker(_ time.Time, launchCount int) any {
	return fmt.Sprintf(lastUseCountForm, launchCount+1)
}

// TimestampMarker stamps the save time together with the launch number
func TimestampMarker(now time.Time, launchCount int) any {
	return fmt.Sprintf("%s #%d", now.UTC().Format(time.RFC3339), launchCount+1)
}

// ====================== Load ======================

// LoadAttributes populates session state from the attribute store before
// any handler runs.
//
// First use of a partition key yields {loadedAtTimestamp: "LOAD", launchCount: 0}.
// A returning key gets every persisted attribute with launchCount incremented,
// or reset to 0 when the record has none.
type LoadAttributes struct {
	logger zerolog.Logger
}

// NewLoadAttributes creates the load interceptor
func NewLoadAttributes(logger zerolog.Logger) *LoadAttributes {
	return &LoadAttributes{logger: logger.With().Str("component", "load_attributes").Logger()}
}

func (l *LoadAttributes) RequiresPersistence() bool { return true }

// Process implements core.RequestInterceptor
func (l *LoadAttributes) Process(ctx context.Context, input *core.HandlerInput) error {
	manager := input.AttributesManager

	persisted, found, err := manager.PersistentAttributes(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to load persistent attributes")
		return err
	}

	var session storage.Attributes
	if !found {
		session = storage.Attributes{
			BootstrapKey:   BootstrapValue,
			LaunchCountKey: 0,
		}
	} else {
		session = persisted.Clone()
		if count, ok := session.Int(LaunchCountKey); ok && count >= 0 {
			session[LaunchCountKey] = count + 1
		} else {
			session[LaunchCountKey] = 0
		}
	}

	manager.SetSessionAttributes(session)
	if err := manager.MarkLoaded(); err != nil {
		return err
	}

	key, _ := manager.PartitionKey()
	l.logger.Info().
		Str("partition_key", key).
		Bool("returning", found).
		Interface(LaunchCountKey, session[LaunchCountKey]).
		Msg("Loaded attributes")
	return nil
}

// ====================== Save ======================

// SaveAttributes writes session state back to the store when the session ends.
// Turns that keep the conversation open write nothing.
type SaveAttributes struct {
	logger zerolog.Logger
	now    func() time.Time
	marker LastUseMarker
}

// SaveOption customizes SaveAttributes
type SaveOption func(*SaveAttributes)

// WithClock overrides the time source handed to the marker
func WithClock(now func() time.Time) SaveOption {
	return func(s *SaveAttributes) { s.now = now }
}

// WithLastUseMarker overrides how lastUseTimestamp is derived
func WithLastUseMarker(marker LastUseMarker) SaveOption {
	return func(s *SaveAttributes) { s.marker = marker }
}

// NewSaveAttributes creates the save interceptor
func NewSaveAttributes(logger zerolog.Logger, opts ...SaveOption) *SaveAttributes {
	s := &SaveAttributes{
		logger: logger.With().Str("component", "save_attributes").Logger(),
		now:    time.Now,
		marker: CountMarker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SaveAttributes) RequiresPersistence() bool { return true }

// ShouldPersist is the save-on-exit rule: the response explicitly ends the
// session, or the platform already ended it
func ShouldPersist(input *core.HandlerInput, response *pkg.Response) bool {
	return response.EndsSession() || input.RequestType() == pkg.SessionEndedRequestType
}

// Process implements core.ResponseInterceptor
func (s *SaveAttributes) Process(ctx context.Context, input *core.HandlerInput, response *pkg.Response) error {
	manager := input.AttributesManager

	if !ShouldPersist(input, response) {
		manager.MarkDiscarded()
		s.logger.Debug().Msg("Session continues, attributes not saved")
		return nil
	}

	session := manager.SessionAttributes()
	count, _ := session.Int(LaunchCountKey) // missing counts as 0
	session[LastUseKey] = s.marker(s.now(), count)

	manager.SetPersistentAttributes(session.Clone())
	if err := manager.SavePersistentAttributes(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save persistent attributes")
		return err
	}

	key, _ := manager.PartitionKey()
	s.logger.Info().
		Str("partition_key", key).
		Interface(LastUseKey, session[LastUseKey]).
		Msg("Saved attributes")
	return nil
}
