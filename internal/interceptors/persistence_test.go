package interceptors

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"skill_persistence/internal/core"
	"skill_persistence/internal/storage"
	"skill_persistence/pkg"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ core.RequestInterceptor  = (*LoadAttributes)(nil)
	_ core.ResponseInterceptor = (*SaveAttributes)(nil)
	_ core.PersistenceRequirer = (*LoadAttributes)(nil)
	_ core.PersistenceRequirer = (*SaveAttributes)(nil)
	_ core.RequestInterceptor  = (*RequestLogger)(nil)
	_ core.ResponseInterceptor = (*ResponseLogger)(nil)
)

const userKey = "U1"

// failingStore wraps a MemoryStore and fails the selected operations
type failingStore struct {
	*storage.MemoryStore
	getErr error
	putErr error
}

func (f *failingStore) Get(ctx context.Context, key string) (storage.Attributes, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *failingStore) Put(ctx context.Context, key string, attributes storage.Attributes) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, key, attributes)
}

func envelope(requestType string, intent string) *pkg.RequestEnvelope {
	e := &pkg.RequestEnvelope{Version: "1.0"}
	e.Context.System.Application.ApplicationID = "amzn1.ask.skill.demo"
	e.Context.System.User.UserID = userKey
	e.Request = pkg.Request{Type: requestType, RequestID: "req"}
	if intent != "" {
		e.Request.Intent = &pkg.Intent{Name: intent}
	}
	return e
}

// observed captures the session attributes a handler saw
type observed struct {
	mu       sync.Mutex
	sessions []storage.Attributes
}

func (o *observed) add(attributes storage.Attributes) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions = append(o.sessions, attributes.Clone())
}

func (o *observed) last() storage.Attributes {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[len(o.sessions)-1]
}

type handlerFn func(ctx context.Context, input *core.HandlerInput) (*pkg.Response, error)

// newSkill builds a persistence skill whose single handler records the
// session it saw, applies mutate and ends the session when end is true
func newSkill(t *testing.T, store storage.AttributeStore, seen *observed, handle handlerFn, opts ...SaveOption) *core.Skill {
	t.Helper()
	skill, err := core.NewStandardSkillBuilder(store, storage.UserID).
		AddRequestInterceptors(NewLoadAttributes(zerolog.Nop())).
		AddResponseInterceptors(NewSaveAttributes(zerolog.Nop(), opts...)).
		AddRequestHandlers(core.NewHandler(func(*core.HandlerInput) bool { return true },
			func(ctx context.Context, input *core.HandlerInput) (*pkg.Response, error) {
				if seen != nil {
					seen.add(input.AttributesManager.SessionAttributes())
				}
				return handle(ctx, input)
			})).
		Build(context.Background())
	require.NoError(t, err)
	return skill
}

func respond(end bool, mutate func(storage.Attributes)) handlerFn {
	return func(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
		if mutate != nil {
			mutate(input.AttributesManager.SessionAttributes())
		}
		return input.ResponseBuilder.Speak("ok").SetShouldEndSession(end).Response(), nil
	}
}

func TestFirstUseBootstrapsSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seen := &observed{}
	skill := newSkill(t, store, seen, respond(false, nil))

	_, err := skill.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
	require.NoError(t, err)

	assert.Equal(t, storage.Attributes{LaunchCountKey: 0, BootstrapKey: BootstrapValue}, seen.last())
	assert.Equal(t, 0, store.Puts())
}

func TestReturningUseIncrementsLaunchCount(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(ctx, userKey, storage.Attributes{
		LaunchCountKey: int64(4),
		BootstrapKey:   BootstrapValue,
		"1234":         "Australia",
		"nested":       map[string]any{"k": "v"},
	}))
	seen := &observed{}
	skill := newSkill(t, store, seen, respond(false, nil))

	_, err := skill.Invoke(ctx, envelope(pkg.IntentRequestType, "GetAttributeIntent"))
	require.NoError(t, err)

	session := seen.last()
	count, ok := session.Int(LaunchCountKey)
	require.True(t, ok)
	assert.Equal(t, 5, count)
	assert.Equal(t, "Australia", session["1234"])
	assert.Equal(t, BootstrapValue, session[BootstrapKey])
	assert.Equal(t, map[string]any{"k": "v"}, session["nested"])
}

func TestLegacyRecordWithoutLaunchCount(t *testing.T) {
	ctx := context.Background()
	for name, record := range map[string]storage.Attributes{
		"missing":     {"1234": "Australia"},
		"non numeric": {LaunchCountKey: "three"},
		"negative":    {LaunchCountKey: -2},
	} {
		t.Run(name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Put(ctx, userKey, record))
			seen := &observed{}
			skill := newSkill(t, store, seen, respond(true, nil))

			_, err := skill.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
			require.NoError(t, err)
			assert.Equal(t, 0, seen.last()[LaunchCountKey])

			stored, _, err := store.Get(ctx, userKey)
			require.NoError(t, err)
			assert.Equal(t, "SAVE NOW 1", stored[LastUseKey])
		})
	}
}

func TestDiscardWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	before := storage.Attributes{LaunchCountKey: 2, "1234": "Australia"}
	require.NoError(t, store.Put(ctx, userKey, before))
	puts := store.Puts()

	skill := newSkill(t, store, nil, respond(false, func(session storage.Attributes) {
		session["1234"] = "France"
	}))

	response, err := skill.Invoke(ctx, envelope(pkg.IntentRequestType, "GetAttributeIntent"))
	require.NoError(t, err)
	assert.Equal(t, "France", response.SessionAttributes["1234"])

	assert.Equal(t, puts, store.Puts())
	after, _, err := store.Get(ctx, userKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNilShouldEndSessionDoesNotSave(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	skill := newSkill(t, store, nil, func(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
		return input.ResponseBuilder.Speak("ok").Response(), nil
	})

	_, err := skill.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
	require.NoError(t, err)
	assert.Equal(t, 0, store.Puts())
}

func TestSessionEndedRequestSaves(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	skill := newSkill(t, store, nil, func(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
		return input.ResponseBuilder.Response(), nil
	})

	_, err := skill.Invoke(ctx, envelope(pkg.SessionEndedRequestType, ""))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Puts())
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seen := &observed{}

	skill := newSkill(t, store, seen, respond(true, func(session storage.Attributes) {
		session["color"] = "blue"
	}))
	_, err := skill.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
	require.NoError(t, err)
	first, _ := seen.last().Int(LaunchCountKey)

	reader := newSkill(t, store, seen, respond(false, nil))
	_, err = reader.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
	require.NoError(t, err)

	second := seen.last()
	assert.Equal(t, "blue", second["color"])
	count, _ := second.Int(LaunchCountKey)
	assert.Equal(t, first+1, count)
}

func TestScenarioFirstUseSaveOnExit(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seen := &observed{}
	skill := newSkill(t, store, seen, respond(true, func(session storage.Attributes) {
		session["1234"] = "Australia"
	}))

	response, err := skill.Invoke(ctx, envelope(pkg.IntentRequestType, "AMAZON.StopIntent"))
	require.NoError(t, err)
	assert.True(t, response.Response.EndsSession())
	assert.Nil(t, response.SessionAttributes)

	assert.Equal(t, storage.Attributes{LaunchCountKey: 0, BootstrapKey: BootstrapValue}, seen.sessions[0])

	stored, found, err := store.Get(ctx, userKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, storage.Attributes{
		LaunchCountKey: 0,
		BootstrapKey:   BootstrapValue,
		"1234":         "Australia",
		LastUseKey:     "SAVE NOW 1",
	}, stored)
}

func TestScenarioContinuingSessionSkipsSave(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(ctx, userKey, storage.Attributes{
		LaunchCountKey: 0,
		BootstrapKey:   BootstrapValue,
		"1234":         "Australia",
		LastUseKey:     "SAVE NOW 1",
	}))
	seen := &observed{}
	skill := newSkill(t, store, seen, respond(false, nil))

	_, err := skill.Invoke(ctx, envelope(pkg.IntentRequestType, "GetAttributeIntent"))
	require.NoError(t, err)
	second := seen.last()
	assert.Equal(t, 1, second[LaunchCountKey])
	assert.Equal(t, "Australia", second["1234"])

	_, err = skill.Invoke(ctx, envelope(pkg.IntentRequestType, "GetAttributeIntent"))
	require.NoError(t, err)
	assert.Equal(t, 1, seen.last()[LaunchCountKey])
	assert.Equal(t, 1, store.Puts())
}

func TestRetrievalFailureRunsNoHandler(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), getErr: errors.New("connection reset")}
	handled := false
	skill := newSkill(t, store, nil, func(context.Context, *core.HandlerInput) (*pkg.Response, error) {
		handled = true
		return &pkg.Response{}, nil
	})

	response, err := skill.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
	assert.Nil(t, response)
	var retrieval *core.RetrievalError
	assert.ErrorAs(t, err, &retrieval)
	assert.False(t, handled)
	assert.Equal(t, 0, store.Puts())
}

func TestPersistenceFailureKeepsResponse(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: storage.NewMemoryStore(), putErr: errors.New("throttled")}
	skill := newSkill(t, store, nil, respond(true, nil))

	response, err := skill.Invoke(ctx, envelope(pkg.IntentRequestType, "AMAZON.StopIntent"))
	require.NotNil(t, response)
	assert.Equal(t, "<speak>ok</speak>", response.Response.OutputSpeech.SSML)
	var persistence *core.PersistenceError
	require.ErrorAs(t, err, &persistence)
	assert.Equal(t, userKey, persistence.Key)
}

func TestCancelledContextSkipsSave(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	skill := newSkill(t, store, nil, func(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
		cancel()
		return input.ResponseBuilder.SetShouldEndSession(true).Response(), nil
	})

	_, err := skill.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Puts())
}

// Two cycles for one key that overlap both load the same count; the later
// save wins and one increment is lost.
func TestConcurrentCyclesLastWriterWins(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(ctx, userKey, storage.Attributes{LaunchCountKey: 3}))

	var loaded sync.WaitGroup
	loaded.Add(2)
	skill := newSkill(t, store, nil, func(_ context.Context, input *core.HandlerInput) (*pkg.Response, error) {
		loaded.Done()
		loaded.Wait()
		return input.ResponseBuilder.SetShouldEndSession(true).Response(), nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := skill.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, _, err := store.Get(ctx, userKey)
	require.NoError(t, err)
	count, _ := stored.Int(LaunchCountKey)
	assert.Equal(t, 4, count)
	assert.Equal(t, "SAVE NOW 5", stored[LastUseKey])
	assert.Equal(t, 3, store.Puts())
}

func TestLastUseMarkers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	skill := newSkill(t, store, nil, respond(true, nil),
		WithClock(func() time.Time { return now }),
		WithLastUseMarker(TimestampMarker),
	)

	_, err := skill.Invoke(ctx, envelope(pkg.LaunchRequestType, ""))
	require.NoError(t, err)

	stored, _, err := store.Get(ctx, userKey)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z #1", stored[LastUseKey])

	assert.Equal(t, "SAVE NOW 3", CountMarker(now, 2))
}

func TestShouldPersist(t *testing.T) {
	launch := &core.HandlerInput{RequestEnvelope: envelope(pkg.LaunchRequestType, "")}
	ended := &core.HandlerInput{RequestEnvelope: envelope(pkg.SessionEndedRequestType, "")}

	assert.True(t, ShouldPersist(launch, &pkg.Response{ShouldEndSession: pkg.Bool(true)}))
	assert.False(t, ShouldPersist(launch, &pkg.Response{ShouldEndSession: pkg.Bool(false)}))
	assert.False(t, ShouldPersist(launch, &pkg.Response{}))
	assert.True(t, ShouldPersist(ended, &pkg.Response{}))
}

func TestLoadTwiceInOneCycleFails(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	load := NewLoadAttributes(zerolog.Nop())

	input := &core.HandlerInput{
		RequestEnvelope:   envelope(pkg.LaunchRequestType, ""),
		AttributesManager: core.NewAttributesManager(envelope(pkg.LaunchRequestType, ""), store, storage.UserID),
		ResponseBuilder:   core.NewResponseBuilder(),
	}
	require.NoError(t, load.Process(ctx, input))
	assert.ErrorIs(t, load.Process(ctx, input), core.ErrAlreadyLoaded)
}

func TestLoggingInterceptors(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	input := &core.HandlerInput{RequestEnvelope: envelope(pkg.IntentRequestType, "HelpIntent")}
	require.NoError(t, NewRequestLogger(log).Process(ctx, input))
	require.NoError(t, NewResponseLogger(log).Process(ctx, input, &pkg.Response{ShouldEndSession: pkg.Bool(true)}))

	out := buf.String()
	assert.Contains(t, out, `"intent":"HelpIntent"`)
	assert.Contains(t, out, "Skill request")
	assert.Contains(t, out, `"ends_session":true`)
}
