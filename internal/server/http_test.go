package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skill_persistence/internal/core"
	"skill_persistence/pkg"
	"skill_persistence/src/model"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var _ Invoker = (*core.Skill)(nil)

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Invoke(ctx context.Context, envelope *pkg.RequestEnvelope) (*pkg.ResponseEnvelope, error) {
	args := m.Called(ctx, envelope)
	response, _ := args.Get(0).(*pkg.ResponseEnvelope)
	return response, args.Error(1)
}

func newTestServer(invoker Invoker, opts ...Option) *Server {
	return New(invoker, model.ServerConfig{Addr: ":0"}, zerolog.Nop(), opts...)
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/skill", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSkillEndpoint(t *testing.T) {
	invoker := &mockInvoker{}
	invoker.On("Invoke", mock.Anything, mock.MatchedBy(func(e *pkg.RequestEnvelope) bool {
		return e.Request.Type == pkg.LaunchRequestType && e.Request.RequestID == "req-1"
	})).Return(&pkg.ResponseEnvelope{
		Version:  "1.0",
		Response: pkg.Response{OutputSpeech: &pkg.OutputSpeech{Type: "SSML", SSML: "<speak>hi</speak>"}},
	}, nil)

	rec := post(t, newTestServer(invoker), `{"version":"1.0","request":{"type":"LaunchRequest","requestId":"req-1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response pkg.ResponseEnvelope
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "<speak>hi</speak>", response.Response.OutputSpeech.SSML)
	invoker.AssertExpectations(t)
}

func TestSkillEndpointAssignsRequestID(t *testing.T) {
	invoker := &mockInvoker{}
	invoker.On("Invoke", mock.Anything, mock.MatchedBy(func(e *pkg.RequestEnvelope) bool {
		return e.Request.RequestID != ""
	})).Return(&pkg.ResponseEnvelope{Version: "1.0"}, nil)

	rec := post(t, newTestServer(invoker), `{"request":{"type":"LaunchRequest"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	invoker.AssertExpectations(t)
}

func TestSkillEndpointRejectsBadEnvelopes(t *testing.T) {
	invoker := &mockInvoker{}
	s := newTestServer(invoker)

	assert.Equal(t, http.StatusBadRequest, post(t, s, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, s, `{"request":{}}`).Code)
	invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestSkillEndpointRetrievalError(t *testing.T) {
	invoker := &mockInvoker{}
	invoker.On("Invoke", mock.Anything, mock.Anything).
		Return(nil, &core.RetrievalError{Key: "k", Err: errors.New("offline")})

	rec := post(t, newTestServer(invoker), `{"request":{"type":"LaunchRequest"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "offline")
}

func TestSkillEndpointOtherError(t *testing.T) {
	invoker := &mockInvoker{}
	invoker.On("Invoke", mock.Anything, mock.Anything).Return(nil, core.ErrNoHandlerMatched)

	rec := post(t, newTestServer(invoker), `{"request":{"type":"IntentRequest"}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSkillEndpointPersistenceErrorStillResponds(t *testing.T) {
	invoker := &mockInvoker{}
	invoker.On("Invoke", mock.Anything, mock.Anything).Return(&pkg.ResponseEnvelope{
		Version:  "1.0",
		Response: pkg.Response{ShouldEndSession: pkg.Bool(true)},
	}, &core.PersistenceError{Key: "k", Err: errors.New("throttled")})

	rec := post(t, newTestServer(invoker), `{"request":{"type":"IntentRequest"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"shouldEndSession":true`)
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("skill_cycles_total 1\n"))
	})
	s := newTestServer(&mockInvoker{}, WithMetricsHandler(metrics))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skill_cycles_total")

	rec = httptest.NewRecorder()
	newTestServer(&mockInvoker{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
