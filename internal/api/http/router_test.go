package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/delta-silence/ticket-intake/internal/api/http/handlers"
	"github.com/delta-silence/ticket-intake/internal/domain"
	"github.com/delta-silence/ticket-intake/internal/observability"
	"github.com/delta-silence/ticket-intake/internal/service"
	"github.com/delta-silence/ticket-intake/internal/store"
)

var keyPattern = regexp.MustCompile(`^TCK-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}$`)

type recordingStore struct {
	mu      sync.Mutex
	content []byte
	sha     string
	getErr  error
	putErr  error
	calls   int
	written []byte
	pingErr error
}

func (s *recordingStore) GetFile(context.Context, string) (*store.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &store.File{Content: s.content, SHA: s.sha}, nil
}

func (s *recordingStore) PutFile(_ context.Context, _ string, content []byte, expectedSHA, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.putErr != nil {
		return s.putErr
	}
	if expectedSHA != s.sha {
		return &store.APIError{StatusCode: http.StatusConflict, Body: "sha mismatch"}
	}
	s.written = content
	return nil
}

func (s *recordingStore) Ping(context.Context) error { return s.pingErr }

type panickingCreator struct{}

func (panickingCreator) CreateTicket(context.Context, service.TicketCreateInput) (*domain.Ticket, error) {
	panic("boom")
}

func newTestApp(t *testing.T, creator handlers.TicketCreator, pinger store.Pinger) *fiber.App {
	t.Helper()
	app := fiber.New()
	metrics := observability.NewMetrics()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("ticket-intake", "test", "github", pinger, metrics),
		Tickets: handlers.NewTicketsHandler(creator),
	})
	return app
}

func newStoreApp(t *testing.T, s *recordingStore) *fiber.App {
	t.Helper()
	svc := service.NewTicketService(service.TicketDependencies{Store: s, Path: "tickets.json"})
	return newTestApp(t, svc, s)
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	return resp.StatusCode, decoded
}

const validBody = `{"topic":"billing","username":"alice","subject":"Refund","description":"Order #123"}`

func TestCreateTicketSuccess(t *testing.T) {
	s := &recordingStore{content: []byte("[]"), sha: "abc123"}
	app := newStoreApp(t, s)

	status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	key, _ := body["key"].(string)
	assert.Regexp(t, keyPattern, key)

	var stored []map[string]any
	require.NoError(t, json.Unmarshal(s.written, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, key, stored[0]["key"])
	assert.Equal(t, "Open", stored[0]["status"])
	assert.True(t, strings.HasPrefix(string(s.written), "[\n  {\n    \"key\""))
}

func TestCreateTicketRejectsOtherMethods(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			s := &recordingStore{content: []byte("[]"), sha: "abc123"}
			app := newStoreApp(t, s)

			status, body := doJSON(t, app, method, CreateTicketPath, validBody)

			assert.Equal(t, http.StatusMethodNotAllowed, status)
			assert.Equal(t, map[string]any{"error": "Only POST allowed"}, body)
			assert.Zero(t, s.calls)
		})
	}
}

func TestCreateTicketMissingFields(t *testing.T) {
	cases := map[string]string{
		"no topic":       `{"username":"alice","subject":"Refund","description":"d"}`,
		"empty username": `{"topic":"billing","username":"","subject":"Refund","description":"d"}`,
		"no subject":     `{"topic":"billing","username":"alice","description":"d"}`,
		"no description": `{"topic":"billing","username":"alice","subject":"Refund"}`,
		"empty object":   `{}`,
		"not json":       `topic=billing`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			s := &recordingStore{content: []byte("[]"), sha: "abc123"}
			app := newStoreApp(t, s)

			status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, payload)

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, map[string]any{"error": "Missing fields"}, body)
			assert.Zero(t, s.calls)
		})
	}
}

func TestCreateTicketReadFailure(t *testing.T) {
	s := &recordingStore{getErr: &store.APIError{StatusCode: http.StatusUnauthorized, Body: `{"message":"Bad credentials"}`}}
	app := newStoreApp(t, s)

	status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Failed to load GitHub file", body["error"])
	assert.Equal(t, `{"message":"Bad credentials"}`, body["details"])
	assert.Equal(t, 1, s.calls)
	assert.Nil(t, s.written)
}

func TestCreateTicketEmptyUpstreamBodyKeepsDetails(t *testing.T) {
	s := &recordingStore{getErr: &store.APIError{StatusCode: http.StatusBadGateway, Body: ""}}
	app := newStoreApp(t, s)

	status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, map[string]any{"error": "Failed to load GitHub file", "details": ""}, body)
	assert.Nil(t, s.written)
}

func TestCreateTicketBlankCollectionIsServerError(t *testing.T) {
	s := &recordingStore{content: []byte("\n"), sha: "abc123"}
	app := newStoreApp(t, s)

	status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Server error", body["error"])
	assert.Contains(t, body, "details")
	assert.Equal(t, 1, s.calls)
	assert.Nil(t, s.written)
}

func TestCreateTicketCommitFailure(t *testing.T) {
	s := &recordingStore{content: []byte("[]"), sha: "abc123", putErr: &store.APIError{StatusCode: http.StatusConflict, Body: "tickets.json does not match abc123"}}
	app := newStoreApp(t, s)

	status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "GitHub commit failed", body["error"])
	assert.Equal(t, "tickets.json does not match abc123", body["details"])
}

func TestCreateTicketUnexpectedFault(t *testing.T) {
	s := &recordingStore{content: []byte("{not json"), sha: "abc123"}
	app := newStoreApp(t, s)

	status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Server error", body["error"])
	assert.NotEmpty(t, body["details"])
	assert.Nil(t, s.written)
}

func TestCreateTicketTransportFault(t *testing.T) {
	s := &recordingStore{getErr: errors.New("github: get tickets.json: connection reset")}
	app := newStoreApp(t, s)

	status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Server error", body["error"])
	assert.Equal(t, "github: get tickets.json: connection reset", body["details"])
}

func TestPanicRecovered(t *testing.T) {
	app := newTestApp(t, panickingCreator{}, &recordingStore{})

	status, body := doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Server error", body["error"])
	assert.Equal(t, "panic: boom", body["details"])
}

func TestHealthEndpoints(t *testing.T) {
	s := &recordingStore{}
	app := newStoreApp(t, s)

	status, body := doJSON(t, app, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = doJSON(t, app, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	s.pingErr = errors.New("unreachable")
	status, body = doJSON(t, app, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, map[string]any{"github": "unreachable"}, body["details"])
}

func TestMetricsCountRequests(t *testing.T) {
	s := &recordingStore{content: []byte("[]"), sha: "abc123"}
	app := newStoreApp(t, s)

	doJSON(t, app, http.MethodGet, CreateTicketPath, "")
	doJSON(t, app, http.MethodPost, CreateTicketPath, validBody)

	_, body := doJSON(t, app, http.MethodGet, "/metrics", "")
	requests, ok := body["requests"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, requests[CreateTicketPath+"|GET|405"])
	assert.EqualValues(t, 1, requests[CreateTicketPath+"|POST|200"])

	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, errs[CreateTicketPath+"|GET|METHOD_NOT_ALLOWED"])
}

func TestUnknownRoute(t *testing.T) {
	app := newStoreApp(t, &recordingStore{})

	status, body := doJSON(t, app, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["error"])
}

func TestRequestIDHeader(t *testing.T) {
	app := newStoreApp(t, &recordingStore{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(observability.RequestIDHeader, "req-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-1", resp.Header.Get(observability.RequestIDHeader))
}
