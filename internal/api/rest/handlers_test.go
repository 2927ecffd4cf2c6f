package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesswatch/accesswatch-backend/internal/domain/action"
	"github.com/accesswatch/accesswatch-backend/internal/domain/alert"
	"github.com/accesswatch/accesswatch-backend/internal/domain/event"
	"github.com/accesswatch/accesswatch-backend/internal/infrastructure/repository"
	"github.com/accesswatch/accesswatch-backend/internal/service/analysis"
	"github.com/accesswatch/accesswatch-backend/internal/testutil/fixtures"
)

type stubEventRepo struct {
	events []*event.AccessEvent
}

func (s *stubEventRepo) GetUnanalyzed(context.Context, bool, int) ([]*event.AccessEvent, error) {
	return s.events, nil
}

func (s *stubEventRepo) GetUnanalyzedInRange(context.Context, bool, time.Time, time.Time, int) ([]*event.AccessEvent, error) {
	return s.events, nil
}

func (s *stubEventRepo) MarkAnalyzed(context.Context, uuid.UUID, bool) error { return nil }

type stubAlertWriter struct{}

func (stubAlertWriter) Insert(context.Context, *alert.Alert) error { return nil }

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(context.Context, *event.AccessEvent) (*alert.Alert, error) {
	return nil, nil
}

type stubAlertStore struct {
	alerts     map[uuid.UUID]*alert.Alert
	updates    map[uuid.UUID]alert.Status
	resolvedBy map[uuid.UUID]string
}

func newStubAlertStore(alerts ...*alert.Alert) *stubAlertStore {
	s := &stubAlertStore{
		alerts:     make(map[uuid.UUID]*alert.Alert),
		updates:    make(map[uuid.UUID]alert.Status),
		resolvedBy: make(map[uuid.UUID]string),
	}
	for _, a := range alerts {
		s.alerts[a.ID] = a
	}
	return s
}

func (s *stubAlertStore) GetByID(_ context.Context, id uuid.UUID) (*alert.Alert, error) {
	a, ok := s.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (s *stubAlertStore) UpdateStatus(_ context.Context, id uuid.UUID, status alert.Status, resolvedBy, _ *string) error {
	s.updates[id] = status
	if resolvedBy != nil {
		s.resolvedBy[id] = *resolvedBy
	}
	return nil
}

type stubActionStore struct {
	actions []*action.Action
}

func (s *stubActionStore) GetByAlertID(context.Context, uuid.UUID) ([]*action.Action, error) {
	return s.actions, nil
}

type stubNameStore struct {
	mappings map[string]string
}

func (s *stubNameStore) Lookup(_ context.Context, pseudonym string) (string, error) {
	original, ok := s.mappings[pseudonym]
	if !ok {
		return "", repository.ErrNotFound
	}
	return original, nil
}

func newTestMux(t *testing.T, alerts AlertStore, actions ActionStore) *http.ServeMux {
	t.Helper()
	return newTestMuxWithNames(t, alerts, actions, nil)
}

func newTestMuxWithNames(t *testing.T, alerts AlertStore, actions ActionStore, names NameStore) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := analysis.NewService(&stubEventRepo{}, stubAlertWriter{}, stubAnalyzer{}, 100, nil, logger)
	h := NewHandler(svc, alerts, actions, names, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTriggerAnalysis(t *testing.T) {
	t.Run("empty_body_runs_default_sweep", func(t *testing.T) {
		mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analysis/trigger", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var result analysis.TriggerResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Zero(t, result.EventsProcessed)
	})

	t.Run("invalid_json_is_rejected", func(t *testing.T) {
		mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analysis/trigger",
			strings.NewReader("{not json")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("inverted_date_range_is_rejected", func(t *testing.T) {
		mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

		body := `{"start_date":"2026-03-10T00:00:00Z","end_date":"2026-03-01T00:00:00Z"}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analysis/trigger",
			strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_DATE_RANGE")
	})
}

func TestAnalysisProgress(t *testing.T) {
	mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analysis/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap analysis.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, analysis.StateIdle, snap.State)
}

func TestUpdateAlertStatus(t *testing.T) {
	patch := func(mux *http.ServeMux, id, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch,
			"/api/v1/alerts/"+id+"/status", strings.NewReader(body)))
		return rec
	}

	t.Run("new_to_investigating", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).Build()
		store := newStubAlertStore(a)
		mux := newTestMux(t, store, &stubActionStore{})

		rec := patch(mux, a.ID.String(), `{"status":"Investigating"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, alert.StatusInvestigating, store.updates[a.ID])
	})

	t.Run("resolve_records_metadata", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).WithStatus(alert.StatusInvestigating).Build()
		store := newStubAlertStore(a)
		mux := newTestMux(t, store, &stubActionStore{})

		rec := patch(mux, a.ID.String(),
			`{"status":"FalsePositive","resolved_by":"analyst@example.com","resolution":"travel notice"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, alert.StatusFalsePositive, store.updates[a.ID])
		assert.Equal(t, "analyst@example.com", store.resolvedBy[a.ID])

		var got alert.Alert
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "analyst@example.com", got.ResolvedBy)
		assert.NotNil(t, got.ResolvedAt)
	})

	t.Run("invalid_transition_is_unprocessable", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).WithStatus(alert.StatusResolved).Build()
		store := newStubAlertStore(a)
		mux := newTestMux(t, store, &stubActionStore{})

		rec := patch(mux, a.ID.String(), `{"status":"Investigating"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Empty(t, store.updates)
	})

	t.Run("unknown_status_is_rejected", func(t *testing.T) {
		a := fixtures.NewAlertBuilder(t).Build()
		mux := newTestMux(t, newStubAlertStore(a), &stubActionStore{})

		rec := patch(mux, a.ID.String(), `{"status":"Closed"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing_alert_is_not_found", func(t *testing.T) {
		mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

		rec := patch(mux, uuid.NewString(), `{"status":"Investigating"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "alert not found")
	})

	t.Run("malformed_id_is_rejected", func(t *testing.T) {
		mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

		rec := patch(mux, "not-a-uuid", `{"status":"Investigating"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAlertActions(t *testing.T) {
	t.Run("lists_ledger_rows", func(t *testing.T) {
		alertID := uuid.New()
		rows := []*action.Action{
			action.NewAction(alertID, action.TypeRevokeSession, false),
			action.NewAction(alertID, action.TypeLogIncident, false),
		}
		mux := newTestMux(t, newStubAlertStore(), &stubActionStore{actions: rows})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/v1/alerts/"+alertID.String()+"/actions", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got []*action.Action
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("no_rows_is_empty_array", func(t *testing.T) {
		mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/v1/alerts/"+uuid.NewString()+"/actions", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestLookupName(t *testing.T) {
	get := func(mux *http.ServeMux, pseudonym string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/v1/name-mappings/"+pseudonym, nil))
		return rec
	}

	t.Run("resolves_known_pseudonym", func(t *testing.T) {
		names := &stubNameStore{mappings: map[string]string{"user-abc123": "alice@example.com"}}
		mux := newTestMuxWithNames(t, newStubAlertStore(), &stubActionStore{}, names)

		rec := get(mux, "user-abc123")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"pseudonym":"user-abc123","original":"alice@example.com"}`, rec.Body.String())
	})

	t.Run("unknown_pseudonym_is_not_found", func(t *testing.T) {
		names := &stubNameStore{mappings: map[string]string{}}
		mux := newTestMuxWithNames(t, newStubAlertStore(), &stubActionStore{}, names)

		rec := get(mux, "user-missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "name mapping not found")
	})

	t.Run("disabled_store_is_not_found", func(t *testing.T) {
		mux := newTestMux(t, newStubAlertStore(), &stubActionStore{})

		rec := get(mux, "user-abc123")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
