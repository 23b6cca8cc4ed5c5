package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liturgyd/internal/config"
	"liturgyd/internal/model"
	"liturgyd/internal/propagate"
	"liturgyd/internal/store"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.HeartbeatSeconds = 1
	return cfg
}

func newTestServer(st store.Store) *Server {
	return NewServer(testConfig(), st, propagate.NewHub(), nil)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func validSignup() map[string]any {
	return map[string]any{
		"date":         "2025-11-30",
		"displayLabel": "November 30, 2025",
		"name":         "Sarah Johnson",
		"email":        "sarah@example.com",
		"phone":        "(707) 555-0123",
		"role":         "Liturgist",
	}
}

func TestServicesEndpoint(t *testing.T) {
	t.Run("merges store records into the scaffold", func(t *testing.T) {
		mem := store.NewMemory()
		_, err := mem.Create(context.Background(), model.Assignment{
			Date: "2025-11-30", RoleTag: "Liturgist", Name: "Sarah Johnson", Email: "sarah@example.com",
		})
		require.NoError(t, err)

		s := newTestServer(mem)
		var resp servicesResponse
		rec := getJSON(t, s.Handler(), "/api/services?quarter=Q4-2025", &resp)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "no-store, no-cache, must-revalidate", rec.Header().Get("Cache-Control"))
		assert.True(t, resp.Success)
		assert.Equal(t, "Q4-2025", resp.Quarter)
		require.Len(t, resp.Services, 14)

		var found bool
		for _, svc := range resp.Services {
			if svc.Date == "2025-11-30" {
				found = true
				require.NotNil(t, svc.Liturgist)
				assert.Equal(t, "Sarah Johnson", svc.Liturgist.Name)
				assert.Contains(t, svc.Notes, "Advent Week 1")
			}
		}
		assert.True(t, found)
	})

	t.Run("degrades to bare scaffold during store outage", func(t *testing.T) {
		s := newTestServer(failingStore{})
		var resp servicesResponse
		rec := getJSON(t, s.Handler(), "/api/services?quarter=Q4-2025", &resp)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, resp.Services, 14)
		for _, svc := range resp.Services {
			assert.Nil(t, svc.Liturgist, "date %s", svc.Date)
			assert.Nil(t, svc.Liturgist2, "date %s", svc.Date)
			assert.Nil(t, svc.Backup, "date %s", svc.Date)
		}
	})

	t.Run("rejects malformed quarter", func(t *testing.T) {
		s := newTestServer(store.NewMemory())
		rec := getJSON(t, s.Handler(), "/api/services?quarter=Q9-xx", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSignupEndpoint(t *testing.T) {
	t.Run("success returns record id", func(t *testing.T) {
		s := newTestServer(store.NewMemory())
		rec := postJSON(t, s.Handler(), "/api/signup", validSignup())

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		assert.NotEmpty(t, resp["recordId"])
	})

	t.Run("conflict returns 409 naming the holder", func(t *testing.T) {
		s := newTestServer(store.NewMemory())
		require.Equal(t, http.StatusOK, postJSON(t, s.Handler(), "/api/signup", validSignup()).Code)

		second := validSignup()
		second["name"] = "John Smith"
		second["email"] = "john@example.com"
		rec := postJSON(t, s.Handler(), "/api/signup", second)

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["isDuplicate"])
		assert.Equal(t, "Sarah Johnson", resp["holder"])
		assert.Contains(t, resp["error"], "Sarah Johnson")
	})

	t.Run("validation failure returns 400", func(t *testing.T) {
		s := newTestServer(store.NewMemory())
		bad := validSignup()
		bad["email"] = "sarah@example"
		rec := postJSON(t, s.Handler(), "/api/signup", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store outage returns 503", func(t *testing.T) {
		s := newTestServer(failingStore{})
		rec := postJSON(t, s.Handler(), "/api/signup", validSignup())
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("signup invalidates the cached view", func(t *testing.T) {
		s := newTestServer(store.NewMemory())
		h := s.Handler()

		var before servicesResponse
		getJSON(t, h, "/api/services?quarter=Q4-2025", &before)
		require.Equal(t, http.StatusOK, postJSON(t, h, "/api/signup", validSignup()).Code)

		var after servicesResponse
		getJSON(t, h, "/api/services?quarter=Q4-2025", &after)

		var filled *personDTO
		for _, svc := range after.Services {
			if svc.Date == "2025-11-30" {
				filled = svc.Liturgist
			}
		}
		require.NotNil(t, filled)
		assert.Equal(t, "Sarah Johnson", filled.Name)
	})
}

func TestCancelEndpoint(t *testing.T) {
	t.Run("cancel then requery shows empty slot", func(t *testing.T) {
		s := newTestServer(store.NewMemory())
		h := s.Handler()

		rec := postJSON(t, h, "/api/signup", validSignup())
		require.Equal(t, http.StatusOK, rec.Code)
		var created map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

		rec = postJSON(t, h, "/api/cancel", map[string]any{"recordId": created["recordId"]})
		require.Equal(t, http.StatusOK, rec.Code)
		var released map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &released))
		assert.Equal(t, "2025-11-30", released["date"])
		assert.Equal(t, "Sarah Johnson", released["name"])

		var view servicesResponse
		getJSON(t, h, "/api/services?quarter=Q4-2025", &view)
		for _, svc := range view.Services {
			if svc.Date == "2025-11-30" {
				assert.Nil(t, svc.Liturgist)
			}
		}
	})

	t.Run("missing record returns 404", func(t *testing.T) {
		s := newTestServer(store.NewMemory())
		rec := postJSON(t, s.Handler(), "/api/cancel", map[string]any{"recordId": "rec-missing"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store outage returns 503", func(t *testing.T) {
		s := newTestServer(failingStore{})
		rec := postJSON(t, s.Handler(), "/api/cancel", map[string]any{"recordId": "rec1"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestWebhookEndpoint(t *testing.T) {
	s := newTestServer(store.NewMemory())
	h := s.Handler()

	viewer := s.hub.Register("Q4-2025")
	defer s.hub.Unregister(viewer.ID)

	rec := postJSON(t, h, "/api/webhook/store", map[string]any{"base": "appTEST"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["clientsNotified"])

	select {
	case ev := <-viewer.Events:
		assert.Equal(t, "data-update", ev.Type)
	default:
		t.Fatal("viewer received no event")
	}

	var stats map[string]any
	getJSON(t, h, "/api/webhook/store", &stats)
	assert.Contains(t, stats, "cache")
	assert.Contains(t, stats, "sse")
}

func TestFeedEndpoint(t *testing.T) {
	mem := store.NewMemory()
	_, err := mem.Create(context.Background(), model.Assignment{
		Date: "2025-11-30", RoleTag: "Liturgist", Name: "Sarah Johnson", Email: "sarah@example.com",
	})
	require.NoError(t, err)

	s := newTestServer(mem)
	req := httptest.NewRequest(http.MethodGet, "/api/schedule.ics?quarter=Q4-2025", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "Sarah Johnson")
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	s := NewServer(cfg, store.NewMemory(), propagate.NewHub(), nil)
	h := s.Handler()

	t.Run("health stays open", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("api requires credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/services?quarter=Q4-2025", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/services?quarter=Q4-2025", nil)
		req.SetBasicAuth("admin", "pw")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// failingStore simulates a store outage on every call.
type failingStore struct{}

func (failingStore) List(context.Context) ([]model.Assignment, error) {
	return nil, store.ErrUnavailable
}

func (failingStore) Create(context.Context, model.Assignment) (model.Assignment, error) {
	return model.Assignment{}, store.ErrUnavailable
}

func (failingStore) Find(context.Context, string) (model.Assignment, error) {
	return model.Assignment{}, store.ErrUnavailable
}

func (failingStore) Delete(context.Context, string) error {
	return store.ErrUnavailable
}
