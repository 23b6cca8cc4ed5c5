// Package web serves the sign-up API: the reconciled quarter view, claim
// and cancel, the SSE change stream, the store webhook, and the ICS feed.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"liturgyd/internal/claim"
	"liturgyd/internal/config"
	"liturgyd/internal/feed"
	appLog "liturgyd/internal/log"
	"liturgyd/internal/model"
	"liturgyd/internal/notify"
	"liturgyd/internal/propagate"
	"liturgyd/internal/schedule"
	"liturgyd/internal/store"
)

// Server provides the HTTP API. All shared mutable state (the view cache,
// the viewer hub) is instance-scoped so tests construct a fresh server per
// case.
type Server struct {
	cfg         *config.Config
	store       store.Store
	coordinator *claim.Coordinator
	hub         *propagate.Hub
	notifier    notify.Notifier
	loc         *time.Location
	mux         *http.ServeMux
	views       *viewCache
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st store.Store, hub *propagate.Hub, notifier notify.Notifier) *Server {
	if notifier == nil {
		notifier = notify.Log{}
	}
	s := &Server{
		cfg:         cfg,
		store:       st,
		coordinator: claim.NewCoordinator(st),
		hub:         hub,
		notifier:    notifier,
		loc:         resolveLocationOrLocal(cfg.Timezone),
		mux:         http.NewServeMux(),
		views:       newViewCache(time.Duration(cfg.CacheTTLSeconds) * time.Second),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// InvalidateViews drops the cached reconciled views. Exposed for the
// periodic refresh schedule, which keeps viewers converging even when no
// push event is ever delivered.
func (s *Server) InvalidateViews() {
	s.views.Invalidate()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/services", s.handleServices)
	s.mux.HandleFunc("/api/signup", s.handleSignup)
	s.mux.HandleFunc("/api/cancel", s.handleCancel)
	s.mux.HandleFunc("/api/sse", s.handleSSE)
	s.mux.HandleFunc("/api/webhook/store", s.handleWebhook)
	s.mux.HandleFunc("/api/schedule.ics", s.handleFeed)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="liturgyd", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// personDTO is a JSON-friendly view of one filled role slot.
type personDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// serviceDTO is a JSON-friendly view of one service instance.
type serviceDTO struct {
	ID          string     `json:"id"`
	Date        string     `json:"date"`
	DisplayDate string     `json:"displayDate"`
	Notes       string     `json:"notes,omitempty"`
	Liturgist   *personDTO `json:"liturgist"`
	Liturgist2  *personDTO `json:"liturgist2"`
	Backup      *personDTO `json:"backup"`
}

type servicesResponse struct {
	Success  bool         `json:"success"`
	Quarter  string       `json:"quarter"`
	Services []serviceDTO `json:"services"`
}

// handleServices returns the reconciled view for a quarter.
//
// GET /api/services?quarter=Q4-2025
//
// The endpoint never fails outright: when the store is unreachable it
// degrades to the bare generated scaffold so the calendar stays renderable.
// Degraded responses are not cached, so the next request retries the store.
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	window, err := s.windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, degraded, err := s.reconciledView(r.Context(), window)
	if err != nil {
		// Generation is pure; an error here means a malformed window
		// slipped through, which is unexpected.
		appLog.Error("services: generate failed", err, "quarter", window.String())
		writeError(w, http.StatusInternalServerError, "failed to generate calendar")
		return
	}
	if degraded {
		appLog.Info("services: degraded to bare scaffold", "quarter", window.String())
	}

	resp := servicesResponse{
		Success:  true,
		Quarter:  window.String(),
		Services: make([]serviceDTO, 0, len(view.Instances)),
	}
	for _, inst := range view.Instances {
		resp.Services = append(resp.Services, serviceDTO{
			ID:          inst.DateKey,
			Date:        inst.DateKey,
			DisplayDate: inst.DisplayLabel,
			Notes:       inst.Annotation,
			Liturgist:   slotDTO(inst, model.RolePrimary),
			Liturgist2:  slotDTO(inst, model.RoleSecondary),
			Backup:      slotDTO(inst, model.RoleBackup),
		})
	}

	noStore(w)
	writeJSON(w, http.StatusOK, resp)
}

// reconciledView returns the cached view for the window or rebuilds it from
// the generator plus the store. degraded is true when the store could not be
// read and the view is the bare scaffold.
func (s *Server) reconciledView(ctx context.Context, window schedule.Window) (model.ReconciledView, bool, error) {
	if view, ok := s.views.Get(window.String()); ok {
		return view, false, nil
	}

	instances, err := schedule.Generate(window, s.loc)
	if err != nil {
		return model.ReconciledView{}, false, err
	}

	assignments, err := s.store.List(ctx)
	if err != nil {
		appLog.Error("reconcile: store read failed, serving scaffold", err, "quarter", window.String())
		return model.ReconciledView{Instances: instances, GeneratedAt: time.Now()}, true, nil
	}

	view := schedule.Reconcile(instances, assignments)
	s.views.Put(window.String(), view)
	return view, false, nil
}

func slotDTO(inst model.ServiceInstance, role model.Role) *personDTO {
	a := inst.Slots[role]
	if a == nil {
		return nil
	}
	return &personDTO{ID: a.RecordID, Name: a.Name, Email: a.Email, Phone: a.Phone}
}

// signupRequest is the claim payload.
type signupRequest struct {
	Date         string `json:"date"`
	DisplayLabel string `json:"displayLabel"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role"`
	Notes        string `json:"notes,omitempty"`
}

// handleSignup commits one claim.
//
// POST /api/signup
//
// 200 with the created record id on success; 409 with isDuplicate and the
// current holder on conflict; 400 on validation failure; 503 when the store
// is unreachable (the write is retryable, never silently dropped).
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.coordinator.Claim(r.Context(), claim.Request{
		Date:         req.Date,
		DisplayLabel: req.DisplayLabel,
		RoleTag:      req.Role,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Notes:        req.Notes,
	})
	if err != nil {
		s.writeClaimError(w, err)
		return
	}

	s.propagateChange(created.Date, "signup")
	s.notifier.Claimed(r.Context(), created)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Signup submitted successfully!",
		"recordId": created.RecordID,
	})
}

func (s *Server) writeClaimError(w http.ResponseWriter, err error) {
	var verr *claim.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Reason)
		return
	}

	var conflict *claim.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       conflict.Error(),
			"isDuplicate": true,
			"holder":      conflict.Holder,
		})
		return
	}

	if errors.Is(err, store.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "record store unavailable, please retry")
		return
	}

	appLog.Error("signup: unexpected failure", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// cancelRequest is the cancellation payload.
type cancelRequest struct {
	RecordID string `json:"recordId"`
}

// handleCancel releases a claimed slot.
//
// POST /api/cancel
//
// Not-found is a distinct outcome (404) from a store outage (503).
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecordID == "" {
		writeError(w, http.StatusBadRequest, "recordId is required")
		return
	}

	prior, err := s.coordinator.Cancel(r.Context(), req.RecordID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "record not found")
		return
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "record store unavailable, please retry")
		return
	case err != nil:
		appLog.Error("cancel: unexpected failure", err, "record_id", req.RecordID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.propagateChange(prior.Date, "cancel")
	s.notifier.Cancelled(r.Context(), prior)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"date":    prior.Date,
		"role":    prior.RoleTag,
		"name":    prior.Name,
	})
}

// propagateChange invalidates the cached views and notifies viewers of the
// quarter containing the changed date.
func (s *Server) propagateChange(date, action string) {
	s.views.Invalidate()

	quarter := ""
	if parsed, err := time.ParseInLocation(model.DateLayout, date, s.loc); err == nil {
		quarter = schedule.WindowOf(parsed).String()
	}

	ev := propagate.Event{
		Type:    "data-update",
		Message: "Service data has been updated",
		Quarter: quarter,
	}
	if quarter == "" {
		// Should not happen for validated claims; fall back to everyone.
		s.hub.BroadcastAll(ev)
		return
	}
	s.hub.Broadcast(quarter, ev)

	appLog.Debug("change propagated", "action", action, "date", date, "quarter", quarter)
}

// handleWebhook receives the store's out-of-band change notification. The
// payload carries no reliable affected-date information, so handling is
// invalidate everything, notify everyone.
//
// POST /api/webhook/store; GET returns hub and cache stats.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]any{
			"cache": s.views.Stats(),
			"sse":   s.hub.GetStats(),
		})
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	appLog.Info("webhook: store change notification received")
	s.views.Invalidate()
	sent, dropped := s.hub.BroadcastAll(propagate.Event{
		Type:    "data-update",
		Message: "Service data has been updated",
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"clientsNotified": sent,
		"dropped":         dropped,
	})
}

// handleFeed serves the reconciled quarter as an iCalendar document.
//
// GET /api/schedule.ics?quarter=Q4-2025
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	window, err := s.windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, degraded, err := s.reconciledView(r.Context(), window)
	if err != nil {
		appLog.Error("feed: generate failed", err, "quarter", window.String())
		writeError(w, http.StatusInternalServerError, "failed to generate calendar")
		return
	}
	if degraded {
		appLog.Info("feed: degraded to bare scaffold", "quarter", window.String())
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(feed.Build(view)))
}

// windowParam resolves the quarter query parameter, defaulting to the
// quarter containing today.
func (s *Server) windowParam(r *http.Request) (schedule.Window, error) {
	q := r.URL.Query().Get("quarter")
	if q == "" {
		return schedule.WindowOf(time.Now().In(s.loc)), nil
	}
	return schedule.ParseWindow(q)
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
