package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	appLog "liturgyd/internal/log"
	"liturgyd/internal/propagate"
)

// handleSSE serves the per-viewer change stream.
//
// GET /api/sse?quarter=Q4-2025
//
// The stream opens with a "connected" event, then carries change markers
// plus keep-alive comments at the configured heartbeat interval. Push here
// is a latency optimization: viewers also poll /api/services, so a dropped
// connection degrades latency, not correctness. Disconnects deregister the
// viewer; the periodic sweep catches anything the transport never reports.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	window, err := s.windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	viewer := s.hub.Register(window.String())
	defer s.hub.Unregister(viewer.ID)

	writeSSEEvent(w, propagate.Event{
		Type:      "connected",
		Message:   "SSE connection established",
		Quarter:   window.String(),
		Timestamp: time.Now(),
	})
	flusher.Flush()

	heartbeat := time.NewTicker(time.Duration(s.cfg.HeartbeatSeconds) * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, open := <-viewer.Events:
			if !open {
				// Deregistered out from under us (stale sweep).
				return
			}
			writeSSEEvent(w, ev)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, ": keep-alive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev propagate.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		appLog.Error("sse: marshal failed", err, "type", ev.Type)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
