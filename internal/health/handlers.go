package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the readiness gate; shutdown hooks call it with false so
// load balancers drain the instance before the listener closes.
func SetReady(value bool) { ready.Store(value) }

// Handler exposes HTTP handlers for health endpoints. The service keeps all
// state in process memory, so readiness is purely the shutdown gate.
type Handler struct{}

// Live reports liveness status.
func (Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on the shutdown gate.
func (Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]string{"service": "ok"}
	if !ready.Load() {
		status["service"] = "shutting down"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}
