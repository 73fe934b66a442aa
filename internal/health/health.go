// Package health serves the liveness and readiness probes. Liveness is
// unconditional; readiness is gated on registered preconditions such as the
// schedule warmup or TLE availability.
package health

import (
	"net/http"
	"strings"
)

// Probe is one named readiness precondition.
type Probe struct {
	Name  string
	Ready func() bool
}

// Handler answers the probe endpoints.
type Handler struct {
	probes []Probe
}

// New builds a Handler gating readiness on the given probes. With no probes
// the service is ready as soon as it is serving.
func New(probes ...Probe) *Handler {
	return &Handler{probes: probes}
}

// Healthz returns 200 "ok\n" unconditionally.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns 200 "ready\n" once every probe passes, else 503 naming the
// probes still waiting.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var waiting []string
	for _, p := range h.probes {
		if !p.Ready() {
			waiting = append(waiting, p.Name)
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	if len(waiting) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("waiting: " + strings.Join(waiting, ", ") + "\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
