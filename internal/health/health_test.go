package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	h := New(Probe{Name: "never", Ready: func() bool { return false }})

	w := httptest.NewRecorder()
	h.Healthz(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "ok\n" {
		t.Errorf("body = %q, want %q", w.Body.String(), "ok\n")
	}
}

func TestReadyzNoProbes(t *testing.T) {
	h := New()

	w := httptest.NewRecorder()
	h.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "ready\n" {
		t.Errorf("body = %q, want %q", w.Body.String(), "ready\n")
	}
}

func TestReadyzWaitsForProbes(t *testing.T) {
	var warmed bool
	h := New(
		Probe{Name: "schedule", Ready: func() bool { return warmed }},
		Probe{Name: "tle", Ready: func() bool { return true }},
	)

	w := httptest.NewRecorder()
	h.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d before warmup, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(w.Body.String(), "schedule") {
		t.Errorf("body %q should name the waiting probe", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "tle") {
		t.Errorf("body %q should not name a passing probe", w.Body.String())
	}

	warmed = true
	w = httptest.NewRecorder()
	h.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d after warmup, want %d", w.Code, http.StatusOK)
	}
}
