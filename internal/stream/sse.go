// Package stream serves the live pointing feed over Server-Sent Events.
// A client receives the monitored target's hour angle, elevation and
// azimuth at the current instant, re-evaluated every interval.
//
// SSE message format:
//
//	data: {"type":"pointing","time":"2020-09-09T06:10:12Z","hour_angle_deg":359.9,...}\n\n
//
// The first message on every connection is metadata describing the target,
// site and cadence. Keep-alive comments (":\n\n") hold idle connections
// open through proxies.
package stream

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lowfreq/meridian/internal/config"
	"github.com/lowfreq/meridian/internal/httputil"
	"github.com/lowfreq/meridian/internal/logging"
	"github.com/lowfreq/meridian/internal/metrics"
	"github.com/lowfreq/meridian/internal/search"
)

// Handler manages SSE pointing-stream connections.
type Handler struct {
	cfg        config.StreamConfig
	trustProxy bool
	limiter    *ipLimiter
	active     atomic.Int32
	clock      clockwork.Clock
	logger     *logging.Logger
}

// NewHandler builds a stream handler. Zero config fields fall back to
// defaults.
func NewHandler(cfg config.StreamConfig, trustProxy bool, logger *logging.Logger) *Handler {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 100
	}
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.KeepaliveSec <= 0 {
		cfg.KeepaliveSec = 15
	}
	if cfg.WriteDeadlineSec <= 0 {
		cfg.WriteDeadlineSec = 5
	}
	return &Handler{
		cfg:        cfg,
		trustProxy: trustProxy,
		limiter:    newIPLimiter(cfg.RatePerMin, cfg.Burst),
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
}

// SetClock swaps the wall clock for tests.
func (h *Handler) SetClock(clock clockwork.Clock) { h.clock = clock }

// Serve streams pointing samples for a resolved target until the client
// disconnects. Intervals under one second are clamped up to a second.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, f *search.Finder, interval time.Duration) {
	if interval < time.Second {
		interval = time.Second
	}

	ip := httputil.ClientIP(r, h.trustProxy)
	if !h.limiter.allow(ip) {
		metrics.StreamRejected("rate_limit")
		h.logger.Warnw("stream connection rate limited", "remote_ip", ip)
		w.Header().Set("Retry-After", "30")
		httputil.Error(w, http.StatusTooManyRequests, "too many connection attempts")
		return
	}

	if n := h.active.Add(1); n > int32(h.cfg.MaxClients) {
		h.active.Add(-1)
		metrics.StreamRejected("max_clients")
		h.logger.Warnw("stream client cap reached", "remote_ip", ip, "max_clients", h.cfg.MaxClients)
		w.Header().Set("Retry-After", "30")
		httputil.Error(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}
	defer h.active.Add(-1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.StreamClientConnected()
	started := time.Now()
	h.logger.Infow("stream connected",
		"remote_ip", ip,
		"target", f.Target().Name(),
		"interval_seconds", interval.Seconds(),
	)
	defer func() {
		metrics.StreamClientDisconnected()
		h.logger.Infow("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(started).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived connection: clear the server-wide write timeout, then
	// extend a per-write deadline before every message.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debugw("could not clear write deadline", "error", err)
	}

	c := &client{
		w:             w,
		flusher:       flusher,
		rc:            rc,
		ip:            ip,
		writeDeadline: time.Duration(h.cfg.WriteDeadlineSec) * time.Second,
		logger:        h.logger,
	}

	// Jittered reconnect interval so a restart does not trigger a
	// thundering herd.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	meta := metadataMessage{
		Type:        "metadata",
		Target:      f.Target().Name(),
		Precision:   f.Target().Precision().String(),
		SiteLatDeg:  f.Site().LatDeg,
		SiteLonDeg:  f.Site().LonDeg,
		IntervalSec: int(interval.Seconds()),
	}
	if err := c.sendJSON(meta); err != nil {
		h.logger.Warnw("stream send error", "remote_ip", ip, "error", err)
		return
	}

	ticker := h.clock.NewTicker(interval)
	defer ticker.Stop()
	keepalive := h.clock.NewTicker(time.Duration(h.cfg.KeepaliveSec) * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.Chan():
			msg, err := h.sample(f)
			if err != nil {
				h.logger.Warnw("stream sample failed",
					"remote_ip", ip,
					"target", f.Target().Name(),
					"error", err,
				)
				return
			}
			if err := c.sendJSON(msg); err != nil {
				h.logger.Warnw("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepalive.Reset(time.Duration(h.cfg.KeepaliveSec) * time.Second)

		case <-keepalive.Chan():
			if err := c.sendKeepalive(); err != nil {
				h.logger.Warnw("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// sample evaluates the target's pointing at the current instant.
func (h *Handler) sample(f *search.Finder) (pointingMessage, error) {
	now := h.clock.Now()
	has, err := f.HourAngles([]time.Time{now})
	if err != nil {
		return pointingMessage{}, err
	}
	hz, err := f.Horizontal(now)
	if err != nil {
		return pointingMessage{}, err
	}
	return pointingMessage{
		Type:         "pointing",
		Time:         now.UTC().Format(time.RFC3339),
		HourAngleDeg: has[0],
		ElevationDeg: hz.ElDeg,
		AzimuthDeg:   hz.AzDeg,
	}, nil
}

// SSE message payload types.

type metadataMessage struct {
	Type        string  `json:"type"`
	Target      string  `json:"target"`
	Precision   string  `json:"precision"`
	SiteLatDeg  float64 `json:"site_lat_deg"`
	SiteLonDeg  float64 `json:"site_lon_deg"`
	IntervalSec int     `json:"interval_sec"`
}

type pointingMessage struct {
	Type         string  `json:"type"`
	Time         string  `json:"time"`
	HourAngleDeg float64 `json:"hour_angle_deg"`
	ElevationDeg float64 `json:"elevation_deg"`
	AzimuthDeg   float64 `json:"azimuth_deg"`
}
