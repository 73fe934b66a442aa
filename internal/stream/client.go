package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lowfreq/meridian/internal/logging"
)

// client manages a single SSE connection's write side.
type client struct {
	w             http.ResponseWriter
	flusher       http.Flusher
	rc            *http.ResponseController
	ip            string
	writeDeadline time.Duration
	logger        *logging.Logger
}

// sendJSON sends v as one SSE "data:" message.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	// Extend the write deadline before each write so a stalled client times
	// out instead of pinning the connection forever.
	if err := c.rc.SetWriteDeadline(time.Now().Add(c.writeDeadline)); err != nil {
		c.logger.Debugw("could not set write deadline", "error", err)
	}

	if _, err := fmt.Fprintf(c.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	return nil
}

// sendKeepalive sends an SSE comment line (":\n\n") to hold the connection
// open through idle proxies.
func (c *client) sendKeepalive() error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(c.writeDeadline)); err != nil {
		c.logger.Debugw("could not set write deadline", "error", err)
	}

	if _, err := fmt.Fprint(c.w, ":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	c.flusher.Flush()
	return nil
}
