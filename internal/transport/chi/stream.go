package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// eventWriter frames pipeline events as server-sent events.
type eventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	return &eventWriter{w: w, rc: http.NewResponseController(w)}
}

func (e *eventWriter) open() {
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	_ = e.rc.Flush()
}

// write sends one event and flushes it. Heartbeats become comment lines.
func (e *eventWriter) write(ev domain.Event) error {
	if ev.Type == domain.EventHeartbeat {
		if _, err := fmt.Fprint(e.w, ": ping\n\n"); err != nil {
			return fmt.Errorf("writing heartbeat: %w", err)
		}
		return e.flush()
	}

	var payload any
	switch {
	case ev.Progress != nil:
		payload = ev.Progress
	case ev.Result != nil:
		payload = ev.Result
	case ev.Error != nil:
		payload = ev.Error
	default:
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("writing %s event: %w", ev.Type, err)
	}
	return e.flush()
}

func (e *eventWriter) flush() error {
	if err := e.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("flushing event: %w", err)
	}
	return nil
}
