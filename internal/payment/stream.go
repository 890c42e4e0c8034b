package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Proton-105/sohaeng-web/internal/domain"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Tick is one countdown event.
type Tick struct {
	Label   string `json:"label"`
	Expired bool   `json:"expired"`
	Minutes int    `json:"minutes"`
	Seconds int    `json:"seconds"`
}

// Streamer pushes the countdown of a payment as server-sent events.
type Streamer struct {
	Window   time.Duration
	Interval time.Duration
	Now      func() time.Time
}

func NewStreamer(window time.Duration) *Streamer {
	return &Streamer{Window: window, Interval: time.Second, Now: time.Now}
}

// Stream writes one event per interval until the window elapses or ctx ends. Unknown countdowns end right away.
func (s *Streamer) Stream(ctx context.Context, w http.ResponseWriter, p domain.Payment) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r := Countdown(p, s.Window, now())
		if !r.Known {
			return writeEvent(w, flusher, "unknown", Tick{})
		}

		tick := Tick{Label: r.Label(), Expired: r.Expired, Minutes: r.Minutes, Seconds: r.Seconds}
		if r.Expired {
			return writeEvent(w, flusher, "expired", tick)
		}
		if err := writeEvent(w, flusher, "tick", tick); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func writeEvent(w http.ResponseWriter, f http.Flusher, event string, tick Tick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	f.Flush()
	return nil
}
