// Package payment derives the bank transfer view of a Payment: instructions, an advisory countdown and copy
// acknowledgements. Nothing here is authoritative; the backend decides expiry and verification.
package payment

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/sohaeng-web/internal/domain"
)

const (
	// DefaultWindow is how long a transfer intent is displayed as open.
	DefaultWindow = time.Hour

	ExpiredLabel = "만료됨"

	// ids below this are plain sequence numbers, not Unix milliseconds
	minUnixMilli = 1_000_000_000_000
)

// CreatedAt extracts the creation time embedded in a payment id.
// Accepted forms are an RFC 3339 timestamp, Unix milliseconds and a time-based UUID (v1, v6, v7).
func CreatedAt(id string) (time.Time, bool) {
	if id == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339Nano, id); err == nil {
		return t, true
	}

	if ms, err := strconv.ParseInt(id, 10, 64); err == nil && ms >= minUnixMilli {
		return time.UnixMilli(ms), true
	}

	if u, err := uuid.Parse(id); err == nil {
		switch u.Version() {
		case 1, 6, 7:
			sec, nsec := u.Time().UnixTime()
			return time.Unix(sec, nsec), true
		}
	}

	return time.Time{}, false
}

// ExpiresAt is the end of the display window of p.
func ExpiresAt(p domain.Payment, window time.Duration) (time.Time, bool) {
	created, ok := CreatedAt(p.ID)
	if !ok {
		return time.Time{}, false
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return created.Add(window), true
}

// Remaining is the countdown state at one instant.
type Remaining struct {
	// Known is false when the id carries no timestamp; such countdowns are not shown.
	Known   bool
	Expired bool
	Minutes int
	Seconds int
}

// Countdown computes the remaining time of p at now.
func Countdown(p domain.Payment, window time.Duration, now time.Time) Remaining {
	expiry, ok := ExpiresAt(p, window)
	if !ok {
		return Remaining{}
	}

	if !now.Before(expiry) {
		return Remaining{Known: true, Expired: true}
	}

	diff := expiry.Sub(now)
	return Remaining{
		Known:   true,
		Minutes: int(diff / time.Minute),
		Seconds: int((diff % time.Minute) / time.Second),
	}
}

// Visible reports whether the countdown row should be rendered.
func (r Remaining) Visible() bool {
	return r.Known && !r.Expired
}

func (r Remaining) Label() string {
	switch {
	case !r.Known:
		return ""
	case r.Expired:
		return ExpiredLabel
	default:
		return fmt.Sprintf("%d분 %d초", r.Minutes, r.Seconds)
	}
}
