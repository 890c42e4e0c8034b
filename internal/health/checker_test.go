package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestChecker_Check(t *testing.T) {
	tests := []struct {
		name    string
		checks  map[string]Checkable
		wantOK  bool
		failing []string
	}{
		{
			name:   "all healthy",
			checks: map[string]Checkable{"redis": NewPingChecker(fakePinger{}), "backend": NewPingChecker(fakePinger{})},
			wantOK: true,
		},
		{
			name:    "backend down",
			checks:  map[string]Checkable{"redis": NewPingChecker(fakePinger{}), "backend": NewPingChecker(fakePinger{err: errors.New("refused")})},
			failing: []string{"backend"},
		},
		{
			name:    "unconfigured pinger",
			checks:  map[string]Checkable{"redis": NewPingChecker(nil)},
			failing: []string{"redis"},
		},
		{
			name:   "no checks",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(slog.New(slog.NewTextHandler(io.Discard, nil)))
			for name, check := range tt.checks {
				checker.AddCheck(name, check)
			}

			report := checker.Check(context.Background())
			assert.Equal(t, tt.wantOK, report.OK)
			require.Len(t, report.Components, len(tt.checks))

			var failing []string
			for _, s := range report.Components {
				if !s.OK {
					failing = append(failing, s.Name)
					assert.NotEmpty(t, s.Error)
				}
			}
			assert.Equal(t, tt.failing, failing)
		})
	}
}

func TestChecker_TimesOutSlowChecks(t *testing.T) {
	checker := NewChecker(nil)
	checker.timeout = 20 * time.Millisecond
	checker.AddCheck("slow", CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	report := checker.Check(context.Background())
	assert.False(t, report.OK)
	assert.Contains(t, report.Components[0].Error, "deadline")
}
