package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/internal/ratelimit"
	"github.com/Proton-105/sohaeng-web/internal/session"
)

// KeyFunc picks the rate limit subject of a request.
type KeyFunc func(r *http.Request) string

// ByIP keys on the client address. chi's RealIP middleware must run first behind a proxy.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// ByUser keys on the session user and falls back to the address for anonymous requests.
func ByUser(r *http.Request) string {
	if sess, ok := session.FromContext(r.Context()); ok {
		return "user:" + sess.UserID
	}
	return ByIP(r)
}

// Notifier queues a toast for a user.
type Notifier interface {
	Push(ctx context.Context, userID string, n notice.Notice) error
}

// RateLimitMiddleware enforces named sliding window rules on HTTP routes.
type RateLimitMiddleware struct {
	limiter  ratelimit.Limiter
	rules    *ratelimit.Rules
	notifier Notifier
	log      *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component. notifier may be nil.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, notifier Notifier, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter:  limiter,
		rules:    rules,
		notifier: notifier,
		log:      log,
	}
}

// Limit returns a middleware enforcing rule per key. Limiter failures let the request through.
func (m *RateLimitMiddleware) Limit(rule string, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil || m.limiter == nil || m.rules == nil || !m.rules.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			limit, window, err := m.rules.Get(rule)
			if err != nil {
				m.log.Error("failed to load rate limit rule", slog.String("rule", rule), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			subject := key(r)
			result, err := m.limiter.Check(r.Context(), rule+":"+subject, limit, window)
			if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
				m.log.Warn("rate limiter error", slog.String("rule", rule), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if result != nil && result.Allowed {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				next.ServeHTTP(w, r)
				return
			}

			m.reject(w, r, rule, subject, result)
		})
	}
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request, rule, subject string, result *ratelimit.Result) {
	retryAfter := result.RetryAfter(time.Now())

	appErr := apperrors.NewRateLimitError(retryAfter)
	m.log.WarnContext(r.Context(), "rate limit exceeded",
		slog.String("rule", rule),
		slog.String("subject", subject),
		slog.Int("retry_after", retryAfter),
	)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	sess, signedIn := session.FromContext(r.Context())
	if signedIn && m.notifier != nil && r.Method == http.MethodPost {
		if back, ok := sameOriginReferer(r); ok {
			if err := m.notifier.Push(r.Context(), sess.UserID, notice.Error(appErr.UserMessage)); err == nil {
				http.Redirect(w, r, back, http.StatusSeeOther)
				return
			}
		}
	}

	http.Error(w, appErr.UserMessage, http.StatusTooManyRequests)
}

// sameOriginReferer returns the path of the page that submitted the form.
func sameOriginReferer(r *http.Request) (string, bool) {
	ref := r.Referer()
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host != r.Host || u.Path == "" {
		return "", false
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery, true
	}
	return u.Path, true
}
