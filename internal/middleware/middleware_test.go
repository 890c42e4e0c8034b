package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sohaeng-web/internal/idempotency"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/internal/ratelimit"
	"github.com/Proton-105/sohaeng-web/internal/session"
	"github.com/Proton-105/sohaeng-web/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func signedIn(r *http.Request, userID string) *http.Request {
	return r.WithContext(session.WithSession(r.Context(), &session.Session{UserID: userID}))
}

func TestLogging_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := New(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/discover", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestStatusRecorder_Flushes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := wrapWriter(rec)
	_, _ = w.Write([]byte("data: x\n\n"))
	w.Flush()

	assert.True(t, rec.Flushed)
	assert.Same(t, w, wrapWriter(w))
	assert.Equal(t, http.StatusOK, w.Status())
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			got = routePattern(req)
		})
	})
	r.Get("/matches/{id}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/matches/42", nil))
	assert.Equal(t, "/matches/{id}", got)

	assert.Equal(t, "unmatched", routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)))
}

func TestRecoverer(t *testing.T) {
	handler := Recoverer(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type recordingNotifier struct {
	mu     sync.Mutex
	pushed map[string][]notice.Notice
}

func (n *recordingNotifier) Push(_ context.Context, userID string, nt notice.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pushed == nil {
		n.pushed = make(map[string][]notice.Notice)
	}
	n.pushed[userID] = append(n.pushed[userID], nt)
	return nil
}

func newRateLimit(t *testing.T, limit int, notifier Notifier) *RateLimitMiddleware {
	t.Helper()

	rules := ratelimit.NewRules(config.RateLimitConfig{
		Enabled: true,
		Rules: map[string]config.RateLimitRule{
			ratelimit.RuleLikes: {Limit: limit, Window: "1m"},
		},
	})
	limiter := ratelimit.NewRedisLimiter(setupTestRedis(t), testLogger())
	return NewRateLimitMiddleware(limiter, rules, notifier, testLogger())
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		signedIn   bool
		referer    string
		wantStatus int
		wantNotice bool
	}{
		{name: "anonymous gets 429", wantStatus: http.StatusTooManyRequests},
		{name: "signed in form goes back with notice", signedIn: true, referer: "http://example.com/discover", wantStatus: http.StatusSeeOther, wantNotice: true},
		{name: "foreign referer gets 429", signedIn: true, referer: "http://evil.test/discover", wantStatus: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			mw := newRateLimit(t, 1, notifier)
			handler := mw.Limit(ratelimit.RuleLikes, ByUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))

			send := func() *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, "http://example.com/discover/like", nil)
				if tt.signedIn {
					req = signedIn(req, "u1")
				}
				if tt.referer != "" {
					req.Header.Set("Referer", tt.referer)
				}
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)
				return rec
			}

			first := send()
			assert.Equal(t, http.StatusNoContent, first.Code)
			assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

			second := send()
			assert.Equal(t, tt.wantStatus, second.Code)
			assert.NotEmpty(t, second.Header().Get("Retry-After"))
			if tt.wantStatus == http.StatusSeeOther {
				assert.Equal(t, "/discover", second.Header().Get("Location"))
			}
			assert.Equal(t, tt.wantNotice, len(notifier.pushed["u1"]) == 1)
		})
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	mw := newRateLimit(t, 0, nil)
	mw.rules.Update(config.RateLimitConfig{Enabled: false})

	handler := mw.Limit(ratelimit.RuleLikes, ByIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestByIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "ip:10.0.0.7", ByIP(req))
	assert.Equal(t, "user:u9", ByUser(signedIn(req, "u9")))
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return signedIn(req, "u1")
}

func TestIdempotency_ReplaysRedirect(t *testing.T) {
	client := setupTestRedis(t)
	manager := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), testLogger())

	calls := 0
	handler := Idempotency(manager, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Redirect(w, r, "/payment/m1", http.StatusSeeOther)
	}))

	form := url.Values{FormTokenField: {"tok-1"}}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postForm("/payment/m1", form))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/payment/m1", rec.Header().Get("Location"))
	}
	assert.Equal(t, 1, calls)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postForm("/payment/m1", url.Values{FormTokenField: {"tok-2"}}))
	assert.Equal(t, 2, calls, "a new token is a new submission")
}

func TestIdempotency_FailedSubmissionCanBeResent(t *testing.T) {
	client := setupTestRedis(t)
	manager := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), testLogger())

	calls := 0
	handler := Idempotency(manager, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("invalid"))
	}))

	form := url.Values{FormTokenField: {"tok"}}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postForm("/profile/edit", form))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid", rec.Body.String())
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotency_NoTokenRunsDirectly(t *testing.T) {
	calls := 0
	handler := Idempotency(idempotency.NewManager(idempotency.NewRedisStore(setupTestRedis(t), testLogger()), testLogger()), testLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }),
	)

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), postForm("/profile/edit", url.Values{}))
	}
	assert.Equal(t, 2, calls)
}
