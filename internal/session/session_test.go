package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sohaeng-web/internal/api"
	"github.com/Proton-105/sohaeng-web/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCookies() *Cookies {
	return NewCookies(NewCodec(testSecret, time.Hour), "", false)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec(testSecret, time.Hour)

	raw, err := codec.Encode(&Session{UserID: "u-1", BackendToken: "backend.jwt", Nickname: "민수", Role: "admin"})
	require.NoError(t, err)

	got, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "backend.jwt", got.BearerToken())
	assert.Equal(t, "민수", got.Nickname)
	assert.True(t, got.IsAdmin())
	assert.WithinDuration(t, time.Now().Add(time.Hour), got.ExpiresAt, 5*time.Second)
}

func TestCodec_Rejects(t *testing.T) {
	codec := NewCodec(testSecret, time.Hour)
	raw, err := codec.Encode(&Session{UserID: "u-1", BackendToken: "t"})
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		_, err := NewCodec(strings.Repeat("x", 32), time.Hour).Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewCodec(testSecret, time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Decode("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := codec.Encode(&Session{UserID: "u-1"})
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}

func signedInRequest(t *testing.T, c *Cookies, method, target string) *http.Request {
	t.Helper()

	rec := httptest.NewRecorder()
	require.NoError(t, c.Set(rec, &Session{UserID: "u-1", BackendToken: "t"}))

	req := httptest.NewRequest(method, target, nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	return req
}

func TestGate(t *testing.T) {
	c := testCookies()
	var seen *Session
	h := Gate(c, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		path     string
		signedIn bool
		status   int
		location string
	}{
		{"anonymous landing", "/", false, http.StatusOK, ""},
		{"anonymous discover", "/discover", false, http.StatusFound, "/"},
		{"anonymous nested", "/payment/m-1/countdown", false, http.StatusFound, "/"},
		{"anonymous admin", "/admin/users", false, http.StatusFound, "/"},
		{"similar prefix is public", "/profiles-help", false, http.StatusOK, ""},
		{"anonymous auth page", "/auth/error", false, http.StatusOK, ""},
		{"signed in discover", "/discover", true, http.StatusOK, ""},
		{"signed in auth page", "/auth/login", true, http.StatusFound, "/discover"},
		{"signed in callback", "/auth/callback", true, http.StatusOK, ""},
		{"signed in logout", "/auth/logout", true, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.signedIn {
				req = signedInRequest(t, c, http.MethodGet, tt.path)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.signedIn, seen != nil)
			}
		})
	}
}

func TestGate_InvalidCookieCleared(t *testing.T) {
	h := Gate(testCookies(), testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/matches", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

type fakeProvider struct {
	identity *Identity
	err      error
	code     string
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://kauth.example/authorize?state=" + state
}

func (p *fakeProvider) Identify(_ context.Context, code string) (*Identity, error) {
	p.code = code
	return p.identity, p.err
}

type fakeSyncer struct {
	req api.SyncKakaoRequest
	err error
}

func (s *fakeSyncer) SyncKakao(_ context.Context, req api.SyncKakaoRequest) (*api.SyncKakaoResponse, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &api.SyncKakaoResponse{JWT: "backend.jwt", User: domain.User{ID: "u-42", KakaoUserID: req.KakaoUserID}}, nil
}

func startLogin(t *testing.T, h *Handlers) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == stateCookieName {
			assert.Contains(t, rec.Header().Get("Location"), "state="+ck.Value)
			return ck
		}
	}
	t.Fatal("state cookie not set")
	return nil
}

func TestHandlers_CallbackSignsIn(t *testing.T) {
	provider := &fakeProvider{identity: &Identity{KakaoUserID: "12345", Email: "a@b.c", Nickname: "민수"}}
	syncer := &fakeSyncer{}
	c := testCookies()
	h := NewHandlers(provider, syncer, c, nil, testLogger())

	state := startLogin(t, h)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state.Value), nil)
	req.AddCookie(state)
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/discover", rec.Header().Get("Location"))
	assert.Equal(t, "abc", provider.code)
	assert.Equal(t, api.SyncKakaoRequest{KakaoUserID: "12345", Email: "a@b.c", Nickname: "민수"}, syncer.req)

	var sessionCookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == DefaultCookieName {
			sessionCookie = ck
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	sess, err := c.codec.Decode(sessionCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "u-42", sess.UserID)
	assert.Equal(t, "backend.jwt", sess.BackendToken)
}

func TestHandlers_CallbackFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		syncer   *fakeSyncer
		query    func(state string) string
		reason   string
	}{
		{
			name:     "state mismatch",
			provider: &fakeProvider{identity: &Identity{KakaoUserID: "1"}},
			syncer:   &fakeSyncer{},
			query:    func(string) string { return "code=abc&state=forged" },
			reason:   "state",
		},
		{
			name:     "declined",
			provider: &fakeProvider{},
			syncer:   &fakeSyncer{},
			query:    func(string) string { return "error=access_denied" },
			reason:   "denied",
		},
		{
			name:     "provider error",
			provider: &fakeProvider{err: errors.New("boom")},
			syncer:   &fakeSyncer{},
			query:    func(s string) string { return "code=abc&state=" + url.QueryEscape(s) },
			reason:   "provider",
		},
		{
			name:     "backend error",
			provider: &fakeProvider{identity: &Identity{KakaoUserID: "1"}},
			syncer:   &fakeSyncer{err: &api.APIError{Status: http.StatusInternalServerError}},
			query:    func(s string) string { return "code=abc&state=" + url.QueryEscape(s) },
			reason:   "sync",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(tt.provider, tt.syncer, testCookies(), nil, testLogger())
			state := startLogin(t, h)

			req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query(state.Value), nil)
			req.AddCookie(state)
			rec := httptest.NewRecorder()
			h.Callback(rec, req)

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/auth/error?error="+tt.reason, rec.Header().Get("Location"))
			for _, ck := range rec.Result().Cookies() {
				assert.NotEqual(t, DefaultCookieName, ck.Name)
			}
		})
	}
}

func TestHandlers_Logout(t *testing.T) {
	h := NewHandlers(&fakeProvider{}, &fakeSyncer{}, testCookies(), nil, testLogger())

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestKakaoProvider_Identify(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "kakao-access", "token_type": "bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/user/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer kakao-access", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":12345,"kakao_account":{"email":"a@b.c","profile":{"nickname":"민수"}}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewKakaoProvider("client-id", "secret", "http://localhost/auth/callback",
		WithKakaoEndpoints(srv.URL+"/oauth/authorize", srv.URL+"/oauth/token", srv.URL+"/v2/user/me"))

	assert.Contains(t, p.AuthCodeURL("st"), srv.URL+"/oauth/authorize?")

	id, err := p.Identify(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, &Identity{KakaoUserID: "12345", Email: "a@b.c", Nickname: "민수"}, id)
}
