package session

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/sohaeng-web/internal/api"
	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
)

const (
	stateCookieName = "sohaeng_oauth_state"
	stateTTL        = 10 * time.Minute

	ErrorPath = "/auth/error"
)

// Syncer hands a verified identity to the backend and receives its bearer token.
type Syncer interface {
	SyncKakao(ctx context.Context, req api.SyncKakaoRequest) (*api.SyncKakaoResponse, error)
}

// Handlers serves the login flow.
type Handlers struct {
	provider Provider
	syncer   Syncer
	cookies  *Cookies
	errs     *apperrors.Handler
	log      *slog.Logger
}

func NewHandlers(provider Provider, syncer Syncer, cookies *Cookies, errs *apperrors.Handler, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{provider: provider, syncer: syncer, cookies: cookies, errs: errs, log: log}
}

// Login starts the Kakao authorization with a fresh state.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the authorization, syncs the identity and signs the visitor in.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	h.clearState(w)

	if e := q.Get("error"); e != "" {
		h.log.InfoContext(ctx, "kakao authorization declined", slog.String("reason", e))
		h.fail(w, r, "denied")
		return
	}

	ck, err := r.Cookie(stateCookieName)
	if err != nil || q.Get("state") == "" || subtle.ConstantTimeCompare([]byte(ck.Value), []byte(q.Get("state"))) != 1 {
		h.log.WarnContext(ctx, "oauth state mismatch")
		h.fail(w, r, "state")
		return
	}

	identity, err := h.provider.Identify(ctx, q.Get("code"))
	if err != nil {
		h.report(ctx, apperrors.NewExternalAPIError("kakao", err))
		h.fail(w, r, "provider")
		return
	}

	synced, err := h.syncer.SyncKakao(ctx, api.SyncKakaoRequest{
		KakaoUserID: identity.KakaoUserID,
		Email:       identity.Email,
		Nickname:    identity.Nickname,
	})
	if err != nil {
		h.report(ctx, err)
		h.fail(w, r, "sync")
		return
	}

	sess := &Session{
		UserID:       synced.User.ID,
		BackendToken: synced.JWT,
		Nickname:     identity.Nickname,
		Role:         synced.User.Role,
	}
	if err := h.cookies.Set(w, sess); err != nil {
		h.report(ctx, err)
		h.fail(w, r, "session")
		return
	}

	h.log.InfoContext(ctx, "user signed in", slog.String("user_id", sess.UserID))
	http.Redirect(w, r, discoverPath, http.StatusFound)
}

// Logout clears the session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	http.Redirect(w, r, landingPath, http.StatusSeeOther)
}

func (h *Handlers) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) report(ctx context.Context, err error) {
	if h.errs != nil {
		h.errs.Handle(ctx, err)
		return
	}
	h.log.ErrorContext(ctx, "login failed", slog.Any("error", err))
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, ErrorPath+"?"+url.Values{"error": {reason}}.Encode(), http.StatusFound)
}
