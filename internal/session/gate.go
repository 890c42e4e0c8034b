package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// ProtectedPrefixes require a session.
var ProtectedPrefixes = []string{"/profile", "/discover", "/matches", "/payment", "/admin"}

const (
	authPrefix   = "/auth"
	landingPath  = "/"
	discoverPath = "/discover"
)

// auth pages that stay reachable while signed in
var authPassThrough = map[string]bool{
	"/auth/callback": true,
	"/auth/logout":   true,
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached by Gate.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// Gate redirects anonymous visitors away from protected pages and signed-in visitors away from auth pages.
func Gate(cookies *Cookies, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			sess, err := cookies.Read(r)
			if err != nil {
				sess = nil
				if !errors.Is(err, http.ErrNoCookie) {
					log.InfoContext(r.Context(), "dropping invalid session cookie", slog.Any("error", err))
					cookies.Clear(w)
				}
			}

			switch {
			case sess == nil && IsProtected(path):
				http.Redirect(w, r, landingPath, http.StatusFound)
				return
			case sess != nil && isAuthPage(path):
				http.Redirect(w, r, discoverPath, http.StatusFound)
				return
			}

			if sess != nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsProtected reports whether path needs a session.
func IsProtected(path string) bool {
	for _, p := range ProtectedPrefixes {
		if hasSegmentPrefix(path, p) {
			return true
		}
	}
	return false
}

func isAuthPage(path string) bool {
	return hasSegmentPrefix(path, authPrefix) && !authPassThrough[path]
}

func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
