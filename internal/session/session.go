// Package session keeps the signed-in viewer in a signed cookie and gates protected pages.
//
// The backend bearer token is stored in the session and handed to the API client explicitly by handlers.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "sohaeng_session"
	DefaultTTL        = 30 * 24 * time.Hour

	issuer = "sohaeng-web"
)

var ErrInvalidSession = errors.New("invalid session")

// Session is the signed-in viewer.
type Session struct {
	UserID       string
	BackendToken string
	Nickname     string
	Role         string
	ExpiresAt    time.Time
}

// BearerToken lets a Session be passed to the API client as credentials.
func (s *Session) BearerToken() string {
	if s == nil {
		return ""
	}
	return s.BackendToken
}

// ID is the backend user id.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}

// IsAdmin only decides whether admin links are shown. The backend authorizes admin calls.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == "admin"
}

type claims struct {
	jwt.RegisteredClaims
	BackendToken string `json:"bt"`
	Nickname     string `json:"nn,omitempty"`
	Role         string `json:"role,omitempty"`
}

// Codec signs sessions as HS256 tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime given to new sessions.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode signs s. A zero ExpiresAt is set to now plus the TTL.
func (c *Codec) Encode(s *Session) (string, error) {
	if s.UserID == "" || s.BackendToken == "" {
		return "", fmt.Errorf("%w: missing user or token", ErrInvalidSession)
	}

	now := c.now()
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = now.Add(c.ttl)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		BackendToken: s.BackendToken,
		Nickname:     s.Nickname,
		Role:         s.Role,
	})

	return token.SignedString(c.secret)
}

// Decode verifies a token and returns its session.
func (c *Codec) Decode(raw string) (*Session, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	if cl.Subject == "" || cl.BackendToken == "" {
		return nil, ErrInvalidSession
	}

	return &Session{
		UserID:       cl.Subject,
		BackendToken: cl.BackendToken,
		Nickname:     cl.Nickname,
		Role:         cl.Role,
		ExpiresAt:    cl.ExpiresAt.Time,
	}, nil
}
