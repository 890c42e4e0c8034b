package session

import (
	"net/http"
	"time"
)

// Cookies reads and writes the session cookie.
type Cookies struct {
	codec  *Codec
	name   string
	secure bool
}

func NewCookies(codec *Codec, name string, secure bool) *Cookies {
	if name == "" {
		name = DefaultCookieName
	}
	return &Cookies{codec: codec, name: name, secure: secure}
}

// Set signs s and stores it on the response.
func (c *Cookies) Set(w http.ResponseWriter, s *Session) error {
	raw, err := c.codec.Encode(s)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    raw,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session of r. A missing cookie is http.ErrNoCookie.
func (c *Cookies) Read(r *http.Request) (*Session, error) {
	ck, err := r.Cookie(c.name)
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(ck.Value)
}
