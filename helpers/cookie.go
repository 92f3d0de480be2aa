package helpers

import (
	"errors"
	"net/http"

	"github.com/chmike/securecookie"
)

// ErrCookieDisabled is returned when no cookie name/key is configured
var ErrCookieDisabled = errors.New("session cookie not configured")

var cookieParams = securecookie.Params{
	Path:     "/",              // cookie received only when URL starts with this path
	Domain:   "",               // cookie received only when URL domain matches this one
	MaxAge:   3600 * 24,        // same lifetime as the access token
	HTTPOnly: true,             // disallow access by remote javascript code
	Secure:   false,            // set by NewSessionCookie for PRD
	SameSite: securecookie.Lax, // cookie received with same or sub-domain names
}

// SessionCookie carries the bearer token for browser clients that do not keep it themselves
type SessionCookie struct {
	name   string
	key    []byte
	params securecookie.Params
}

// NewSessionCookie returns nil when name or key is empty, callers treat that as "disabled"
func NewSessionCookie(name string, hashKey string, secure bool) *SessionCookie {
	if name == "" || hashKey == "" {
		return nil
	}
	p := cookieParams
	p.Secure = secure
	return &SessionCookie{name: name, key: []byte(hashKey), params: p}
}

// Set writes the token as a signed cookie
func (s *SessionCookie) Set(w http.ResponseWriter, token string) error {
	if s == nil {
		return ErrCookieDisabled
	}

	sck, err := securecookie.New(s.name, s.key, s.params)
	if err != nil {
		return err
	}

	return sck.SetValue(w, []byte(token))
}

// Get reads the token from the signed cookie
func (s *SessionCookie) Get(r *http.Request) (string, error) {
	if s == nil {
		return "", ErrCookieDisabled
	}

	sck, err := securecookie.New(s.name, s.key, s.params)
	if err != nil {
		return "", err
	}

	val, err := sck.GetValue(nil, r)
	if err != nil {
		return "", err
	}

	return string(val), nil
}
