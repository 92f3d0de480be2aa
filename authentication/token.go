package authentication

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"panda-blog/apperror"
	"panda-blog/helpers"

	"github.com/dgrijalva/jwt-go"
	"github.com/twinj/uuid"
)

// tokens are valid for one day, there is no refresh flow
const tokenLifetime = 24 * time.Hour

// Authenticator issues and verifies the bearer tokens shared by all services
type Authenticator struct {
	secret []byte
	cookie *helpers.SessionCookie // nil = bearer header only
}

// New returns an Authenticator, cookie may be nil
func New(secret string, cookie *helpers.SessionCookie) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		cookie: cookie,
	}
}

// CreateToken signs a token for a registered user
func (a *Authenticator) CreateToken(userID string, email string) (string, error) {
	claims := jwt.MapClaims{}
	claims["userId"] = userID
	claims["email"] = email
	claims["jti"] = uuid.NewV4().String()
	claims["exp"] = time.Now().Add(tokenLifetime).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", helpers.WrapError(err, helpers.FuncName())
	}

	return signed, nil
}

// SetCookie hands the token to browser clients as a signed cookie (no-op if not configured)
func (a *Authenticator) SetCookie(w http.ResponseWriter, token string) error {
	if a.cookie == nil {
		return nil
	}
	return a.cookie.Set(w, token)
}

// VerifyToken checks the signature and expiry and returns the identity it carries
func (a *Authenticator) VerifyToken(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		// make sure the token method conforms to "SigningMethodHMAC"
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, apperror.ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, apperror.ErrInvalidCredential
	}

	userID, ok := claims["userId"].(string)
	if !ok || userID == "" {
		return Identity{}, apperror.ErrInvalidCredential
	}
	email, _ := claims["email"].(string)

	return Identity{UserID: userID, Email: email}, nil
}

// ExtractToken reads the raw token from the Authorization header, the session cookie is the fallback
func (a *Authenticator) ExtractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token, nil
		}
	}

	if a.cookie != nil {
		token, err := a.cookie.Get(r)
		if err == nil && token != "" {
			return token, nil
		}
	}

	return "", apperror.ErrUnauthenticated
}

// Authenticate combines extraction and verification
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	raw, err := a.ExtractToken(r)
	if err != nil {
		return Identity{}, err
	}
	return a.VerifyToken(raw)
}
