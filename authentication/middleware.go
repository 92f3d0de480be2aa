package authentication

import (
	"errors"
	"net/http"

	"panda-blog/apperror"

	"github.com/gin-gonic/gin"
)

// abort writes the auth failure in the common envelope
func abort(c *gin.Context, err error) {
	msg := apperror.ErrInvalidCredential.Error()
	if errors.Is(err, apperror.ErrUnauthenticated) {
		msg = apperror.ErrUnauthenticated.Error()
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
}

func attach(c *gin.Context, id Identity) {
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
}

// StripIdentityHeaders drops identity headers sent by clients, only the gateway may set them
func StripIdentityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Header.Del(HeaderUserID)
		c.Request.Header.Del(HeaderUserEmail)
		c.Next()
	}
}

// TokenAuthMiddleware verifies the bearer token at the edge and propagates the identity
// as headers so the forwarder carries it to the internal services
func (a *Authenticator) TokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authenticate(c.Request)
		if err != nil {
			abort(c, err)
			return
		}

		c.Request.Header.Set(HeaderUserID, id.UserID)
		c.Request.Header.Set(HeaderUserEmail, id.Email)
		attach(c, id)

		c.Next()
	}
}

// RequireIdentity guards the routes of an internal service. With trustHeaders the x-user-id
// header set by the gateway is accepted without a token; only enable it where the service
// is not reachable from outside the deployment network.
func (a *Authenticator) RequireIdentity(trustHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authenticate(c.Request)
		if err == nil {
			attach(c, id)
			c.Next()
			return
		}

		if trustHeaders {
			if userID := c.GetHeader(HeaderUserID); userID != "" {
				attach(c, Identity{UserID: userID, Email: c.GetHeader(HeaderUserEmail)})
				c.Next()
				return
			}
		}

		abort(c, err)
	}
}
