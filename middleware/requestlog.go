package middleware

import (
	"time"

	"panda-blog/authentication"

	"github.com/gin-gonic/gin"
	"github.com/twinj/uuid"
	"go.uber.org/zap"
)

// RequestLogger tags each request with a correlation id (request and response header) and
// logs it when done. The edge always issues a fresh id, internal services keep the gateway's.
func RequestLogger(log *zap.Logger, keepIncoming bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(authentication.HeaderCorrelationID)
		if id == "" || !keepIncoming {
			id = uuid.NewV4().String()
		}
		c.Request.Header.Set(authentication.HeaderCorrelationID, id)
		c.Writer.Header().Set(authentication.HeaderCorrelationID, id)
		c.Request = c.Request.WithContext(authentication.WithCorrelationID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("correlationId", id),
			zap.String("method", c.Request.Method),
			zap.String("url", c.Request.URL.RequestURI()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Recovery turns panics into a logged 500 in the common envelope
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("url", c.Request.URL.RequestURI()))
		c.AbortWithStatusJSON(500, gin.H{"success": false, "message": "Internal server error"})
	})
}
