package controllers

import (
	"net/http"
	"strconv"

	"panda-blog/apperror"
	"panda-blog/authentication"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope of every API answer
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health is the body of the liveness route
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthCheck answers the liveness probe of a service
func HealthCheck(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, Health{Status: "ok", Service: service})
	}
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// fail writes the mapped error, server side problems are logged with the request's correlation id
func fail(c *gin.Context, log *zap.Logger, err error) {
	status, apiError := HandleError(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			zap.String("correlationId", authentication.CorrelationID(c.Request.Context())),
			zap.String("url", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(status, apiError)
}

// caller returns the identity attached by the authentication middleware
func caller(c *gin.Context) (authentication.Identity, error) {
	id, found := authentication.IdentityFrom(c.Request.Context())
	if !found {
		return id, apperror.ErrUnauthenticated
	}
	return id, nil
}

// queryInt reads a numeric query parameter, missing or malformed values give def
func queryInt(c *gin.Context, key string, def int64) int64 {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}
