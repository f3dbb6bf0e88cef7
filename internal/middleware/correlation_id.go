package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader carries the id across services.
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDKey is the gin context key for the id.
	CorrelationIDKey = "correlation_id"
)

// CorrelationIDMiddleware propagates or mints a correlation id per request.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(CorrelationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}
