package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with a ULID so log lines and
// responses can be correlated. An inbound X-Request-ID is honored when the
// caller already carries one through a proxy chain.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Set("requestId", requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}
