package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware attaches a request-scoped logger to the gin context,
// annotated with the request id when one is present.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := logger
		if reqID, ok := c.Get("request_id"); ok {
			l = l.With("request_id", reqID)
		}
		c.Set("logger", l)
		c.Next()
	}
}
