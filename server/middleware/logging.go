package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/nupidentity/errors"
	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/server/endpoint"
)

// slowRequest marks access log entries with slow=true.
const slowRequest = 500 * time.Millisecond

// GinRequestLogger writes one access log entry per request. Mount it after
// RequestID and before the auth middleware so the entry carries both the
// request ID and the authenticated user. Probe paths are not logged, and
// neither are query strings since callbacks carry codes in them.
func GinRequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		if endpoint.IsProbe(c.Request.URL.Path) {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", elapsed.String(),
			"client", c.ClientIP(),
		)
		if elapsed > slowRequest {
			fields["slow"] = true
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		l := log.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			fields["size"] = c.Writer.Size()
			l.Error("Request completed", fields)
		case status >= http.StatusBadRequest:
			l.Warn("Request completed", fields)
		default:
			l.Debug("Request completed", fields)
		}
	}
}

// Recovery turns a handler panic into a 500 INTERNAL_ERROR response and
// logs the stack.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.WithContext(c.Request.Context()).Error("Panic recovered", logger.Fields(
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			))
			appErr := apperrors.Internal(fmt.Errorf("panic: %v", rec))
			c.AbortWithStatusJSON(appErr.Status(), appErr.ToResponse())
		}()
		c.Next()
	}
}
