package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware is plain net/http middleware, as used by CORS.
type Middleware func(http.Handler) http.Handler

// GinWrap mounts mw in a Gin chain. If mw writes the response without
// calling the next handler, as CORS does for a preflight, the chain is
// aborted.
func GinWrap(mw Middleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		h := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		}))
		h.ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
