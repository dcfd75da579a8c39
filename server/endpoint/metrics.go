package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics serves a Prometheus scrape endpoint. h is usually the handler
// returned by observability.InitMeter; nil falls back to the default
// registry, which carries the Go runtime and process collectors.
func Metrics(h http.Handler) gin.HandlerFunc {
	if h == nil {
		h = promhttp.Handler()
	}
	return gin.WrapH(h)
}
