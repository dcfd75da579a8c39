package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type probeResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

func probe(c *gin.Context, code int, status, service string) {
	c.JSON(code, probeResponse{Status: status, Service: service, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// Liveness answers 200 while the process can serve HTTP. It never consults
// the identity provider, so a provider outage does not restart the pod.
func Liveness(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		probe(c, http.StatusOK, "alive", service)
	}
}

// Readiness answers 503 only when a component is down. A degraded client
// cache (no provider reached yet) stays in rotation because RequireAuth
// initializes clients lazily.
func Readiness(service string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := BuildReport(c.Request.Context(), service, checker)
		if r.Status == StatusDown {
			probe(c, http.StatusServiceUnavailable, "not_ready", service)
			return
		}
		probe(c, http.StatusOK, "ready", service)
	}
}
