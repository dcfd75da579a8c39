package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/nupidentity/component"
)

// HealthChecker returns the health of every registered component.
type HealthChecker func(ctx context.Context) []component.Health

// Status is the reported state of the service or one component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// ComponentReport is one entry of Report.Components.
type ComponentReport struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Report is the /health body. Status is the worst component status.
type Report struct {
	Service    string            `json:"service"`
	Status     Status            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components []ComponentReport `json:"components,omitempty"`
}

// BuildReport collects component health. A nil checker reports up.
func BuildReport(ctx context.Context, service string, checker HealthChecker) Report {
	r := Report{Service: service, Status: StatusUp, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if checker == nil {
		return r
	}
	for _, h := range checker(ctx) {
		s := statusOf(h.Status)
		r.Components = append(r.Components, ComponentReport{Name: h.Name, Status: s, Message: h.Message})
		if s == StatusDown || (s == StatusDegraded && r.Status == StatusUp) {
			r.Status = s
		}
	}
	return r
}

func statusOf(s component.HealthStatus) Status {
	switch s {
	case component.StatusHealthy:
		return StatusUp
	case component.StatusDegraded:
		return StatusDegraded
	default:
		return StatusDown
	}
}

// Health serves the full report; 503 when any component is down.
func Health(service string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := BuildReport(c.Request.Context(), service, checker)
		c.JSON(httpStatus(r.Status), r)
	}
}

func httpStatus(s Status) int {
	if s == StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// IsProbe reports whether path is one of the probe or scrape endpoints.
func IsProbe(path string) bool {
	switch path {
	case "/health", "/alive", "/ready", "/metrics":
		return true
	}
	return false
}
