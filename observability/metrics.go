package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics holds the instruments recorded by the identity client and
// the auth middleware. A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	verifications   metric.Int64Counter
	providerLatency metric.Float64Histogram
	jwksRefreshes   metric.Int64Counter
	decisions       metric.Int64Counter
}

// NewAuthMetrics creates the identity instruments on the given meter.
func NewAuthMetrics(meter metric.Meter) (*AuthMetrics, error) {
	verifications, err := meter.Int64Counter("nupidentity.token.verifications",
		metric.WithDescription("Token verifications by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating nupidentity.token.verifications counter: %w", err)
	}

	providerLatency, err := meter.Float64Histogram("nupidentity.provider.request.duration",
		metric.WithDescription("Duration of identity provider calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating nupidentity.provider.request.duration histogram: %w", err)
	}

	jwksRefreshes, err := meter.Int64Counter("nupidentity.jwks.refreshes",
		metric.WithDescription("JWKS fetches by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating nupidentity.jwks.refreshes counter: %w", err)
	}

	decisions, err := meter.Int64Counter("nupidentity.auth.decisions",
		metric.WithDescription("Middleware authentication and authorization outcomes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating nupidentity.auth.decisions counter: %w", err)
	}

	return &AuthMetrics{
		verifications:   verifications,
		providerLatency: providerLatency,
		jwksRefreshes:   jwksRefreshes,
		decisions:       decisions,
	}, nil
}

// RecordVerification counts a token verification outcome.
func (m *AuthMetrics) RecordVerification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, result)))
}

// RecordProviderCall records the latency of a call to the identity provider.
func (m *AuthMetrics) RecordProviderCall(ctx context.Context, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrResult, result),
	))
}

// RecordJWKSRefresh counts a JWKS fetch. reason is "ttl" or "kid_miss".
func (m *AuthMetrics) RecordJWKSRefresh(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.jwksRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDecision counts a middleware gate outcome ("allow", "deny", "anonymous").
func (m *AuthMetrics) RecordDecision(ctx context.Context, gate, outcome string) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGate, gate),
		attribute.String(AttrResult, outcome),
	))
}
