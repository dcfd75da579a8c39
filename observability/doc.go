// Package observability wires OpenTelemetry tracing and metrics for the
// identity client and middleware.
//
// Tracing exports over OTLP/HTTP:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("billing"))
//	defer tp.Shutdown(ctx)
//
// Metrics are pulled by Prometheus or pushed over OTLP:
//
//	mp, handler, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("billing"))
//	metrics, err := observability.NewAuthMetrics(observability.Meter(mp))
package observability
