// Package telemetry provides the observability stack for the booking
// service: structured logging (zerolog), tracing (OpenTelemetry), metrics
// (Prometheus) and an in-process event publisher.
//
// # Usage
//
// Initialize telemetry at startup and put it on the context:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Operations
//
// Service operations run under StartOperation, which opens a span, derives
// an operation logger and starts a timer. End records the span status, the
// operation duration and, for classified errors, the error class and code:
//
//	op := tel.StartOperation(ctx, "book", telemetry.AttrWeek.String(week))
//	defer func() { op.End(err) }()
//	op.Logger.Debug("Checking span")
//
// # Metrics
//
// All metrics live in a private registry under the "rsvp" namespace:
//
//	rsvp_selections_total{operation,rule_kind}
//	rsvp_validations_total{outcome}
//	rsvp_rule_rejections_total{rule}
//	rsvp_operation_duration_seconds{operation}
//	rsvp_errors_total{class,code}
//	rsvp_reservations_total{status}
//	rsvp_rules_loaded
//	rsvp_rule_reloads_total{status}
//
// Serve exposes them over HTTP until its context is cancelled.
//
// # Events
//
// The publisher delivers reservation.created, reservation.confirmed,
// reservation.cancelled, selection.rejected and rules.reloaded events to
// subscribers, optionally filtered by type, level or reservation.
//
// # Tracing
//
// Exporters are "stdout", "otlp" (gRPC) and "none". With "none" a no-op
// tracer is installed and spans cost next to nothing.
package telemetry
