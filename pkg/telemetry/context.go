package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

// Telemetry bundles logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	return assemble(cfg, logger)
}

// NewTelemetryWithLogger builds telemetry around an existing logger.
func NewTelemetryWithLogger(cfg *Config, logger *Logger) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return assemble(cfg, logger)
}

func assemble(cfg *Config, logger *Logger) (*Telemetry, error) {
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// Nop returns telemetry that records nothing.
func Nop() *Telemetry {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false
	cfg.Tracing.Enabled = false

	tel, err := NewTelemetryWithLogger(cfg, NopLogger())
	if err != nil {
		panic(err)
	}
	return tel
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context,
// or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown stops the event publisher and flushes the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return t.Logger.Close()
}

// InstrumentedContext carries the span, logger and timer of one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer

	operation string
	tel       *Telemetry
}

// StartOperation begins an instrumented operation using the telemetry stored
// in ctx. Without one, only the context logger and a timer are set.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	if tel := FromTelemetryContext(ctx); tel != nil {
		return tel.StartOperation(ctx, operation, attrs...)
	}
	return &InstrumentedContext{
		Ctx:       ctx,
		Logger:    FromContext(ctx),
		Timer:     NewTimer(),
		operation: operation,
	}
}

// StartOperation begins an instrumented operation with a span, an operation
// logger and a timer.
func (t *Telemetry) StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	attrs = append(attrs, AttrOperation.String(operation))
	spanCtx, span := t.Tracer.StartSpan(ctx, operation, attrs...)

	logger := t.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:       logger.WithContext(spanCtx),
		Span:      span,
		Logger:    logger,
		Timer:     NewTimer(),
		operation: operation,
		tel:       t,
	}
}

// End finishes the operation: the span gets its status, the duration is
// observed and classified errors are counted.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			var gerr *grid.Error
			if errors.As(err, &gerr) {
				ic.Span.SetAttributes(
					AttrErrorClass.String(string(gerr.Class)),
					AttrErrorCode.String(gerr.Code),
				)
			}
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}

	if ic.tel == nil {
		return
	}
	ic.tel.Metrics.ObserveOperation(ic.operation, ic.Timer.Duration())
	if err != nil {
		class, code := string(grid.ErrorClassInternal), ""
		var gerr *grid.Error
		if errors.As(err, &gerr) {
			class, code = string(gerr.Class), gerr.Code
		}
		ic.tel.Metrics.RecordError(class, code)
	}
}
