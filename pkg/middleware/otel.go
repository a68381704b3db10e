package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vnative/pkg/bridge"
)

// Default tracer name for vnative applications.
const defaultTracerName = "vnative"

// OTelConfig configures the OpenTelemetry bridge observer.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "vnative").
	TracerName string

	// Tracer overrides the tracer resolved from the global provider.
	Tracer trace.Tracer

	// Filter determines which calls to trace.
	// Return true to trace the call, false to skip.
	// If nil, all calls are traced.
	Filter func(info bridge.CallInfo) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(info bridge.CallInfo) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry bridge observer.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracer sets the tracer directly.
func WithTracer(tracer trace.Tracer) OTelOption {
	return func(c *OTelConfig) {
		c.Tracer = tracer
	}
}

// WithCallFilter sets a filter function for calls.
func WithCallFilter(filter func(info bridge.CallInfo) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(info bridge.CallInfo) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates an observer that traces every bridge call.
//
// Outbound calls become client spans named "vnative.call <module>.<method>"
// that end when native replies; entity method invocations become server
// spans named "vnative.invoke <method>". Failures are recorded on the span
// and set its status.
//
// The tracer uses the global OpenTelemetry tracer provider unless WithTracer
// is given. Configure the provider in main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) bridge.Observer {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(config.TracerName)
	}

	return bridge.ObserverFunc(func(ctx context.Context, info bridge.CallInfo) func(error) {
		if config.Filter != nil && !config.Filter(info) {
			return func(error) {}
		}

		attrs := []attribute.KeyValue{
			attribute.String("vnative.context_id", info.ContextID),
			attribute.String("vnative.method", info.Method),
			attribute.String("vnative.direction", info.Direction.String()),
		}
		if info.Module != "" {
			attrs = append(attrs, attribute.String("vnative.module", info.Module))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(info)...)
		}

		_, span := tracer.Start(ctx, spanName(info),
			trace.WithSpanKind(spanKind(info)),
			trace.WithAttributes(attrs...),
		)

		return func(err error) {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}
	})
}

func spanName(info bridge.CallInfo) string {
	if info.Direction == bridge.Inbound {
		return fmt.Sprintf("vnative.invoke %s", info.Method)
	}
	return fmt.Sprintf("vnative.call %s", methodLabel(info))
}

func spanKind(info bridge.CallInfo) trace.SpanKind {
	if info.Direction == bridge.Inbound {
		return trace.SpanKindServer
	}
	return trace.SpanKindClient
}
