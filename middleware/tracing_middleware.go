package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"mini-xmlrpc/message"
)

const instrumentationName = "mini-xmlrpc"

// TracingConfig configures OpenTelemetry instrumentation of dispatched calls.
type TracingConfig struct {
	// TracerProvider defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// ServiceName is the rpc.service attribute value.
	ServiceName string
	// SpanKind is trace.SpanKindServer unless set.
	SpanKind trace.SpanKind
}

// TracingMiddleware opens one span per call named "xmlrpc/<method>" and
// records the rpc.server.requests counter and rpc.server.duration histogram.
// Fault responses mark the span as an error.
func TracingMiddleware(cfg TracingConfig) Middleware {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.SpanKind == trace.SpanKindUnspecified {
		cfg.SpanKind = trace.SpanKindServer
	}
	tracer := cfg.TracerProvider.Tracer(instrumentationName)
	meter := cfg.MeterProvider.Meter(instrumentationName)
	requests, _ := meter.Int64Counter("rpc.server.requests",
		metric.WithUnit("{request}"),
		metric.WithDescription("Number of XML-RPC calls"),
	)
	duration, _ := meter.Float64Histogram("rpc.server.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of XML-RPC calls"),
	)

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			attrs := []attribute.KeyValue{
				attribute.String("rpc.system", "xmlrpc"),
				attribute.String("rpc.method", req.MethodName),
			}
			if cfg.ServiceName != "" {
				attrs = append(attrs, attribute.String("rpc.service", cfg.ServiceName))
			}

			start := time.Now()
			ctx, span := tracer.Start(ctx, "xmlrpc/"+req.MethodName,
				trace.WithSpanKind(cfg.SpanKind),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			resp := next(ctx, req)

			status := "ok"
			if resp != nil && resp.Fault != nil {
				status = "fault"
				span.SetStatus(codes.Error, resp.Fault.Message)
				span.RecordError(resp.Fault)
				span.SetAttributes(attribute.Int("rpc.xmlrpc.fault_code", resp.Fault.Code))
			} else {
				span.SetStatus(codes.Ok, "")
			}

			metricAttrs := metric.WithAttributes(append(attrs, attribute.String("status", status))...)
			if requests != nil {
				requests.Add(ctx, 1, metricAttrs)
			}
			if duration != nil {
				duration.Record(ctx, time.Since(start).Seconds(), metricAttrs)
			}
			return resp
		}
	}
}
