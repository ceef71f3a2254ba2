package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader exposes the trace ID to clients for support lookups
const TraceIDHeader = "X-Trace-ID"

// GinMiddleware traces every request: it continues the caller's trace
// when the incoming headers carry one, names the span after the route,
// and reflects the trace ID back to the client.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(requestAttrs(c)...),
		)
		defer span.End()

		if id := TraceID(ctx); id != "" {
			c.Header(TraceIDHeader, id)
			c.Set("trace_id", id)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
		if status >= http.StatusInternalServerError {
			span.SetAttributes(attribute.Bool("error", true))
		}
	}
}

func requestAttrs(c *gin.Context) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.HTTPMethod(c.Request.Method),
		semconv.HTTPRoute(c.FullPath()),
		semconv.HTTPURL(c.Request.URL.String()),
		semconv.NetHostName(c.Request.Host),
		attribute.String("http.client_ip", c.ClientIP()),
	}
}

// InjectTraceContext copies the current trace context into outgoing HTTP
// headers so downstream services join the same trace
func InjectTraceContext(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}
