package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"panelpulse/internal/infrastructure"
)

// Metrics records request counts, durations and in-flight requests on the
// application instruments. A nil metrics set disables recording.
func Metrics(m *infrastructure.AnalyticsMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			start := time.Now()

			attrs := []attribute.KeyValue{
				attribute.String("method", r.Method),
				attribute.String("path", r.URL.Path),
			}

			m.HTTPActiveRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
			defer m.HTTPActiveRequests.Add(ctx, -1, metric.WithAttributes(attrs...))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			statusAttrs := append(attrs, attribute.Int("status", ww.Status()))
			m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(statusAttrs...))
			m.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(statusAttrs...))
		})
	}
}
