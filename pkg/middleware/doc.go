// Package middleware provides net/http middleware for observing a flight
// server: Prometheus metrics and OpenTelemetry tracing.
//
// Both wrap a chi router (or any http.Handler):
//
//	m := middleware.NewMetrics(middleware.WithNamespace("blog"))
//	r := chi.NewRouter()
//	r.Use(middleware.Tracing(), m.Handler)
//	r.Handle("/metrics", promhttp.Handler())
//
// Requests are labelled by kind rather than by path so that label
// cardinality stays bounded: "page" for full documents, "segment" for
// segment streams, "action" and "mutation" for posts, "ws" for the
// websocket transport.
//
// # Segment metrics
//
// Besides request counts and latency, Metrics exposes counters the
// server feeds as it renders:
//   - flight_segments_total{state}: segments rendered or skipped
//   - flight_matches_total{result}: matched, not_found, outside_basename
//   - flight_rehydration_records_total: data records sent
//   - flight_stream_errors_total{type}: failed streams by category
//
// # Context propagation
//
// Tracing stores its span in the request context. Handlers and the
// renderer start child spans from r.Context(), and SpanFromContext returns
// the request span.
package middleware
