// Package clientmetrics times outbound HTTP calls and records them as labeled
// samples while bounding label cardinality.
//
// # Overview
//
// Three pieces cooperate on every call:
//
//   - TagExtractor derives a fixed label set (method, uri, client_name,
//     status, outcome, exception) from the request and its outcome.
//   - Guard caps the distinct values of one label key per metric name. The
//     first MaxAllowed values win; a sample carrying a new value after that is
//     dropped and a single warning is logged per metric.
//   - Instrumenter wraps the real call, measures it with the monotonic clock,
//     and submits admitted samples to a Registry.
//
// # Usage
//
//	inst, err := clientmetrics.New(clientmetrics.Options{
//		MetricName:      "http.client.requests",
//		GuardedLabelKey: "uri",
//		MaxAllowed:      100,
//		Registry:        promRegistry,
//		Logger:          logger,
//	})
//	if err != nil {
//		return err
//	}
//	client := clientmetrics.InstrumentClient(http.DefaultClient, inst)
//
//	ctx = clientmetrics.WithRouteTemplate(ctx, "/users/{id}")
//	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.com/users/42", nil)
//	resp, err := client.Do(req)
//
// Without a route template the request path is used as the uri label, which
// is exactly the case the guard protects against.
//
// # Transparency
//
// Instrumentation never changes call semantics: the response, error or
// panic produced by the wrapped call reaches the caller unchanged, and
// registry failures are swallowed.
package clientmetrics
