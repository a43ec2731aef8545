package clientmetrics

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type routeTemplateKey struct{}

// WithRouteTemplate attaches the URI template of the next outbound request
// to ctx, e.g. WithRouteTemplate(ctx, "/users/{id}").
func WithRouteTemplate(ctx context.Context, template string) context.Context {
	return context.WithValue(ctx, routeTemplateKey{}, template)
}

// RouteTemplate returns the template attached with WithRouteTemplate.
func RouteTemplate(ctx context.Context) string {
	if t, ok := ctx.Value(routeTemplateKey{}).(string); ok {
		return t
	}
	return ""
}

// DescriptorFromRequest builds the RequestDescriptor for req. The route
// template comes from the request context; without one the URL path is used
// with the query stripped.
func DescriptorFromRequest(req *http.Request) RequestDescriptor {
	desc := RequestDescriptor{Method: req.Method}
	if desc.Method == "" {
		desc.Method = http.MethodGet
	}

	if req.URL != nil {
		desc.Host = req.URL.Host
	}
	if desc.Host == "" {
		desc.Host = req.Host
	}

	desc.RouteTemplate = RouteTemplate(req.Context())
	if desc.RouteTemplate == "" && req.URL != nil {
		desc.RouteTemplate = ensureLeadingSlash(req.URL.EscapedPath())
	}
	return desc
}

func ensureLeadingSlash(path string) string {
	switch {
	case path == "":
		return "/"
	case strings.HasPrefix(path, "/"):
		return path
	default:
		return "/" + path
	}
}

// Transport is an http.RoundTripper that instruments every request made
// through Base.
type Transport struct {
	// Base performs the request. nil means http.DefaultTransport.
	Base http.RoundTripper

	// Instrumenter times and records each round trip.
	Instrumenter *Instrumenter

	// Propagator injects trace context headers. nil means the global
	// otel propagator.
	Propagator propagation.TextMapPropagator
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Instrumenter == nil {
		return base.RoundTrip(req)
	}

	prop := t.Propagator
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	return t.Instrumenter.Instrument(req.Context(), DescriptorFromRequest(req), func(ctx context.Context) (*http.Response, error) {
		// RoundTrippers must not mutate the caller's request.
		out := req.Clone(ctx)
		prop.Inject(ctx, propagation.HeaderCarrier(out.Header))
		return base.RoundTrip(out)
	})
}

// InstrumentClient returns a shallow copy of client whose transport is
// wrapped by in. A nil client is treated as http.DefaultClient.
func InstrumentClient(client *http.Client, in *Instrumenter) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.Transport = &Transport{Base: client.Transport, Instrumenter: in}
	return &c
}
