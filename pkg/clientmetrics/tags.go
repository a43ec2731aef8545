package clientmetrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Label keys emitted by DefaultTagExtractor, in emission order.
const (
	LabelMethod     = "method"
	LabelURI        = "uri"
	LabelClientName = "client_name"
	LabelStatus     = "status"
	LabelOutcome    = "outcome"
	LabelException  = "exception"
)

// Unknown is the sentinel value used when a label value cannot be derived.
const Unknown = "UNKNOWN"

// Status and outcome values.
const (
	StatusClientError = "CLIENT_ERROR"

	OutcomeInformational = "INFORMATIONAL"
	OutcomeSuccessful    = "SUCCESS"
	OutcomeRedirection   = "REDIRECTION"
	OutcomeClientErr     = "CLIENT_ERROR"
	OutcomeServerError   = "SERVER_ERROR"

	ExceptionNone = "None"
)

// DefaultLabelKeys lists the keys produced by DefaultTagExtractor.
var DefaultLabelKeys = []string{
	LabelMethod,
	LabelURI,
	LabelClientName,
	LabelStatus,
	LabelOutcome,
	LabelException,
}

// RequestDescriptor describes an outbound call for labeling purposes.
type RequestDescriptor struct {
	// Method is the HTTP method (e.g., "GET").
	Method string

	// Host is the target host, including a port when one was given.
	Host string

	// RouteTemplate is the URI template (e.g., "/users/{id}"), not the
	// expanded path.
	RouteTemplate string
}

// OutcomeKind discriminates a CallOutcome.
type OutcomeKind uint8

const (
	// OutcomeUnresolved is the zero value and never leaves the instrumenter.
	OutcomeUnresolved OutcomeKind = iota
	// OutcomeSuccess means the call produced an HTTP response.
	OutcomeSuccess
	// OutcomeClientError means the call failed before a response was
	// available (transport error, timeout, cancellation, panic).
	OutcomeClientError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientError:
		return "client_error"
	default:
		return "unresolved"
	}
}

// CallOutcome is the resolved result of a call: either Success carrying a
// status code or ClientError carrying the failure.
type CallOutcome struct {
	kind       OutcomeKind
	statusCode int
	err        error
}

// Success returns the outcome of a call that produced resp.
func Success(resp *http.Response) CallOutcome {
	code := 0
	if resp != nil {
		code = resp.StatusCode
	}
	return SuccessStatus(code)
}

// SuccessStatus returns a Success outcome for the given status code.
func SuccessStatus(code int) CallOutcome {
	return CallOutcome{kind: OutcomeSuccess, statusCode: code}
}

// ClientError returns the outcome of a call that failed with err.
func ClientError(err error) CallOutcome {
	return CallOutcome{kind: OutcomeClientError, err: err}
}

// Kind reports which variant the outcome holds.
func (o CallOutcome) Kind() OutcomeKind { return o.kind }

// StatusCode returns the HTTP status of a Success outcome, 0 otherwise.
func (o CallOutcome) StatusCode() int { return o.statusCode }

// Err returns the failure of a ClientError outcome, nil otherwise.
func (o CallOutcome) Err() error { return o.err }

// TagExtractor derives the label set for a completed call. Implementations
// must be pure and must return every key they support on every call.
type TagExtractor interface {
	Extract(req RequestDescriptor, outcome CallOutcome) LabelSet
}

// TagExtractorFunc adapts a function to TagExtractor.
type TagExtractorFunc func(req RequestDescriptor, outcome CallOutcome) LabelSet

// Extract calls f(req, outcome).
func (f TagExtractorFunc) Extract(req RequestDescriptor, outcome CallOutcome) LabelSet {
	return f(req, outcome)
}

// DefaultTagExtractor emits method, uri, client_name, status, outcome and
// exception labels.
type DefaultTagExtractor struct{}

// Extract implements TagExtractor.
func (DefaultTagExtractor) Extract(req RequestDescriptor, outcome CallOutcome) LabelSet {
	status, class, exception := Unknown, Unknown, Unknown
	switch outcome.Kind() {
	case OutcomeSuccess:
		if outcome.StatusCode() > 0 {
			status = strconv.Itoa(outcome.StatusCode())
		}
		class = statusClass(outcome.StatusCode())
		exception = ExceptionNone
	case OutcomeClientError:
		status = StatusClientError
		exception = exceptionName(outcome.Err())
	}

	return NewLabelSet(
		Label{LabelMethod, orUnknown(strings.ToUpper(req.Method))},
		Label{LabelURI, orUnknown(req.RouteTemplate)},
		Label{LabelClientName, orUnknown(req.Host)},
		Label{LabelStatus, status},
		Label{LabelOutcome, class},
		Label{LabelException, exception},
	)
}

// unknownLabels is substituted when an extractor panics.
func unknownLabels() LabelSet {
	labels := make([]Label, len(DefaultLabelKeys))
	for i, k := range DefaultLabelKeys {
		labels[i] = Label{Key: k, Value: Unknown}
	}
	return NewLabelSet(labels...)
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return Unknown
	}
	return v
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return OutcomeInformational
	case code >= 200 && code < 300:
		return OutcomeSuccessful
	case code >= 300 && code < 400:
		return OutcomeRedirection
	case code >= 400 && code < 500:
		return OutcomeClientErr
	case code >= 500 && code < 600:
		return OutcomeServerError
	default:
		return Unknown
	}
}

// exceptionName maps a failure to a short, bounded label value.
func exceptionName(err error) string {
	if err == nil {
		return Unknown
	}

	var pe *PanicError
	if errors.As(err, &pe) {
		return "Panic"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "DeadlineExceeded"
	}
	if errors.Is(err, context.Canceled) {
		return "Canceled"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "Timeout"
	}

	// Peel off *url.Error and fmt wrappers so the label names the cause.
	for {
		var next error
		if ue, ok := err.(*url.Error); ok {
			next = ue.Err
		} else if isFmtWrapper(err) {
			next = errors.Unwrap(err)
		}
		if next == nil {
			break
		}
		err = next
	}

	return typeName(err)
}

func isFmtWrapper(err error) bool {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() == "fmt"
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return Unknown
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return Unknown
	}
	return t.Name()
}
