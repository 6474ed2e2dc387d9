package dispatch

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strings"

	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Response is what a RemoteCall returns. Raw is the service output value;
// Notes is an optional side channel (request ids, dry-run details) passed
// through to the outcome.
type Response struct {
	Raw   any
	Notes map[string]any
}

// RemoteCall performs one bound remote operation. It must block until the
// remote side has answered.
type RemoteCall func(ctx context.Context, req RequestTree) (*Response, error)

// Operation pairs a compiled descriptor with the call that executes it.
type Operation struct {
	Descriptor *Descriptor
	Call       RemoteCall

	// Output is the type of Response.Raw when known. It lets member select
	// expressions be checked before the call is made.
	Output reflect.Type
}

// OperationOption configures an Operation.
type OperationOption func(*Operation)

// WithOutputType declares the type the call returns as Response.Raw.
func WithOutputType(t reflect.Type) OperationOption {
	return func(o *Operation) { o.Output = t }
}

// NewOperation validates that the descriptor is compiled and a call is bound.
func NewOperation(desc *Descriptor, call RemoteCall, opts ...OperationOption) (*Operation, error) {
	if !desc.compiled() {
		return nil, errors.New("operation descriptor is not compiled, use NewDescriptor")
	}
	if call == nil {
		return nil, errors.New(desc.Name + ": no remote call bound")
	}
	op := &Operation{Descriptor: desc, Call: call}
	for _, opt := range opts {
		opt(op)
	}
	return op, nil
}

func (o *Operation) Name() string { return o.Descriptor.Name }

// invoke calls the remote operation and classifies any error.
func invoke(ctx context.Context, op *Operation, req RequestTree, conn Connection) (*Response, error) {
	resp, err := op.Call(ctx, req)
	if err != nil {
		return nil, classifyError(err, conn)
	}
	if resp == nil {
		resp = &Response{}
	}
	return resp, nil
}

// classifyError wraps failures to reach the endpoint with the configured
// endpoint and region. Every other error is returned unchanged.
func classifyError(err error, conn Connection) error {
	var sendErr *smithyhttp.RequestSendError
	var dnsErr *net.DNSError
	var opErr *net.OpError

	if errors.As(err, &sendErr) || errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return &TransportResolutionError{
			Service:  conn.Service,
			Endpoint: conn.DisplayEndpoint(),
			Region:   conn.Region,
			Err:      err,
		}
	}
	return err
}

// validateSelect checks a select expression before anything runs. A member
// name is checked against the operation's output type when it is known.
func validateSelect(op *Operation, expr string) error {
	desc := op.Descriptor
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "" || expr == "*":
		return nil
	case strings.HasPrefix(expr, "^"):
		if _, ok := desc.Parameter(strings.TrimPrefix(expr, "^")); ok {
			return nil
		}
		return &SelectError{Operation: desc.Name, Expression: expr}
	case isMemberName(expr):
		if op.Output == nil || hasMember(op.Output, expr) {
			return nil
		}
	}
	return &SelectError{Operation: desc.Name, Expression: expr}
}

// hasMember reports whether t, or the struct it points to, has an exported
// field matching name case-insensitively.
func hasMember(t reflect.Type, name string) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	f, ok := t.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
	return ok && f.IsExported()
}

// payload extracts what the caller gets back. With no select expression this
// is the descriptor's result member, or the whole response when it declares
// none.
func payload(desc *Descriptor, ictx *InvocationContext, resp *Response, expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "*":
		return resp.Raw, nil
	case strings.HasPrefix(expr, "^"):
		p, _ := desc.Parameter(strings.TrimPrefix(expr, "^"))
		v, _ := ictx.Value(p.Name)
		return v, nil
	case expr == "":
		if desc.Result == "" {
			return resp.Raw, nil
		}
		expr = desc.Result
	}

	v, ok := responseMember(resp.Raw, expr)
	if !ok {
		return nil, &SelectError{Operation: desc.Name, Expression: expr}
	}
	return v, nil
}

func isMemberName(s string) bool {
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return s != ""
}

// responseMember reads a named member from a struct or map response,
// case-insensitively. A nil pointer member yields (nil, true).
func responseMember(raw any, name string) (any, bool) {
	if raw == nil {
		return nil, false
	}

	if m, ok := raw.(map[string]any); ok {
		for k, v := range m {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
		return nil, false
	}

	rv := reflect.ValueOf(raw)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	f := rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
	if !f.IsValid() || !f.CanInterface() {
		return nil, false
	}
	if f.Kind() == reflect.Pointer && f.IsNil() {
		return nil, true
	}
	return f.Interface(), true
}
