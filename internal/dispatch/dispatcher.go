package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"

// Options are the per-invocation switches common to every operation.
type Options struct {
	// Force skips the confirmation gate.
	Force bool
	// Select overrides what the outcome payload is: "*" for the whole
	// response, "^Name" for the bound value of parameter Name, or a response
	// member name.
	Select string
}

// Dispatcher runs invocations through bind, confirm, build, invoke and
// outcome. It holds no per-invocation state and is safe for concurrent use.
type Dispatcher struct {
	confirmer  Confirmer
	connection Connection
	tracer     trace.Tracer
	newID      func() string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithConfirmer sets the confirmation gate. The default declines every
// mutating invocation that is not forced.
func WithConfirmer(c Confirmer) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.confirmer = c
		}
	}
}

// WithConnection sets the connection context reported in transport errors.
func WithConnection(conn Connection) DispatcherOption {
	return func(d *Dispatcher) { d.connection = conn }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithIDGenerator overrides invocation id generation.
func WithIDGenerator(fn func() string) DispatcherOption {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		confirmer: StaticConfirmer{Answer: false},
		tracer:    otel.Tracer(tracerName),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Connection() Connection { return d.connection }

// NewInvocationID returns a fresh invocation id from the configured generator.
func (d *Dispatcher) NewInvocationID() string { return d.newID() }

// Dispatch runs one invocation and always returns an outcome. Errors are
// reported in the outcome, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, op *Operation, args Args, opts Options) *Outcome {
	id := d.newID()

	ctx, span := d.tracer.Start(ctx, "dispatch "+op.Name(),
		trace.WithAttributes(
			attribute.String("dispatch.operation", op.Name()),
			attribute.String("dispatch.invocation_id", id),
			attribute.Bool("dispatch.force", opts.Force),
		),
	)
	defer span.End()

	out := d.run(ctx, id, op, args, opts)

	span.SetAttributes(attribute.String("dispatch.status", out.Status.String()))
	if out.Status == Failed {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	return out
}

func (d *Dispatcher) run(ctx context.Context, id string, op *Operation, args Args, opts Options) *Outcome {
	desc := op.Descriptor
	fail := func(err error) *Outcome {
		slog.DebugContext(ctx, "invocation failed",
			"operation", desc.Name,
			"invocation_id", id,
			"error", err,
		)
		return FailedOutcome(id, desc.Name, err)
	}

	ictx, err := Bind(desc, args, d.connection)
	if err != nil {
		return fail(err)
	}
	slog.DebugContext(ctx, "parameters bound",
		"operation", desc.Name,
		"invocation_id", id,
		"parameters", ictx.Names(),
	)

	if err := validateSelect(op, opts.Select); err != nil {
		return fail(err)
	}

	if desc.Mutating && !opts.Force {
		req, err := confirmationRequest(id, desc, ictx)
		if err != nil {
			return fail(err)
		}
		if !confirm(ctx, d.confirmer, req) {
			slog.InfoContext(ctx, "operation declined",
				"operation", desc.Name,
				"invocation_id", id,
			)
			return &Outcome{
				InvocationID: id,
				Operation:    desc.Name,
				Status:       Aborted,
				Err:          ErrDeclined,
			}
		}
	}

	tree := BuildRequest(desc, ictx)
	slog.DebugContext(ctx, "request built",
		"operation", desc.Name,
		"invocation_id", id,
		"request", tree.Redacted(desc),
	)

	resp, err := d.call(ctx, op, tree)
	if err != nil {
		return fail(err)
	}

	result, err := payload(desc, ictx, resp, opts.Select)
	if err != nil {
		out := fail(err)
		out.Raw = resp.Raw
		out.Notes = resp.Notes
		return out
	}

	return &Outcome{
		InvocationID: id,
		Operation:    desc.Name,
		Status:       Succeeded,
		Payload:      result,
		Raw:          resp.Raw,
		Notes:        resp.Notes,
	}
}

// call invokes the bound remote call, converting a panic into an error so a
// misbehaving binding cannot escape Dispatch.
func (d *Dispatcher) call(ctx context.Context, op *Operation, tree RequestTree) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("%s: remote call panicked: %v", op.Name(), r)
		}
	}()
	return invoke(ctx, op, tree, d.connection)
}
