// Package runner wires configuration, clients and the operation catalog into
// a dispatcher and runs invocation events through it.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/aws"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/catalog"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/config"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/opa"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/secrets"
	"github.com/cruxstack/pinpoint-dispatch-go/internal/types"
)

type Runner struct {
	Config     *config.Config
	Catalog    *catalog.Catalog
	Dispatcher *dispatch.Dispatcher
	Decrypter  secrets.Decrypter
}

type options struct {
	confirmer dispatch.Confirmer
}

// Option configures NewRunner.
type Option func(*options)

// WithConfirmer replaces the confirmer selected by APP_CONFIRM_MODE, for
// interactive callers.
func WithConfirmer(c dispatch.Confirmer) Option {
	return func(o *options) { o.confirmer = c }
}

// NewRunner builds the AWS clients, catalog, confirmer and dispatcher from cfg.
func NewRunner(ctx context.Context, cfg *config.Config, opts ...Option) (*Runner, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	awsClient := aws.NewAWSClient(*cfg.AWSConfig, cfg.AppPinpointEndpoint)

	cat, err := catalog.New(awsClient.Pinpoint.Client, catalog.WithDryRun(!cfg.AppCallEnabled))
	if err != nil {
		return nil, fmt.Errorf("failed to build operation catalog: %w", err)
	}

	confirmer := o.confirmer
	if confirmer == nil {
		confirmer, err = NewConfirmer(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	decrypter, err := secrets.New(cfg.AppSecretsMode, cfg.AppSecretsKmsKeyId, awsClient.KMS, cfg.DebugMode)
	if err != nil {
		return nil, fmt.Errorf("failed to init secrets: %w", err)
	}

	d := dispatch.NewDispatcher(
		dispatch.WithConfirmer(confirmer),
		dispatch.WithConnection(awsClient.Pinpoint.Connection()),
	)

	return &Runner{
		Config:     cfg,
		Catalog:    cat,
		Dispatcher: d,
		Decrypter:  decrypter,
	}, nil
}

// NewConfirmer returns the confirmer for unattended runs selected by
// APP_CONFIRM_MODE.
func NewConfirmer(ctx context.Context, cfg *config.Config) (dispatch.Confirmer, error) {
	switch cfg.AppConfirmMode {
	case config.ConfirmModePolicy:
		policy, err := opa.ReadPolicy(cfg.AppConfirmPolicyPath)
		if err != nil {
			return nil, err
		}
		c, err := opa.NewPolicyConfirmer(ctx, policy)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare confirmation policy: %w", err)
		}
		return c, nil
	case config.ConfirmModeAllow:
		return dispatch.StaticConfirmer{Answer: true}, nil
	case config.ConfirmModeDeny, "":
		return dispatch.StaticConfirmer{Answer: false}, nil
	}
	return nil, fmt.Errorf("unknown confirm mode %q", cfg.AppConfirmMode)
}

// Run resolves the event's operation and dispatches it. Every failure is
// reported in the returned outcome.
func (r *Runner) Run(ctx context.Context, evt types.InvocationEvent) *dispatch.Outcome {
	op, err := r.Catalog.Lookup(evt.Operation)
	if err != nil {
		return dispatch.FailedOutcome(r.Dispatcher.NewInvocationID(), evt.Operation, err)
	}

	named, err := r.parameters(ctx, op, evt)
	if err != nil {
		return dispatch.FailedOutcome(r.Dispatcher.NewInvocationID(), op.Name(), err)
	}

	slog.DebugContext(ctx, "running invocation event",
		"operation", op.Name(),
		"force", evt.Force,
		"select", evt.Select,
	)

	return r.Dispatcher.Dispatch(ctx, op,
		dispatch.Args{
			Named:      named,
			Positional: evt.Arguments,
			Pipeline:   evt.Input,
		},
		dispatch.Options{
			Force:  evt.Force,
			Select: evt.Select,
		},
	)
}

// Redact returns a copy of evt safe to log: values bound to sensitive
// parameters, whether named, positional or piped, are replaced. Parameters of
// an unknown operation are all replaced.
func (r *Runner) Redact(evt types.InvocationEvent) types.InvocationEvent {
	var desc *dispatch.Descriptor
	if op, err := r.Catalog.Lookup(evt.Operation); err == nil {
		desc = op.Descriptor
	}
	sensitive := func(name string) bool {
		if desc == nil {
			return true
		}
		p, ok := desc.Parameter(name)
		return !ok || p.Sensitive
	}

	out := evt
	if evt.Parameters != nil {
		out.Parameters = make(map[string]any, len(evt.Parameters))
		for k, v := range evt.Parameters {
			if sensitive(k) {
				v = dispatch.RedactedValue
			}
			out.Parameters[k] = v
		}
	}

	if evt.Arguments != nil {
		out.Arguments = make([]any, len(evt.Arguments))
		copy(out.Arguments, evt.Arguments)
	}
	for _, p := range sensitiveParameters(desc) {
		if p.Position != nil && *p.Position < len(out.Arguments) {
			out.Arguments[*p.Position] = dispatch.RedactedValue
		}
		if p.Pipeline && evt.Input != nil {
			out.Input = dispatch.RedactedValue
		}
	}
	if desc == nil {
		for i := range out.Arguments {
			out.Arguments[i] = dispatch.RedactedValue
		}
		if evt.Input != nil {
			out.Input = dispatch.RedactedValue
		}
	}
	return out
}

func sensitiveParameters(desc *dispatch.Descriptor) []dispatch.ParameterSpec {
	if desc == nil {
		return nil
	}
	var out []dispatch.ParameterSpec
	for _, p := range desc.Parameters {
		if p.Sensitive {
			out = append(out, p)
		}
	}
	return out
}

// parameters merges decrypted parameters into the plain ones. A parameter
// supplied both ways is a duplicate.
func (r *Runner) parameters(ctx context.Context, op *dispatch.Operation, evt types.InvocationEvent) (map[string]any, error) {
	decrypted, err := secrets.DecryptParameters(ctx, r.Decrypter, evt.EncryptedParameters)
	if err != nil {
		return nil, err
	}
	if len(decrypted) == 0 {
		return evt.Parameters, nil
	}

	named := make(map[string]any, len(evt.Parameters)+len(decrypted))
	seen := make(map[string]bool, len(evt.Parameters))
	for k, v := range evt.Parameters {
		named[k] = v
		seen[op.Descriptor.CanonicalName(k)] = true
	}
	for k, v := range decrypted {
		if seen[op.Descriptor.CanonicalName(k)] {
			return nil, &dispatch.DuplicateParameterError{Operation: op.Name(), Parameter: k}
		}
		named[k] = v
	}
	return named, nil
}
