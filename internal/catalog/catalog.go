// Package catalog holds the Pinpoint operation descriptors and binds each one
// to its SDK call.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
)

//go:embed operations.yaml
var operationsYAML []byte

type catalogFile struct {
	ParameterSets map[string][]dispatch.ParameterSpec `yaml:"parameter_sets"`
	Operations    []operationEntry                    `yaml:"operations"`
}

type operationEntry struct {
	dispatch.Descriptor `yaml:",inline"`
	Include             []string `yaml:"include,omitempty"`
}

// Parse decodes and compiles a catalog document. Parameter sets named by an
// operation's include list are prepended to its own parameters.
func Parse(data []byte) ([]*dispatch.Descriptor, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse operation catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Operations))
	out := make([]*dispatch.Descriptor, 0, len(f.Operations))
	for _, op := range f.Operations {
		var params []dispatch.ParameterSpec
		for _, set := range op.Include {
			p, ok := f.ParameterSets[set]
			if !ok {
				return nil, fmt.Errorf("operation %s includes unknown parameter set %q", op.Name, set)
			}
			params = append(params, p...)
		}
		op.Descriptor.Parameters = append(params, op.Descriptor.Parameters...)

		for _, key := range []string{op.Name, op.Command} {
			k := strings.ToLower(key)
			if k == "" {
				continue
			}
			if seen[k] {
				return nil, fmt.Errorf("operation name %q is declared more than once", key)
			}
			seen[k] = true
		}

		desc, err := dispatch.NewDescriptor(op.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("invalid operation descriptor: %w", err)
		}
		out = append(out, desc)
	}

	return out, nil
}

// Descriptors returns the compiled built-in operation descriptors.
var Descriptors = sync.OnceValues(func() ([]*dispatch.Descriptor, error) {
	return Parse(operationsYAML)
})

// UnknownOperationError is returned when no operation matches a name.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Name)
}

func (e *UnknownOperationError) Code() string { return "UNKNOWN_OPERATION" }

// Catalog resolves operation and command names to bound operations.
type Catalog struct {
	ops   map[string]*dispatch.Operation
	order []*dispatch.Operation
}

type options struct {
	dryRun bool
}

// Option configures a Catalog.
type Option func(*options)

// WithDryRun replaces every remote call with one that validates and logs the
// request without sending it.
func WithDryRun(enabled bool) Option {
	return func(o *options) { o.dryRun = enabled }
}

// New binds every built-in descriptor to api.
func New(api PinpointAPI, opts ...Option) (*Catalog, error) {
	descs, err := Descriptors()
	if err != nil {
		return nil, err
	}

	declared := make(map[string]bool, len(descs))
	for _, d := range descs {
		declared[d.Name] = true
	}
	for name := range bindings {
		if !declared[name] {
			return nil, fmt.Errorf("SDK binding %s has no operation descriptor", name)
		}
	}

	return NewFromDescriptors(descs, api, opts...)
}

// NewFromDescriptors binds descs to api. Every descriptor must have an SDK
// binding.
func NewFromDescriptors(descs []*dispatch.Descriptor, api PinpointAPI, opts ...Option) (*Catalog, error) {
	if api == nil {
		return nil, errors.New("pinpoint client is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Catalog{ops: make(map[string]*dispatch.Operation, len(descs)*2)}

	for _, desc := range descs {
		b, ok := bindings[desc.Name]
		if !ok {
			return nil, fmt.Errorf("operation %s has no SDK binding", desc.Name)
		}
		if err := b.validate(desc); err != nil {
			return nil, err
		}

		call := b.call(api)
		if o.dryRun {
			call = b.dryRun(desc)
		}
		op, err := dispatch.NewOperation(desc, call, dispatch.WithOutputType(b.output))
		if err != nil {
			return nil, err
		}

		c.ops[strings.ToLower(desc.Name)] = op
		if desc.Command != "" {
			c.ops[strings.ToLower(desc.Command)] = op
		}
		c.order = append(c.order, op)
	}

	sort.Slice(c.order, func(i, j int) bool { return c.order[i].Name() < c.order[j].Name() })
	return c, nil
}

// Lookup finds an operation by operation or command name, ignoring case.
func (c *Catalog) Lookup(name string) (*dispatch.Operation, error) {
	op, ok := c.ops[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, &UnknownOperationError{Name: name}
	}
	return op, nil
}

// Operations returns every bound operation sorted by name.
func (c *Catalog) Operations() []*dispatch.Operation {
	return append([]*dispatch.Operation(nil), c.order...)
}
