package dispatch

import (
	"fmt"
	"sort"
	"strings"
)

// Args is the raw argument set of one invocation.
type Args struct {
	Named      map[string]any
	Positional []any
	// Pipeline is bound to the descriptor's pipeline parameter when non-nil.
	Pipeline any
}

// Connection is the already-resolved connection context threaded through to
// the invoker. It is only used for diagnostics.
type Connection struct {
	Service  string
	Region   string
	Endpoint string
}

// DisplayEndpoint returns the configured endpoint, or the regional default
// when none was configured.
func (c Connection) DisplayEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Service != "" && c.Region != "" {
		return fmt.Sprintf("https://%s.%s.amazonaws.com", c.Service, c.Region)
	}
	return "(default endpoint)"
}

// InvocationContext holds the parameter values the caller supplied for one
// invocation. Parameters that were not supplied are absent, which is distinct
// from being supplied with a zero value.
type InvocationContext struct {
	operation  string
	connection Connection
	values     map[string]any
}

func (c *InvocationContext) Operation() string { return c.operation }

func (c *InvocationContext) Connection() Connection { return c.connection }

// Value returns the supplied value of a parameter by canonical name.
func (c *InvocationContext) Value(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Supplied reports whether the caller supplied the parameter.
func (c *InvocationContext) Supplied(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Names returns the canonical names of all supplied parameters, sorted.
func (c *InvocationContext) Names() []string {
	names := make([]string, 0, len(c.values))
	for n := range c.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Bind maps args onto the descriptor's parameters. Nil values count as not
// supplied.
func Bind(desc *Descriptor, args Args, conn Connection) (*InvocationContext, error) {
	ictx := &InvocationContext{
		operation:  desc.Name,
		connection: conn,
		values:     make(map[string]any),
	}

	set := func(i int, raw any) error {
		p := desc.Parameters[i]
		if raw == nil {
			return nil
		}
		if _, dup := ictx.values[p.Name]; dup {
			return &DuplicateParameterError{Operation: desc.Name, Parameter: p.Name}
		}
		v, err := coerce(p, raw)
		if err != nil {
			return &TypeMismatchError{Operation: desc.Name, Parameter: p.Name, Type: p.Type, Value: raw, Err: err}
		}
		ictx.values[p.Name] = v
		return nil
	}

	keys := make([]string, 0, len(args.Named))
	for k := range args.Named {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		i, ok := desc.index[strings.ToLower(strings.TrimPrefix(k, "-"))]
		if !ok {
			return nil, &UnknownParameterError{Operation: desc.Name, Name: k, Position: -1}
		}
		if err := set(i, args.Named[k]); err != nil {
			return nil, err
		}
	}

	for pos, raw := range args.Positional {
		i, ok := desc.positions[pos]
		if !ok {
			return nil, &UnknownParameterError{Operation: desc.Name, Position: pos}
		}
		if err := set(i, raw); err != nil {
			return nil, err
		}
	}

	if args.Pipeline != nil {
		if desc.pipeline < 0 {
			return nil, &UnknownParameterError{Operation: desc.Name, Name: "(pipeline input)", Position: -1}
		}
		if err := set(desc.pipeline, args.Pipeline); err != nil {
			return nil, err
		}
	}

	return ictx, nil
}
