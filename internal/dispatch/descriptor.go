// Package dispatch implements the command dispatch envelope: bind named
// arguments against an operation descriptor, gate mutating calls behind a
// confirmation, build a pruned request tree, invoke the bound remote call and
// normalize the result into a single Outcome.
package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ParameterType is the semantic type of a parameter value.
type ParameterType int

const (
	TypeString ParameterType = iota + 1
	TypeBoolean
	TypeInteger
	TypeDouble
	TypeEnum
	TypeStringList
	TypeStringMap
	TypeStringListMap
	TypeObjectList
)

var parameterTypeNames = map[ParameterType]string{
	TypeString:        "string",
	TypeBoolean:       "boolean",
	TypeInteger:       "integer",
	TypeDouble:        "double",
	TypeEnum:          "enum",
	TypeStringList:    "string-list",
	TypeStringMap:     "string-map",
	TypeStringListMap: "string-list-map",
	TypeObjectList:    "object-list",
}

func (t ParameterType) String() string {
	if name, ok := parameterTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ParameterType(%d)", int(t))
}

// ParseParameterType parses the textual name of a parameter type.
func ParseParameterType(s string) (ParameterType, error) {
	for t, name := range parameterTypeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter type %q", s)
}

func (t ParameterType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ParameterType) UnmarshalText(text []byte) error {
	parsed, err := ParseParameterType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsCollection reports whether values of this type are bound as a single
// collection leaf.
func (t ParameterType) IsCollection() bool {
	switch t {
	case TypeStringList, TypeStringMap, TypeStringListMap, TypeObjectList:
		return true
	}
	return false
}

// ParameterSpec describes one caller-facing parameter of an operation and the
// location in the request tree its value is written to.
type ParameterSpec struct {
	Name        string        `yaml:"name"`
	Aliases     []string      `yaml:"aliases,omitempty"`
	Path        string        `yaml:"path,omitempty"`
	Type        ParameterType `yaml:"type"`
	Values      []string      `yaml:"values,omitempty"`
	Position    *int          `yaml:"position,omitempty"`
	Pipeline    bool          `yaml:"pipeline,omitempty"`
	Sensitive   bool          `yaml:"sensitive,omitempty"`
	Description string        `yaml:"description,omitempty"`
}

// TargetPath returns the dot-separated request tree path, defaulting to the
// parameter name.
func (p ParameterSpec) TargetPath() string {
	if p.Path == "" {
		return p.Name
	}
	return p.Path
}

// Descriptor is the static metadata of one remote operation. Build it with
// NewDescriptor; the returned value must not be modified afterwards.
type Descriptor struct {
	Name           string          `yaml:"name"`
	Command        string          `yaml:"command"`
	Description    string          `yaml:"description,omitempty"`
	Parameters     []ParameterSpec `yaml:"parameters"`
	Mutating       bool            `yaml:"mutating,omitempty"`
	ConfirmMessage string          `yaml:"confirm_message,omitempty"`
	Identity       []string        `yaml:"identity,omitempty"`
	Result         string          `yaml:"result,omitempty"`

	index     map[string]int
	positions map[int]int
	pipeline  int
	shape     *shapeNode
}

// NewDescriptor validates d and compiles its request shape.
func NewDescriptor(d Descriptor) (*Descriptor, error) {
	if d.Name == "" {
		return nil, errors.New("descriptor name is required")
	}

	out := d
	out.Parameters = append([]ParameterSpec(nil), d.Parameters...)
	out.Identity = append([]string(nil), d.Identity...)
	out.index = make(map[string]int, len(d.Parameters))
	out.positions = make(map[int]int)
	out.pipeline = -1

	for i, p := range out.Parameters {
		if p.Name == "" {
			return nil, fmt.Errorf("%s: parameter %d has no name", d.Name, i)
		}
		if _, ok := parameterTypeNames[p.Type]; !ok {
			return nil, fmt.Errorf("%s: parameter %s has no valid type", d.Name, p.Name)
		}
		if p.Type == TypeEnum && len(p.Values) == 0 {
			return nil, fmt.Errorf("%s: enum parameter %s declares no values", d.Name, p.Name)
		}

		for _, key := range append([]string{p.Name}, p.Aliases...) {
			k := strings.ToLower(key)
			if prev, dup := out.index[k]; dup {
				return nil, fmt.Errorf("%s: parameter name %q used by both %s and %s", d.Name, key, out.Parameters[prev].Name, p.Name)
			}
			out.index[k] = i
		}

		if p.Position != nil {
			if *p.Position < 0 {
				return nil, fmt.Errorf("%s: parameter %s has negative position", d.Name, p.Name)
			}
			if prev, dup := out.positions[*p.Position]; dup {
				return nil, fmt.Errorf("%s: position %d used by both %s and %s", d.Name, *p.Position, out.Parameters[prev].Name, p.Name)
			}
			out.positions[*p.Position] = i
		}

		if p.Pipeline {
			if out.pipeline >= 0 {
				return nil, fmt.Errorf("%s: more than one pipeline parameter", d.Name)
			}
			out.pipeline = i
		}
	}

	for _, name := range out.Identity {
		i, ok := out.index[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%s: identity parameter %s is not declared", d.Name, name)
		}
		if out.Parameters[i].Sensitive {
			return nil, fmt.Errorf("%s: identity parameter %s is sensitive", d.Name, name)
		}
	}

	shape, err := compileShape(out.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}
	out.shape = shape

	return &out, nil
}

// Parameter looks up a parameter by name or alias, case-insensitively.
func (d *Descriptor) Parameter(name string) (ParameterSpec, bool) {
	i, ok := d.index[strings.ToLower(name)]
	if !ok {
		return ParameterSpec{}, false
	}
	return d.Parameters[i], true
}

// CanonicalName returns the declared name of the parameter that name or one
// of its aliases refers to. A leading "-" is ignored. Unknown names come back
// lowercased.
func (d *Descriptor) CanonicalName(name string) string {
	name = strings.TrimPrefix(name, "-")
	if p, ok := d.Parameter(name); ok {
		return p.Name
	}
	return strings.ToLower(name)
}

func (d *Descriptor) compiled() bool {
	return d != nil && d.shape != nil
}

// shapeNode is one node of the compiled request path trie. Leaves reference a
// parameter by index; branches have children in declaration order.
type shapeNode struct {
	name     string
	param    int
	children []*shapeNode
}

func (n *shapeNode) child(name string) *shapeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func compileShape(params []ParameterSpec) (*shapeNode, error) {
	root := &shapeNode{param: -1}

	for i, p := range params {
		segments := strings.Split(p.TargetPath(), ".")
		node := root
		for depth, seg := range segments {
			if seg == "" {
				return nil, fmt.Errorf("parameter %s has malformed path %q", p.Name, p.TargetPath())
			}
			last := depth == len(segments)-1
			next := node.child(seg)

			switch {
			case next == nil && last:
				node.children = append(node.children, &shapeNode{name: seg, param: i})
			case next == nil:
				next = &shapeNode{name: seg, param: -1}
				node.children = append(node.children, next)
			case next.param >= 0:
				return nil, fmt.Errorf("path %q of parameter %s overlaps parameter %s", p.TargetPath(), p.Name, params[next.param].Name)
			case last:
				return nil, fmt.Errorf("path %q of parameter %s is a branch of other parameters", p.TargetPath(), p.Name)
			}
			node = next
		}
	}

	return root, nil
}

// Paths returns every leaf path of the compiled shape, sorted.
func (d *Descriptor) Paths() []string {
	if !d.compiled() {
		return nil
	}
	var out []string
	var walk func(n *shapeNode, prefix string)
	walk = func(n *shapeNode, prefix string) {
		for _, c := range n.children {
			p := c.name
			if prefix != "" {
				p = prefix + "." + c.name
			}
			if c.param >= 0 {
				out = append(out, p)
				continue
			}
			walk(c, p)
		}
	}
	walk(d.shape, "")
	sort.Strings(out)
	return out
}
