package dispatch

import (
	"strings"
)

// RequestTree is the nested request structure handed to a RemoteCall. Keys
// are request member names; leaves hold coerced parameter values.
type RequestTree map[string]any

// BuildRequest walks the descriptor's compiled shape and writes every supplied
// parameter into its target path. A branch is present only when at least one
// leaf beneath it was supplied. The root is always present, possibly empty.
func BuildRequest(desc *Descriptor, ictx *InvocationContext) RequestTree {
	tree := RequestTree{}
	if !desc.compiled() {
		return tree
	}
	for _, c := range desc.shape.children {
		if v, ok := buildNode(desc, c, ictx); ok {
			tree[c.name] = v
		}
	}
	return tree
}

func buildNode(desc *Descriptor, n *shapeNode, ictx *InvocationContext) (any, bool) {
	if n.param >= 0 {
		return ictx.Value(desc.Parameters[n.param].Name)
	}

	var out map[string]any
	for _, c := range n.children {
		v, ok := buildNode(desc, c, ictx)
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(n.children))
		}
		out[c.name] = v
	}
	return out, out != nil
}

// Lookup returns the value at a dot-separated path.
func (t RequestTree) Lookup(path string) (any, bool) {
	var cur any = map[string]any(t)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// RedactedValue replaces sensitive parameter values in logs and notes.
const RedactedValue = "*****"

// Redacted returns a copy of the tree with every sensitive parameter value
// replaced, suitable for logs and dry-run notes.
func (t RequestTree) Redacted(desc *Descriptor) RequestTree {
	out := RequestTree(deepCopy(map[string]any(t)))
	for _, p := range desc.Parameters {
		if !p.Sensitive {
			continue
		}
		segments := strings.Split(p.TargetPath(), ".")
		m := map[string]any(out)
		for i, seg := range segments {
			if i == len(segments)-1 {
				if _, ok := m[seg]; ok {
					m[seg] = RedactedValue
				}
				break
			}
			next, ok := m[seg].(map[string]any)
			if !ok {
				break
			}
			m = next
		}
	}
	return out
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if child, ok := v.(map[string]any); ok {
			out[k] = deepCopy(child)
			continue
		}
		out[k] = v
	}
	return out
}
