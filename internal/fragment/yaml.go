package fragment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	_ yaml.Marshaler   = Fragment{}
	_ yaml.Unmarshaler = (*Fragment)(nil)
)

// MarshalYAML emits the fragment as a yaml.Node so map key order is kept.
func (f Fragment) MarshalYAML() (any, error) {
	return f.node()
}

func (f Fragment) node() (*yaml.Node, error) {
	switch f.kind {
	case KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range f.keys {
			child, err := f.fields[k].node()
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				child,
			)
		}
		return n, nil
	case KindSeq:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range f.items {
			child, err := item.node()
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(f.scalar); err != nil {
			return nil, fmt.Errorf("encode scalar: %w", err)
		}
		return n, nil
	}
}

// UnmarshalYAML decodes any YAML document into a fragment, keeping the
// document's key order.
func (f *Fragment) UnmarshalYAML(value *yaml.Node) error {
	decoded, err := fromNode(value)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}

func fromNode(n *yaml.Node) (Fragment, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Empty(), nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.MappingNode:
		var merged []Entry
		entries := make([]Entry, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return Fragment{}, fmt.Errorf("line %d: map keys must be scalars", key.Line)
			}
			if key.ShortTag() == mergeTag {
				inherited, err := mergeEntries(n.Content[i+1])
				if err != nil {
					return Fragment{}, err
				}
				merged = append(merged, inherited...)
				continue
			}
			child, err := fromNode(n.Content[i+1])
			if err != nil {
				return Fragment{}, err
			}
			entries = append(entries, E(key.Value, child))
		}
		// explicit keys override inherited ones
		return Map(append(merged, entries...)...), nil
	case yaml.SequenceNode:
		items := make([]Fragment, 0, len(n.Content))
		for _, c := range n.Content {
			child, err := fromNode(c)
			if err != nil {
				return Fragment{}, err
			}
			items = append(items, child)
		}
		return Fragment{kind: KindSeq, items: items}, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return Fragment{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Scalar(v), nil
	default:
		return Fragment{}, fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}

const mergeTag = "!!merge"

// mergeEntries expands the value of a "<<" key: a mapping, or a sequence of
// mappings where earlier mappings take precedence over later ones. Inherited
// keys are copied shallowly.
func mergeEntries(n *yaml.Node) ([]Entry, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.MappingNode:
		f, err := fromNode(n)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, f.Len())
		for _, k := range f.keys {
			entries = append(entries, E(k, f.fields[k]))
		}
		return entries, nil
	case yaml.SequenceNode:
		var entries []Entry
		seen := map[string]bool{}
		for _, item := range n.Content {
			if item.Kind == yaml.AliasNode {
				item = item.Alias
			}
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("line %d: merge sequence must contain mappings", item.Line)
			}
			inherited, err := mergeEntries(item)
			if err != nil {
				return nil, err
			}
			for _, e := range inherited {
				if !seen[e.Key] {
					seen[e.Key] = true
					entries = append(entries, e)
				}
			}
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("line %d: merge value must be a mapping", n.Line)
	}
}

// ReadFile decodes a YAML file into a fragment. An empty file yields Empty().
func ReadFile(path string) (Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fragment{}, err
	}

	var n yaml.Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return Fragment{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if n.Kind == 0 {
		return Empty(), nil
	}

	f, err := fromNode(&n)
	if err != nil {
		return Fragment{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, nil
}
