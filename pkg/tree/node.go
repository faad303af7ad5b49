package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mlcomp/mlboard/pkg/storage"
)

// ErrMalformed is wrapped by every error caused by a payload that does not
// follow the storage tree shape.
var ErrMalformed = errors.New("malformed storage tree")

// Kind tells directory nodes and storage (leaf) nodes apart.
type Kind uint8

const (
	// KindDirectory is an intermediate directory holding child nodes.
	KindDirectory Kind = iota + 1
	// KindLeaf is a storage directory carrying record data.
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Node is one entry of the storage tree. Exactly one of Children (for
// directories) and Data (for leaves) is meaningful, as told by Kind.
type Node struct {
	Name     string
	Kind     Kind
	Children []*Node
	Data     *storage.RecordData
}

// Directory builds a directory node.
func Directory(name string, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindDirectory, Children: children}
}

// Leaf builds a storage node.
func Leaf(name string, data *storage.RecordData) *Node {
	if data == nil {
		data = &storage.RecordData{}
	}

	return &Node{Name: name, Kind: KindLeaf, Data: data}
}

// NodeError describes a node that could not be decoded.
type NodeError struct {
	// Path locates the node, e.g. "a/b" or "a[3]" when the name is unknown.
	Path   string
	Reason string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %s", e.Path, e.Reason)
}

func (e *NodeError) Unwrap() error {
	return ErrMalformed
}

// Options controls decoding.
type Options struct {
	// Strict aborts decoding on the first malformed node. Otherwise the
	// node and its subtree are skipped and reported as a warning.
	Strict bool `yaml:"strict" mapstructure:"strict"`
}

// Parse decodes a storage tree payload into nodes. A top level that is not
// a JSON array is always an error. In lenient mode the returned warnings
// list every skipped node.
func Parse(data []byte, opts Options) ([]*Node, []*NodeError, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(ReplaceNonFinite(data), &top); err != nil {
		return nil, nil, fmt.Errorf("%w: decoding top level: %w", ErrMalformed, err)
	}

	p := &parser{strict: opts.Strict}

	nodes, err := p.parseChildren(nil, top)
	if err != nil {
		return nil, nil, err
	}

	return nodes, p.warnings, nil
}

type parser struct {
	strict   bool
	warnings []*NodeError
}

func (p *parser) parseChildren(
	parent []string, raw []json.RawMessage,
) ([]*Node, error) {
	nodes := make([]*Node, 0, len(raw))

	for i, r := range raw {
		node, err := p.parseNode(parent, i, r)
		if err != nil {
			var nerr *NodeError
			if p.strict || !errors.As(err, &nerr) {
				return nil, err
			}

			p.warnings = append(p.warnings, nerr)

			continue
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

func (p *parser) parseNode(
	parent []string, index int, raw json.RawMessage,
) (*Node, error) {
	indexPath := fmt.Sprintf("%s[%d]", strings.Join(parent, "/"), index)

	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, malformed(indexPath, "expected a [name, value] pair")
	}

	if len(pair) != 2 {
		return nil, malformed(indexPath,
			"expected a [name, value] pair, got %d elements", len(pair))
	}

	var name string
	if len(pair[0]) == 0 || pair[0][0] != '"' {
		return nil, malformed(indexPath, "node name is not a string")
	}

	if err := json.Unmarshal(pair[0], &name); err != nil {
		return nil, malformed(indexPath, "node name is not a string")
	}

	// Clip so siblings never share the backing array.
	own := append(slices.Clip(parent), name)
	path := strings.Join(own, "/")
	value := bytes.TrimLeft(pair[1], " \t\r\n")

	switch {
	case len(value) > 0 && value[0] == '[':
		var children []json.RawMessage
		if err := json.Unmarshal(value, &children); err != nil {
			return nil, malformed(path, "decoding children: %v", err)
		}

		kids, err := p.parseChildren(own, children)
		if err != nil {
			return nil, err
		}

		return Directory(name, kids...), nil

	case len(value) > 0 && value[0] == '{':
		var data storage.RecordData
		if err := json.Unmarshal(value, &data); err != nil {
			return nil, malformed(path, "decoding record data: %v", err)
		}

		return Leaf(name, &data), nil

	default:
		return nil, malformed(path, "value is neither a directory nor a record")
	}
}

func malformed(path, format string, args ...any) error {
	return &NodeError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Mount places nodes under the directory path prefix ("a/b" nests two
// directories). An empty prefix mounts the nodes at the root.
func Mount(prefix string, nodes []*Node) []*Node {
	segments := make([]string, 0, 4)

	for _, s := range strings.Split(prefix, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	for i := len(segments) - 1; i >= 0; i-- {
		nodes = []*Node{Directory(segments[i], nodes...)}
	}

	return nodes
}
