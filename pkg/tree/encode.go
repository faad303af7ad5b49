package tree

import (
	"encoding/json"
	"fmt"

	"github.com/mlcomp/mlboard/pkg/storage"
)

// MarshalJSON encodes n in the wire form [name, children] for a
// directory and [name, data] for a leaf.
func (n *Node) MarshalJSON() ([]byte, error) {
	var value any

	switch n.Kind {
	case KindDirectory:
		children := n.Children
		if children == nil {
			children = []*Node{}
		}

		value = children
	case KindLeaf:
		data := n.Data
		if data == nil {
			data = &storage.RecordData{}
		}

		value = data
	default:
		return nil, fmt.Errorf("%w: node %q has unknown kind %d", ErrMalformed, n.Name, n.Kind)
	}

	return json.Marshal([]any{n.Name, value})
}

// Encode serializes nodes as a tree payload that Parse reads back.
func Encode(nodes []*Node) ([]byte, error) {
	if nodes == nil {
		nodes = []*Node{}
	}

	data, err := json.Marshal(nodes)
	if err != nil {
		return nil, fmt.Errorf("encoding tree: %w", err)
	}

	return data, nil
}
