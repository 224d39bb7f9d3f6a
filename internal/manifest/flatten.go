// Package manifest turns a build's artifact manifest tree into the two
// shapes the UI needs: a flat path index for lookup and a projected view
// tree for display.
package manifest

import (
	"github.com/zuulview/zuulview/pkg/domain"
)

// Separator joins path segments in index keys and projected paths.
const Separator = "/"

// Index flattens a manifest tree into a lookup from full path to leaf node.
// A node with children is a directory and is not indexed itself; every leaf
// reachable from the root appears exactly once, keyed by its full path.
func Index(tree []domain.ManifestNode) domain.PathIndex {
	idx := make(domain.PathIndex)
	indexInto(idx, tree, "")
	return idx
}

func indexInto(idx domain.PathIndex, nodes []domain.ManifestNode, parent string) {
	for i := range nodes {
		node := &nodes[i]
		path := parent + Separator + node.Name
		if len(node.Children) > 0 {
			indexInto(idx, node.Children, path)
			continue
		}
		idx[path] = node
	}
}
