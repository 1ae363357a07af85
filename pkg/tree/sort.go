package tree

import "sort"

// Sort orders the children of every element in the subtree canonically:
// list entries by their YANG key sequence unless the statement declares
// ordered-by user, in which case insertion order is preserved.
func Sort(n *Node) {
	if n == nil {
		return
	}
	for _, child := range n.Children {
		Sort(child)
	}
	if n.Spec != nil && n.Spec.OrderedByUser {
		return
	}
	sort.SliceStable(n.Children, func(i, j int) bool {
		return n.Children[i].Identity() < n.Children[j].Identity()
	})
}
