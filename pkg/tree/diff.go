package tree

// Pair is a matched (src, tgt) node pair whose identity is equal but whose
// leaf body differs.
type Pair struct {
	Src *Node
	Tgt *Node
}

// Result holds the four disjoint vectors produced by Diff.
type Result struct {
	Deleted    []*Node // present in src only
	Added      []*Node // present in tgt only
	SrcChanged []Pair  // parallel vectors of node pairs whose body differs
	TgtChanged []Pair
}

// Diff compares two sibling-sorted, spec-bound ConfigTrees and returns the
// added/deleted/changed vectors described in spec.md §4.A.
//
// Diff only compares the immediate children of src and tgt at each level: it
// recurses into children whose identity matches on both sides, so a change
// deep in the tree surfaces as a changed pair at the level where the leaf
// body actually differs, with deeper unchanged structure never visited
// twice. Matching is by Identity() exactly as described in §4.A.
func Diff(src, tgt *Node) (Result, error) {
	var result Result
	diffChildren(src, tgt, &result)
	return result, nil
}

func diffChildren(src, tgt *Node, result *Result) {
	srcByID := indexChildren(src)
	tgtByID := indexChildren(tgt)

	for id, tgtChild := range tgtByID {
		srcChild, ok := srcByID[id]
		if !ok {
			result.Added = append(result.Added, tgtChild)
			continue
		}
		if srcChild.Kind == Element && len(srcChild.Children)+len(tgtChild.Children) > 0 {
			diffChildren(srcChild, tgtChild, result)
		}
		if srcChild.Body != tgtChild.Body {
			result.SrcChanged = append(result.SrcChanged, Pair{Src: srcChild, Tgt: tgtChild})
			result.TgtChanged = append(result.TgtChanged, Pair{Src: srcChild, Tgt: tgtChild})
		}
	}

	for id, srcChild := range srcByID {
		if _, ok := tgtByID[id]; !ok {
			result.Deleted = append(result.Deleted, srcChild)
		}
	}
}

func indexChildren(n *Node) map[string]*Node {
	if n == nil {
		return map[string]*Node{}
	}
	out := make(map[string]*Node, len(n.Children))
	for _, c := range n.Children {
		out[c.Identity()] = c
	}
	return out
}

// ApplyFlags sets DEL/ADD/CHANGE flags on the src and tgt trees per the
// rules in spec.md §4.A: deleted nodes get DEL recursively downward with
// CHANGE propagated upward on src ancestors; added nodes get ADD downward
// with CHANGE propagated upward on tgt ancestors; changed pairs get CHANGE
// on both sides with CHANGE propagated upward on both.
//
// Because Node carries no parent pointer, ancestor marking is done by a
// recursive walk of each tree from its root, in which every node learns from
// its children whether a touched node lies below it, rather than by walking
// upward from the changed node.
func (r Result) ApplyFlags(src, tgt *Node) {
	deletedSet := nodeSet(r.Deleted)
	addedSet := nodeSet(r.Added)
	changedSrcSet := pairSrcSet(r.SrcChanged)
	changedTgtSet := pairTgtSet(r.TgtChanged)

	markDownward(deletedSet, FlagDel)
	markDownward(addedSet, FlagAdd)
	for n := range changedSrcSet {
		n.Flags.Set(FlagChange)
	}
	for n := range changedTgtSet {
		n.Flags.Set(FlagChange)
	}

	propagateChangeUpward(src, unionKeys(deletedSet, changedSrcSet))
	propagateChangeUpward(tgt, unionKeys(addedSet, changedTgtSet))
}

func nodeSet(nodes []*Node) map[*Node]struct{} {
	set := make(map[*Node]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}
	return set
}

func pairSrcSet(pairs []Pair) map[*Node]struct{} {
	set := make(map[*Node]struct{}, len(pairs))
	for _, p := range pairs {
		set[p.Src] = struct{}{}
	}
	return set
}

func pairTgtSet(pairs []Pair) map[*Node]struct{} {
	set := make(map[*Node]struct{}, len(pairs))
	for _, p := range pairs {
		set[p.Tgt] = struct{}{}
	}
	return set
}

func unionKeys(a, b map[*Node]struct{}) map[*Node]struct{} {
	out := make(map[*Node]struct{}, len(a)+len(b))
	for n := range a {
		out[n] = struct{}{}
	}
	for n := range b {
		out[n] = struct{}{}
	}
	return out
}

func markDownward(set map[*Node]struct{}, flag Flag) {
	for n := range set {
		markSubtree(n, flag)
	}
}

func markSubtree(n *Node, flag Flag) {
	n.Flags.Set(flag)
	for _, c := range n.Children {
		markSubtree(c, flag)
	}
}

// propagateChangeUpward recurses through root's subtree and reports whether
// it contains a member of touched; every ancestor of a touched node (but not
// the touched node itself, already flagged by the caller) receives
// FlagChange.
func propagateChangeUpward(root *Node, touched map[*Node]struct{}) bool {
	if root == nil {
		return false
	}
	_, selfTouched := touched[root]
	childTouched := false
	for _, c := range root.Children {
		if propagateChangeUpward(c, touched) {
			childTouched = true
		}
	}
	if childTouched && !selfTouched {
		root.Flags.Set(FlagChange)
	}
	return selfTouched || childTouched
}
