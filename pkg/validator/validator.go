// Package validator implements the Generic Validator (spec.md §4.B): YANG
// structural, type, and cardinality constraint enforcement over a
// ConfigTree. The shape — a fixed sequence of named checks that each
// append to a shared error accumulator — follows the teacher's
// hive/verify.AllInvariants, generalized from "stop at the first failing
// invariant" to "accumulate every failure" since spec.md §4.B requires
// multiple errors to accumulate.
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/netconfd/confd/internal/rpcerr"
	"github.com/netconfd/confd/pkg/tree"
	"github.com/netconfd/confd/pkg/yangspec"
)

// ValidateAllTop walks the entire target tree and enforces every
// constraint named in spec.md §4.B. Default-value fill-in runs first.
func ValidateAllTop(tgt *tree.Node, spec yangspec.YangSpec) []rpcerr.Reply {
	if tgt == nil {
		return nil
	}
	FillDefaults(tgt, spec)
	var errs []rpcerr.Reply
	walk(tgt, tgt, "", spec, &errs)
	return errs
}

// ValidateAdd runs the same checks as ValidateAllTop but scoped to a single
// subtree, used for incremental edits and the added-vector pass of commit
// (spec.md §4.B). Leafref resolution still resolves against x itself as
// root, since the validator is not given the wider tree x came from; a
// leafref pointing outside x is reported as unresolved rather than silently
// accepted.
func ValidateAdd(x *tree.Node, spec yangspec.YangSpec) []rpcerr.Reply {
	if x == nil {
		return nil
	}
	FillDefaults(x, spec)
	var errs []rpcerr.Reply
	walk(x, x, "", spec, &errs)
	return errs
}

// FillDefaults fills in missing leaves with YANG-declared defaults before
// validation runs, cascading through container defaults (spec.md §4.B).
func FillDefaults(n *tree.Node, spec yangspec.YangSpec) {
	if n == nil || spec == nil {
		return
	}
	for _, child := range n.Children {
		FillDefaults(child, spec)
	}
	if n.Kind != tree.Element {
		return
	}
	if def, ok := spec.DefaultOf(n.Namespace, n.Name); ok && n.Body == "" && len(n.Children) == 0 {
		n.Body = def
	}
}

func walk(root, n *tree.Node, path string, spec yangspec.YangSpec, errs *[]rpcerr.Reply) {
	here := path + "/" + n.Name

	checkType(n, here, spec, errs)
	checkKeyUniqueness(n, here, errs)
	checkGroupCardinality(n, here, spec, errs)
	checkUniqueConstraints(n, here, spec, errs)
	checkMustWhen(n, here, spec, errs)
	checkLeafref(root, n, here, spec, errs)

	for _, child := range n.Children {
		walk(root, child, here, spec, errs)
	}
}

// checkUniqueConstraints enforces YANG `unique` statements: for every group
// of sibling list entries sharing (namespace, name), the tuple of values at
// each declared unique leaf combination must not repeat across entries
// (spec.md §4.B).
func checkUniqueConstraints(n *tree.Node, path string, spec yangspec.YangSpec, errs *[]rpcerr.Reply) {
	if spec == nil {
		return
	}
	for _, members := range groupChildren(n) {
		if len(members) < 2 {
			continue
		}
		first := members[0]
		combos := spec.UniqueConstraints(first.Namespace, first.Name)
		for _, combo := range combos {
			seen := make(map[string]struct{}, len(members))
			for _, member := range members {
				key := uniqueKey(member, combo)
				if _, dup := seen[key]; dup {
					*errs = append(*errs, rpcerr.DataExists(path+"/"+first.Name,
						fmt.Sprintf("unique constraint %v violated", combo)))
					break
				}
				seen[key] = struct{}{}
			}
		}
	}
}

// uniqueKey concatenates the body values of combo's leaves found among n's
// direct children, in declaration order.
func uniqueKey(n *tree.Node, combo []string) string {
	var sb strings.Builder
	for _, leaf := range combo {
		for _, c := range n.Children {
			if c.Name == leaf {
				sb.WriteString(c.Body)
				sb.WriteByte(0)
				break
			}
		}
	}
	return sb.String()
}

// groupChildren buckets n's direct children by (namespace, name), preserving
// first-seen order, the grouping both min/max-elements and unique checks
// need over sibling list entries.
func groupChildren(n *tree.Node) [][]*tree.Node {
	index := make(map[string]int)
	var groups [][]*tree.Node
	for _, child := range n.Children {
		key := child.Namespace + "\x00" + child.Name
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], child)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []*tree.Node{child})
	}
	return groups
}

// checkMustWhen evaluates a node's when expression (if any) and every must
// expression via the out-of-scope yangspec.YangSpec.EvalXPath boundary
// (spec.md §4.B, §1).
func checkMustWhen(n *tree.Node, path string, spec yangspec.YangSpec, errs *[]rpcerr.Reply) {
	if spec == nil {
		return
	}
	if expr, ok := spec.WhenExpr(n.Namespace, n.Name); ok {
		satisfied, err := spec.EvalXPath(expr, n)
		switch {
		case err != nil:
			*errs = append(*errs, rpcerr.OperationFailed(fmt.Sprintf("when %q: %v", expr, err)))
		case !satisfied:
			*errs = append(*errs, rpcerr.InvalidValue(path, fmt.Sprintf("when condition %q not satisfied", expr)))
		}
	}
	for _, expr := range spec.MustExprs(n.Namespace, n.Name) {
		satisfied, err := spec.EvalXPath(expr, n)
		switch {
		case err != nil:
			*errs = append(*errs, rpcerr.OperationFailed(fmt.Sprintf("must %q: %v", expr, err)))
		case !satisfied:
			*errs = append(*errs, rpcerr.InvalidValue(path, fmt.Sprintf("must condition %q not satisfied", expr)))
		}
	}
}

// checkLeafref resolves a leafref leaf's declared target path against root
// and reports an error if no node at that path carries a matching body
// value (spec.md §4.B).
func checkLeafref(root, n *tree.Node, path string, spec yangspec.YangSpec, errs *[]rpcerr.Reply) {
	if spec == nil || n.Body == "" {
		return
	}
	targetPath, ok := spec.LeafrefTarget(n.Namespace, n.Name)
	if !ok {
		return
	}
	for _, value := range resolvePath(root, targetPath) {
		if value == n.Body {
			return
		}
	}
	*errs = append(*errs, rpcerr.DataMissing(path, fmt.Sprintf("leafref target %q has no value %q", targetPath, n.Body)))
}

// resolvePath walks a slash-separated absolute element path from root and
// returns the body values of every matching node. The first segment names
// root itself (the same convention as the "/A/b" error paths walk builds);
// a path whose first segment is not root's name matches nothing. It is
// intentionally limited to plain element names, the same restriction
// internal/changelog.find applies: full XPath belongs to
// yangspec.YangSpec.EvalXPath (spec.md §1).
func resolvePath(root *tree.Node, path string) []string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if segments[0] != root.Name {
		return nil
	}
	current := []*tree.Node{root}
	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		var next []*tree.Node
		for _, n := range current {
			for _, c := range n.Children {
				if c.Name == seg {
					next = append(next, c)
				}
			}
		}
		current = next
	}
	values := make([]string, 0, len(current))
	for _, n := range current {
		values = append(values, n.Body)
	}
	return values
}

// checkGroupCardinality enforces mandatory-leaf and min/max-elements
// constraints over n's children, grouped by (namespace, name) so that
// min/max-elements on a list is checked against the count of list entries
// sharing that name, not against a single node in isolation.
func checkGroupCardinality(n *tree.Node, path string, spec yangspec.YangSpec, errs *[]rpcerr.Reply) {
	if spec == nil {
		return
	}
	for _, members := range groupChildren(n) {
		first := members[0]
		card, ok := spec.CardinalityOf(first.Namespace, first.Name)
		if !ok {
			continue
		}
		childPath := path + "/" + first.Name
		if card.Mandatory && len(members) == 1 && first.Body == "" && len(first.Children) == 0 {
			*errs = append(*errs, rpcerr.MissingElement(childPath, "mandatory leaf has no value"))
		}
		if card.MinElements > 0 && len(members) < card.MinElements {
			*errs = append(*errs, rpcerr.DataMissing(childPath, fmt.Sprintf("expected at least %d elements, found %d", card.MinElements, len(members))))
		}
		if card.MaxElements > 0 && len(members) > card.MaxElements {
			*errs = append(*errs, rpcerr.InvalidValue(childPath, fmt.Sprintf("expected at most %d elements, found %d", card.MaxElements, len(members))))
		}
	}
}

func checkType(n *tree.Node, path string, spec yangspec.YangSpec, errs *[]rpcerr.Reply) {
	if spec == nil || n.Body == "" {
		return
	}
	typ, ok := spec.TypeOf(n.Namespace, n.Name)
	if !ok {
		return
	}
	if err := validateAgainstType(n.Body, typ, spec); err != "" {
		*errs = append(*errs, rpcerr.InvalidValue(path, err))
	}
}

func validateAgainstType(value string, typ yangspec.Type, spec yangspec.YangSpec) string {
	if typ.Range != nil {
		if typ.FractionDigits > 0 {
			if n, ok := parseDecimal64(value, typ.FractionDigits); ok {
				if n < typ.Range.Min || n > typ.Range.Max {
					return fmt.Sprintf("value %s out of range [%d, %d]", value, typ.Range.Min, typ.Range.Max)
				}
			}
		} else {
			var n int64
			if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
				if n < typ.Range.Min || n > typ.Range.Max {
					return fmt.Sprintf("value %s out of range [%d, %d]", value, typ.Range.Min, typ.Range.Max)
				}
			}
		}
	}
	if typ.Length != nil {
		l := int64(len(value))
		if l < typ.Length.Min || l > typ.Length.Max {
			return fmt.Sprintf("length %d out of range [%d, %d]", l, typ.Length.Min, typ.Length.Max)
		}
	}
	if typ.Pattern != "" {
		if re, err := regexp.Compile(typ.Pattern); err == nil && !re.MatchString(value) {
			return fmt.Sprintf("%q does not match pattern %q", value, typ.Pattern)
		}
	}
	if len(typ.Enumeration) > 0 {
		found := false
		for _, e := range typ.Enumeration {
			if e == value {
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("%q is not a valid enumeration value", value)
		}
	}
	if typ.IdentityBase != "" && spec != nil {
		if !spec.ResolveIdentity(typ.IdentityBase, value) {
			return fmt.Sprintf("%q is not a member of identity base %s", value, typ.IdentityBase)
		}
	}
	if len(typ.Bits) > 0 {
		if msg := validateBits(value, typ.Bits); msg != "" {
			return msg
		}
	}
	if len(typ.UnionOf) > 0 {
		for _, alt := range typ.UnionOf {
			if validateAgainstType(value, alt, spec) == "" {
				return ""
			}
		}
		return fmt.Sprintf("%q matches no union alternative", value)
	}
	return ""
}

// parseDecimal64 scales value (a YANG decimal64 lexical form, e.g. "12.5")
// into the fixed-point int64 representation typ.Range's bounds are given
// in, by shifting the decimal point fractionDigits places right. A value
// with more fractional digits than fractionDigits allows is rejected.
func parseDecimal64(value string, fractionDigits int) (int64, bool) {
	s := value
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" || len(fracPart) > fractionDigits {
		return 0, false
	}
	fracPart += strings.Repeat("0", fractionDigits-len(fracPart))

	n, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// validateBits checks that every space-separated bit name in value is a
// member of allowed, the YANG `bits` type's declared bit set.
func validateBits(value string, allowed []string) string {
	set := make(map[string]struct{}, len(allowed))
	for _, b := range allowed {
		set[b] = struct{}{}
	}
	for _, tok := range strings.Fields(value) {
		if _, ok := set[tok]; !ok {
			return fmt.Sprintf("%q is not a member of bit set %v", tok, allowed)
		}
	}
	return ""
}

func checkKeyUniqueness(n *tree.Node, path string, errs *[]rpcerr.Reply) {
	if n.Kind != tree.Element {
		return
	}
	seen := make(map[string]struct{})
	for _, child := range n.Children {
		if child.Spec == nil || len(child.Spec.Keys) == 0 {
			continue
		}
		id := child.Identity()
		if _, dup := seen[id]; dup {
			*errs = append(*errs, rpcerr.DataExists(path+"/"+child.Name, "duplicate key value in list"))
		}
		seen[id] = struct{}{}
	}
}
