// Package yangspec names the YANG parser/type-system capability the
// transaction core consumes but does not implement (spec.md §1). Only the
// surface the validator needs is declared here.
package yangspec

import "github.com/netconfd/confd/pkg/tree"

// Type describes a resolved YANG type for constraint checking.
type Type struct {
	Name           string
	Range          *Range
	Length         *Range
	Pattern        string
	Enumeration    []string
	IdentityBase   string
	UnionOf        []Type
	FractionDigits int
	Bits           []string
}

// Range is an inclusive numeric or length boundary.
type Range struct {
	Min, Max int64
}

// Cardinality describes min/max-elements and mandatory constraints for a
// list or leaf statement.
type Cardinality struct {
	Mandatory   bool
	MinElements int
	MaxElements int // 0 means unbounded
}

// YangSpec is the capability surface the validator depends on; the diff and
// the changelog engine do not use it. A real implementation resolves against a parsed YANG
// module set; this module ships none (spec.md §1).
type YangSpec interface {
	// TypeOf resolves the type of a leaf identified by namespace and name.
	TypeOf(namespace, name string) (Type, bool)
	// CardinalityOf resolves cardinality constraints for an element.
	CardinalityOf(namespace, name string) (Cardinality, bool)
	// ResolveIdentity checks whether identity is a member of base's
	// identity hierarchy.
	ResolveIdentity(base, identity string) bool
	// EvalXPath evaluates a must/when XPath expression against ctx and
	// reports whether it holds.
	EvalXPath(expr string, ctx *tree.Node) (bool, error)
	// HasFeature reports whether an if-feature expression is enabled.
	HasFeature(name string) bool
	// DefaultOf returns the YANG-declared default for a leaf, if any.
	DefaultOf(namespace, name string) (string, bool)
	// KeysOf returns the ordered key leaf names for a list statement.
	KeysOf(namespace, name string) ([]string, bool)
	// MustExprs returns every must expression declared on the element.
	MustExprs(namespace, name string) []string
	// WhenExpr returns the when expression guarding the element's presence,
	// if any.
	WhenExpr(namespace, name string) (string, bool)
	// LeafrefTarget returns the absolute path a leafref leaf resolves
	// against, if the leaf is typed as a leafref.
	LeafrefTarget(namespace, name string) (string, bool)
	// UniqueConstraints returns the sets of descendant leaf names that must
	// be jointly unique across sibling list entries sharing this name.
	UniqueConstraints(namespace, name string) [][]string
}
