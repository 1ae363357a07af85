package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample() *Node {
	root := NewElement("urn:test", "A")
	root.AddChild(NewLeaf("urn:test", "b", "1"))
	return root
}

func TestDiff_SelfIsEmpty(t *testing.T) {
	a := buildSample()
	b := buildSample()

	result, err := Diff(a, b)
	require.NoError(t, err)

	assert.Empty(t, result.Added, "diffing a tree against itself should add nothing")
	assert.Empty(t, result.Deleted, "diffing a tree against itself should delete nothing")
	assert.Empty(t, result.SrcChanged, "diffing a tree against itself should change nothing")
	assert.Empty(t, result.TgtChanged, "diffing a tree against itself should change nothing")
}

func TestDiff_Added(t *testing.T) {
	src := NewElement("urn:test", "A")
	tgt := NewElement("urn:test", "A")
	tgt.AddChild(NewLeaf("urn:test", "b", "1"))

	result, err := Diff(src, tgt)
	require.NoError(t, err)

	require.Len(t, result.Added, 1)
	assert.Equal(t, "b", result.Added[0].Name)
	assert.Empty(t, result.Deleted)
}

func TestDiff_Deleted(t *testing.T) {
	src := NewElement("urn:test", "A")
	src.AddChild(NewLeaf("urn:test", "b", "1"))
	tgt := NewElement("urn:test", "A")

	result, err := Diff(src, tgt)
	require.NoError(t, err)

	require.Len(t, result.Deleted, 1)
	assert.Equal(t, "b", result.Deleted[0].Name)
	assert.Empty(t, result.Added)
}

func TestDiff_Changed(t *testing.T) {
	src := NewElement("urn:test", "A")
	src.AddChild(NewLeaf("urn:test", "b", "1"))
	tgt := NewElement("urn:test", "A")
	tgt.AddChild(NewLeaf("urn:test", "b", "2"))

	result, err := Diff(src, tgt)
	require.NoError(t, err)

	require.Len(t, result.SrcChanged, 1)
	require.Len(t, result.TgtChanged, 1)
	assert.Equal(t, "1", result.SrcChanged[0].Src.Body)
	assert.Equal(t, "2", result.TgtChanged[0].Tgt.Body)
}

func TestDiff_LeafListMatchesByValueNotPosition(t *testing.T) {
	src := NewElement("urn:test", "A")
	src.AddChild(NewLeafListItem("urn:test", "tag", "x"))
	src.AddChild(NewLeafListItem("urn:test", "tag", "y"))

	tgt := NewElement("urn:test", "A")
	tgt.AddChild(NewLeafListItem("urn:test", "tag", "y"))
	tgt.AddChild(NewLeafListItem("urn:test", "tag", "z"))

	result, err := Diff(src, tgt)
	require.NoError(t, err)

	require.Len(t, result.Added, 1)
	assert.Equal(t, "z", result.Added[0].Body)
	require.Len(t, result.Deleted, 1)
	assert.Equal(t, "x", result.Deleted[0].Body)
	assert.Empty(t, result.SrcChanged, "shared leaf-list value 'y' should not appear as changed")
}

func TestApplyFlags_PropagatesChangeUpward(t *testing.T) {
	src := NewElement("urn:test", "A")
	inner := NewElement("urn:test", "mid")
	inner.AddChild(NewLeaf("urn:test", "b", "1"))
	src.AddChild(inner)

	tgt := NewElement("urn:test", "A")
	innerT := NewElement("urn:test", "mid")
	innerT.AddChild(NewLeaf("urn:test", "b", "2"))
	tgt.AddChild(innerT)

	result, err := Diff(src, tgt)
	require.NoError(t, err)
	result.ApplyFlags(src, tgt)

	assert.True(t, src.Flags.Has(FlagChange), "root should inherit CHANGE from a deeper diff")
	assert.True(t, inner.Flags.Has(FlagChange), "mid should inherit CHANGE from its changed child")
	assert.True(t, tgt.Flags.Has(FlagChange))
	assert.True(t, innerT.Flags.Has(FlagChange))
}
