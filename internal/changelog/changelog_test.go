package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netconfd/confd/pkg/tree"
)

func buildTree() *tree.Node {
	root := tree.NewElement("urn:t", "A")
	root.AddChild(tree.NewLeaf("urn:t", "old-name", "hello"))
	return root
}

func TestEngine_Apply_Rename(t *testing.T) {
	root := buildTree()
	e := NewEngine()
	entry := Entry{Namespace: "urn:t", Steps: []Step{
		{Op: OpRename, Where: "old-name", Dst: "new-name", When: Interval{From: "2020-01-01"}},
	}}

	require.NoError(t, e.Apply(root, entry, "2021-01-01"))
	assert.Equal(t, "new-name", root.Children[0].Name)
}

func TestEngine_Apply_Replace(t *testing.T) {
	root := buildTree()
	e := NewEngine()
	entry := Entry{Steps: []Step{
		{Op: OpReplace, Where: "old-name", New: "world", When: Interval{From: "2020-01-01"}},
	}}

	require.NoError(t, e.Apply(root, entry, "2020-06-01"))
	assert.Equal(t, "world", root.Children[0].Body)
}

func TestEngine_Apply_Delete(t *testing.T) {
	root := buildTree()
	e := NewEngine()
	entry := Entry{Steps: []Step{
		{Op: OpDelete, Where: ".", Tag: "old-name", When: Interval{From: "2020-01-01"}},
	}}

	require.NoError(t, e.Apply(root, entry, "2020-06-01"))
	assert.Empty(t, root.Children)
}

func TestEngine_Apply_Move(t *testing.T) {
	root := tree.NewElement("urn:t", "A")
	src := tree.NewElement("urn:t", "src")
	dst := tree.NewElement("urn:t", "dst")
	src.AddChild(tree.NewLeaf("urn:t", "item", "v"))
	root.AddChild(src)
	root.AddChild(dst)

	e := NewEngine()
	entry := Entry{Steps: []Step{
		{Op: OpMove, Where: "src", Tag: "item", Dst: "dst", When: Interval{From: "2020-01-01"}},
	}}

	require.NoError(t, e.Apply(root, entry, "2021-01-01"))
	assert.Empty(t, src.Children, "the item must be removed from its old parent")
	require.Len(t, dst.Children, 1)
	assert.Equal(t, "item", dst.Children[0].Name)
}

func TestEngine_Apply_MoveMissingChildIsIdempotent(t *testing.T) {
	root := tree.NewElement("urn:t", "A")
	src := tree.NewElement("urn:t", "src")
	dst := tree.NewElement("urn:t", "dst")
	root.AddChild(src)
	root.AddChild(dst)

	e := NewEngine()
	entry := Entry{Steps: []Step{
		{Op: OpMove, Where: "src", Tag: "already-gone", Dst: "dst", When: Interval{From: "2020-01-01"}},
	}}

	require.NoError(t, e.Apply(root, entry, "2021-01-01"))
	assert.Empty(t, dst.Children)
}

func TestEngine_Apply_SkipsStepsOutsideInterval(t *testing.T) {
	root := buildTree()
	e := NewEngine()
	entry := Entry{Steps: []Step{
		{Op: OpRename, Where: "old-name", Dst: "new-name", When: Interval{From: "2022-01-01"}},
	}}

	require.NoError(t, e.Apply(root, entry, "2021-01-01"))
	assert.Equal(t, "old-name", root.Children[0].Name, "a step outside its interval must not apply")
}

func TestEngine_Apply_MissingTargetIsSkippedNotError(t *testing.T) {
	root := buildTree()
	e := NewEngine()
	entry := Entry{Steps: []Step{
		{Op: OpRename, Where: "nonexistent", Dst: "x", When: Interval{From: "2020-01-01"}},
	}}

	assert.NoError(t, e.Apply(root, entry, "2021-01-01"))
}

func TestInterval_Contains(t *testing.T) {
	iv := Interval{From: "2020-01-01", To: "2021-01-01"}
	assert.False(t, iv.Contains("2019-12-31"))
	assert.True(t, iv.Contains("2020-06-01"))
	assert.False(t, iv.Contains("2021-01-01"), "To is exclusive")

	openEnded := Interval{From: "2020-01-01"}
	assert.True(t, openEnded.Contains("2099-01-01"))
}
