package treecodec

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netconfd/confd/pkg/tree"
)

func buildTree() *tree.Node {
	root := tree.NewElement("urn:t", "A")
	root.AddChild(tree.NewLeaf("urn:t", "b", "1"))
	list := tree.NewElement("urn:t", "entry")
	list.AddChild(tree.NewLeafListItem("urn:t", "entry", "x"))
	root.AddChild(list)
	return root
}

func TestMarshalUnmarshal_RoundTrips(t *testing.T) {
	original := buildTree()
	data, err := Marshal(original)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, original.Name, decoded.Name)
	assert.Equal(t, original.Namespace, decoded.Namespace)
	require.Len(t, decoded.Children, 2)
	assert.Equal(t, "1", decoded.Children[0].Body)
}

func TestFileStore_SaveLoadRoundTrips(t *testing.T) {
	fs := FileStore{Dir: t.TempDir()}
	original := buildTree()

	require.NoError(t, fs.Save("running", original))
	assert.True(t, fs.Exists("running"))

	loaded, err := fs.Load("running")
	require.NoError(t, err)
	assert.Equal(t, original.Name, loaded.Name)
	require.Len(t, loaded.Children, 2)
}

func TestFileStore_LoadMissingYieldsNilNotError(t *testing.T) {
	fs := FileStore{Dir: t.TempDir()}
	loaded, err := fs.Load("candidate")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileStore_CopyDuplicatesFile(t *testing.T) {
	fs := FileStore{Dir: t.TempDir()}
	require.NoError(t, fs.Save("running", buildTree()))

	require.NoError(t, fs.Copy("running", "candidate"))
	assert.True(t, fs.Exists("candidate"))

	loaded, err := fs.Load("candidate")
	require.NoError(t, err)
	require.Len(t, loaded.Children, 2)
}

func TestFileStore_Delete(t *testing.T) {
	fs := FileStore{Dir: t.TempDir()}
	require.NoError(t, fs.Save("tmp", buildTree()))
	require.NoError(t, fs.Delete("tmp"))
	assert.False(t, fs.Exists("tmp"))
	require.NoError(t, fs.Delete("tmp"), "deleting an absent file must not error")
}

func TestFileStore_DirIsJoinedCorrectly(t *testing.T) {
	dir := t.TempDir()
	fs := FileStore{Dir: dir}
	require.NoError(t, fs.Save("startup", buildTree()))
	assert.FileExists(t, filepath.Join(dir, "startup.json"))
}
