// Package treecodec is a minimal JSON stand-in for the out-of-scope
// XML/JSON tree parser and serializer named in spec.md §1 ("consumed as
// Tree operations"). It exists only so cmd/confd has something concrete to
// load and save datastore files against; it is not a claim that this is
// the production wire format, the same way internal/config's JSON loader
// is a boundary detail rather than domain logic.
package treecodec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/netconfd/confd/pkg/store"
	"github.com/netconfd/confd/pkg/tree"
)

// wireNode is tree.Node's on-disk shape; Spec and Flags are runtime-only
// and are not persisted.
type wireNode struct {
	Kind      tree.Kind   `json:"kind"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace,omitempty"`
	Body      string      `json:"body,omitempty"`
	LeafList  bool        `json:"leaf_list,omitempty"`
	Children  []*wireNode `json:"children,omitempty"`
}

func toWire(n *tree.Node) *wireNode {
	if n == nil {
		return nil
	}
	w := &wireNode{
		Kind:      n.Kind,
		Name:      n.Name,
		Namespace: n.Namespace,
		Body:      n.Body,
		LeafList:  n.LeafList,
	}
	for _, c := range n.Children {
		w.Children = append(w.Children, toWire(c))
	}
	return w
}

func fromWire(w *wireNode) *tree.Node {
	if w == nil {
		return nil
	}
	n := &tree.Node{
		Kind:      w.Kind,
		Name:      w.Name,
		Namespace: w.Namespace,
		Body:      w.Body,
		LeafList:  w.LeafList,
	}
	for _, c := range w.Children {
		n.Children = append(n.Children, fromWire(c))
	}
	return n
}

// Marshal renders n as JSON.
func Marshal(n *tree.Node) ([]byte, error) {
	return json.MarshalIndent(toWire(n), "", "  ")
}

// Unmarshal parses JSON produced by Marshal.
func Unmarshal(data []byte) (*tree.Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(&w), nil
}

// FileStore implements store.DatastoreStore backed by one JSON file per
// datastore name under Dir, following the persisted-state layout named in
// spec.md §6 ("one directory... one file each").
type FileStore struct {
	Dir string
}

func (f FileStore) path(name string) string {
	return filepath.Join(f.Dir, name+".json")
}

// Load reads and parses the named datastore's file. A missing file yields
// a nil tree, not an error, mirroring an empty datastore.
func (f FileStore) Load(name string) (*tree.Node, error) {
	data, err := os.ReadFile(f.path(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return Unmarshal(data)
}

// Save writes t to the named datastore's file, creating Dir if needed.
func (f FileStore) Save(name string, t *tree.Node) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", f.Dir, err)
	}
	data, err := Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(f.path(name), data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Copy duplicates src's file onto dst.
func (f FileStore) Copy(src, dst string) error {
	t, err := f.Load(src)
	if err != nil {
		return err
	}
	return f.Save(dst, t)
}

// Delete removes the named datastore's file, if present.
func (f FileStore) Delete(name string) error {
	err := os.Remove(f.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the named datastore has a persisted file.
func (f FileStore) Exists(name string) bool {
	_, err := os.Stat(f.path(name))
	return err == nil
}

var _ store.DatastoreStore = FileStore{}
