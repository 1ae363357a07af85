// Package tree defines ConfigTree, the canonical in-memory representation
// of a device configuration shared by every datastore.
package tree
