package engine

import (
	"fmt"

	"github.com/netconfd/confd/internal/rpcerr"
	"github.com/netconfd/confd/pkg/store"
)

// Lock claims datastore for sessionID, returning a lock-denied error if it
// is already held by a different session (spec.md §6).
func Lock(ds *store.Datastore, sessionID int) error {
	if ds.LockHolder != 0 && ds.LockHolder != sessionID {
		return rpcerr.LockDenied(fmt.Sprintf("%s is locked by session %d", ds.Name, ds.LockHolder))
	}
	ds.LockHolder = sessionID
	return nil
}

// Unlock releases datastore, returning an error if it is not held by
// sessionID (spec.md §6).
func Unlock(ds *store.Datastore, sessionID int) error {
	if ds.LockHolder != sessionID {
		return rpcerr.LockDenied(fmt.Sprintf("%s is not locked by session %d", ds.Name, sessionID))
	}
	ds.LockHolder = 0
	return nil
}

// OnSessionEnd releases any lock sessionID still holds on the datastores
// of set named in names (spec.md §6: a session's locks do not outlive it).
// Datastores not listed in names are left as they are.
func OnSessionEnd(set *store.Set, sessionID int, names []string) {
	for _, name := range names {
		ds := set.Get(name)
		if ds.LockHolder == sessionID {
			ds.LockHolder = 0
		}
	}
}

// CopyConfig copies src's tree into dst, refusing if dst is locked by a
// different session (spec.md §6).
func CopyConfig(set *store.Set, src, dst string, sessionID int) error {
	srcDS := set.Get(src)
	dstDS := set.Get(dst)
	if dstDS.LockHolder != 0 && dstDS.LockHolder != sessionID {
		return rpcerr.InUse(fmt.Sprintf("%s is locked by another session", dst))
	}
	dstDS.Tree = srcDS.Tree.Clone()
	dstDS.Dirty = true
	return nil
}

// DeleteConfig clears ds's tree to empty, refusing if it is the running
// datastore or is locked by a different session (spec.md §6).
func DeleteConfig(ds *store.Datastore, sessionID int) error {
	if ds.Name == store.Running {
		return rpcerr.OperationFailed("running cannot be deleted")
	}
	if ds.LockHolder != 0 && ds.LockHolder != sessionID {
		return rpcerr.InUse(fmt.Sprintf("%s is locked by another session", ds.Name))
	}
	ds.Tree = nil
	ds.Dirty = true
	return nil
}
