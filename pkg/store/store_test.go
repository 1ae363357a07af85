package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet_SeedsCanonicalDatastores(t *testing.T) {
	s := NewSet()
	for _, name := range []string{Candidate, Running, Startup, Failsafe, Tmp} {
		ds := s.Get(name)
		require.NotNil(t, ds)
		assert.Equal(t, name, ds.Name)
		assert.False(t, ds.Dirty)
		assert.Zero(t, ds.LockHolder)
	}
}

func TestSet_GetCreatesOnFirstReference(t *testing.T) {
	s := NewSet()
	ds := s.Get("rollback-commit-7")
	assert.Equal(t, "rollback-commit-7", ds.Name)

	again := s.Get("rollback-commit-7")
	assert.Same(t, ds, again, "a second Get for the same name must return the same Datastore")
}

func TestSet_Remove(t *testing.T) {
	s := NewSet()
	s.Get("rollback-commit-1")
	s.Remove("rollback-commit-1")

	fresh := s.Get("rollback-commit-1")
	assert.False(t, fresh.Dirty, "Remove then Get must yield a brand new Datastore, not a stale one")
}

type fakeTimer struct {
	stopped bool
	reset   time.Duration
}

func (f *fakeTimer) Stop() bool { f.stopped = true; return true }
func (f *fakeTimer) Reset(d time.Duration) bool { f.reset = d; return true }

func TestSystemClock_AfterFuncFires(t *testing.T) {
	var c SystemClock
	done := make(chan struct{})
	timer := c.AfterFunc(time.Millisecond, func() { close(done) })
	defer timer.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc callback did not fire")
	}
}
