package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netconfd/confd/internal/rpcerr"
	"github.com/netconfd/confd/pkg/plugin"
	"github.com/netconfd/confd/pkg/store"
	"github.com/netconfd/confd/pkg/tree"
)

func TestEngine_Commit_HappyPathReachesInstalledThenIdle(t *testing.T) {
	reg := plugin.NewRegistry()
	var phases []string
	reg.Register(&plugin.Descriptor{
		Name: "tracker",
		Begin: func(ctx context.Context, tx *plugin.TxView) error {
			phases = append(phases, "begin")
			return nil
		},
		Validate: func(ctx context.Context, tx *plugin.TxView) []rpcerr.Reply {
			phases = append(phases, "validate")
			return nil
		},
		Complete: func(ctx context.Context, tx *plugin.TxView) error {
			phases = append(phases, "complete")
			return nil
		},
		Commit: func(ctx context.Context, tx *plugin.TxView) error {
			phases = append(phases, "commit")
			return nil
		},
		CommitDone: func(ctx context.Context, tx *plugin.TxView) { phases = append(phases, "commit_done") },
		End:        func(ctx context.Context, tx *plugin.TxView) { phases = append(phases, "end") },
	})

	eng := NewEngine(plugin.NewBus(reg), nil)

	source := tree.NewElement("urn:t", "A")
	target := tree.NewElement("urn:t", "A")
	target.AddChild(tree.NewLeaf("urn:t", "b", "1"))

	tx, outcome := eng.Commit(context.Background(), source, target)
	require.Equal(t, OutcomeOk, outcome.Kind)
	assert.Equal(t, StateIdle, tx.State(), "a fully completed transaction returns to idle")
	assert.Equal(t, []string{"begin", "validate", "complete", "commit", "commit_done", "end"}, phases)
}

func TestEngine_Commit_ValidateFailureAborts(t *testing.T) {
	reg := plugin.NewRegistry()
	aborted := false
	reg.Register(&plugin.Descriptor{
		Name: "refuser",
		Validate: func(ctx context.Context, tx *plugin.TxView) []rpcerr.Reply {
			return []rpcerr.Reply{rpcerr.InvalidValue("/b", "nope")}
		},
		Abort: func(ctx context.Context, tx *plugin.TxView) { aborted = true },
	})

	eng := NewEngine(plugin.NewBus(reg), nil)
	source := tree.NewElement("urn:t", "A")
	target := tree.NewElement("urn:t", "A")
	target.AddChild(tree.NewLeaf("urn:t", "b", "1"))

	tx, outcome := eng.Commit(context.Background(), source, target)
	require.Equal(t, OutcomeValidationFail, outcome.Kind)
	require.Len(t, outcome.Errors, 1)
	assert.True(t, aborted, "a validation failure must invoke Abort on every plugin")
	assert.Equal(t, StateIdle, tx.State(), "an aborted transaction still returns to idle")
}

func TestEngine_Commit_BeginFailureIsFatal(t *testing.T) {
	reg := plugin.NewRegistry()
	aborted := false
	reg.Register(&plugin.Descriptor{
		Name:  "failer",
		Begin: func(ctx context.Context, tx *plugin.TxView) error { return errors.New("disk full") },
		Abort: func(ctx context.Context, tx *plugin.TxView) { aborted = true },
	})

	eng := NewEngine(plugin.NewBus(reg), nil)
	source := tree.NewElement("urn:t", "A")
	target := tree.NewElement("urn:t", "A")

	_, outcome := eng.Commit(context.Background(), source, target)
	require.Equal(t, OutcomeFatal, outcome.Kind)
	assert.False(t, aborted, "a plugin whose own Begin failed never successfully reached begin, so it must not receive Abort")
}

func TestEngine_Commit_BeginFailureOnlyAbortsPluginsThatReachedBegin(t *testing.T) {
	reg := plugin.NewRegistry()
	var aborted []string
	reg.Register(&plugin.Descriptor{
		Name:  "first",
		Begin: func(ctx context.Context, tx *plugin.TxView) error { return nil },
		Abort: func(ctx context.Context, tx *plugin.TxView) { aborted = append(aborted, "first") },
	})
	reg.Register(&plugin.Descriptor{
		Name:  "second",
		Begin: func(ctx context.Context, tx *plugin.TxView) error { return errors.New("disk full") },
		Abort: func(ctx context.Context, tx *plugin.TxView) { aborted = append(aborted, "second") },
	})
	reg.Register(&plugin.Descriptor{
		Name:  "third",
		Begin: func(ctx context.Context, tx *plugin.TxView) error { return nil },
		Abort: func(ctx context.Context, tx *plugin.TxView) { aborted = append(aborted, "third") },
	})

	eng := NewEngine(plugin.NewBus(reg), nil)
	source := tree.NewElement("urn:t", "A")
	target := tree.NewElement("urn:t", "A")

	_, outcome := eng.Commit(context.Background(), source, target)
	require.Equal(t, OutcomeFatal, outcome.Kind)
	assert.Equal(t, []string{"first"}, aborted, "only the plugin preceding the one whose Begin failed reached begin")
}

func TestTransaction_InvalidTransitionRejected(t *testing.T) {
	tx := &Transaction{state: StateIdle}
	err := tx.transition(StateCommitted)
	require.Error(t, err)
	assert.Equal(t, StateIdle, tx.State(), "a rejected transition must not change state")
}

func TestLockUnlock(t *testing.T) {
	ds := &store.Datastore{Name: store.Candidate}

	require.NoError(t, Lock(ds, 1))
	assert.Equal(t, 1, ds.LockHolder)

	err := Lock(ds, 2)
	require.Error(t, err)

	require.NoError(t, Unlock(ds, 1))
	assert.Zero(t, ds.LockHolder)
}

func TestDeleteConfig_RefusesRunning(t *testing.T) {
	ds := &store.Datastore{Name: store.Running, Tree: tree.NewElement("urn:t", "A")}
	err := DeleteConfig(ds, 1)
	require.Error(t, err)
	assert.NotNil(t, ds.Tree)
}

func TestCopyConfig_ClonesTree(t *testing.T) {
	set := store.NewSet()
	set.Get(store.Running).Tree = tree.NewElement("urn:t", "A")

	require.NoError(t, CopyConfig(set, store.Running, store.Candidate, 0))
	assert.NotSame(t, set.Get(store.Running).Tree, set.Get(store.Candidate).Tree)
	assert.Equal(t, set.Get(store.Running).Tree.Name, set.Get(store.Candidate).Tree.Name)
}
