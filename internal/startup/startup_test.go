package startup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netconfd/confd/internal/engine"
	"github.com/netconfd/confd/pkg/plugin"
	"github.com/netconfd/confd/pkg/store"
	"github.com/netconfd/confd/pkg/tree"
)

func TestCompareModstate_Classifies(t *testing.T) {
	stored := []store.ModstateEntry{
		{Module: "urn:known-same", AuthorRevision: "2020-01-01"},
		{Module: "urn:known-diff", AuthorRevision: "2020-01-01"},
		{Module: "urn:unknown", AuthorRevision: "2020-01-01"},
	}
	current := map[string]string{
		"urn:known-same": "2020-01-01",
		"urn:known-diff": "2021-06-01",
	}

	diffs := CompareModstate(stored, current)
	require.Len(t, diffs, 3)
	assert.Equal(t, store.ModstateNone, diffs[0].Status)
	assert.Equal(t, store.ModstateOther, diffs[1].Status)
	assert.Equal(t, store.ModstateNomatch, diffs[2].Status)
}

func TestReplay_RunsModuleUpgradeForOtherStatus(t *testing.T) {
	reg := plugin.NewRegistry()
	var upgraded []string
	reg.Register(&plugin.Descriptor{
		Name: "migrator",
		ModuleUpgrade: func(ctx context.Context, module, from, to string, tgt *tree.Node) error {
			upgraded = append(upgraded, module)
			return nil
		},
	})
	bus := plugin.NewBus(reg)
	eng := engine.NewEngine(bus, nil)

	startupDS := &store.Datastore{
		Name: store.Startup,
		Tree: tree.NewElement("urn:t", "A"),
		ModuleState: []store.ModstateEntry{
			{Module: "urn:t", AuthorRevision: "2020-01-01"},
		},
	}
	current := map[string]string{"urn:t": "2021-01-01"}

	_, outcome, diffs, err := Replay(context.Background(), eng, bus, startupDS, current)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, store.ModstateOther, diffs[0].Status)
	assert.Equal(t, []string{"urn:t"}, upgraded)
	assert.Equal(t, engine.OutcomeOk, outcome.Kind)
}

func TestReplay_RunsDatastoreUpgradeOnNomatch(t *testing.T) {
	reg := plugin.NewRegistry()
	dsUpgraded := false
	reg.Register(&plugin.Descriptor{
		Name: "migrator",
		DatastoreUpgrade: func(ctx context.Context, datastore string, tgt *tree.Node) error {
			dsUpgraded = true
			return nil
		},
	})
	bus := plugin.NewBus(reg)
	eng := engine.NewEngine(bus, nil)

	startupDS := &store.Datastore{
		Name: store.Startup,
		Tree: tree.NewElement("urn:t", "A"),
		ModuleState: []store.ModstateEntry{
			{Module: "urn:unknown", AuthorRevision: "2020-01-01"},
		},
	}

	_, _, _, err := Replay(context.Background(), eng, bus, startupDS, map[string]string{})
	require.NoError(t, err)
	assert.True(t, dsUpgraded)
}

func TestReplay_NilTreeIsError(t *testing.T) {
	bus := plugin.NewBus(plugin.NewRegistry())
	eng := engine.NewEngine(bus, nil)
	startupDS := &store.Datastore{Name: store.Startup}

	_, _, _, err := Replay(context.Background(), eng, bus, startupDS, nil)
	require.Error(t, err)
}

func TestStartupCommon_AllAdded(t *testing.T) {
	startupTree := tree.NewElement("urn:t", "A")
	startupTree.AddChild(tree.NewLeaf("urn:t", "b", "1"))

	result, err := StartupCommon(startupTree)
	require.NoError(t, err)
	assert.Len(t, result.Added, 1)
	assert.Empty(t, result.Deleted)
}
