// Package startup implements the Startup & Upgrade sequence (spec.md §5):
// loading the startup datastore into running at process start, including
// per-module revision comparison and the upgrade hooks that fire when a
// stored module's revision no longer matches the revision compiled into
// the running process. Grounded on the same forward-only, step-numbered
// sequence as the teacher's hive/tx.Manager protocol, generalized from a
// single Begin/Commit pair to the six-step replay spec.md §5 names.
package startup

import (
	"context"
	"fmt"

	"github.com/netconfd/confd/internal/engine"
	"github.com/netconfd/confd/pkg/plugin"
	"github.com/netconfd/confd/pkg/store"
	"github.com/netconfd/confd/pkg/tree"
)

// ModstateDiff compares one module's on-disk (author) revision against the
// revision compiled into this process (current), classifying it per
// spec.md §5.
type ModstateDiff struct {
	Module          string
	AuthorRevision  string
	CurrentRevision string
	Status          store.ModstateStatus
}

// CompareModstate classifies every module recorded in the startup
// datastore against the revisions this process currently knows about.
// Status is NONE when the revisions match exactly, OTHER when the module
// is known but the revision differs, and NOMATCH when the module is not
// known to this process at all (spec.md §5).
func CompareModstate(stored []store.ModstateEntry, current map[string]string) []ModstateDiff {
	diffs := make([]ModstateDiff, 0, len(stored))
	for _, entry := range stored {
		currentRev, known := current[entry.Module]
		d := ModstateDiff{Module: entry.Module, AuthorRevision: entry.AuthorRevision}
		switch {
		case !known:
			d.Status = store.ModstateNomatch
		case currentRev != entry.AuthorRevision:
			d.CurrentRevision = currentRev
			d.Status = store.ModstateOther
		default:
			d.CurrentRevision = currentRev
			d.Status = store.ModstateNone
		}
		diffs = append(diffs, d)
	}
	return diffs
}

// Replay runs the six-step startup sequence named in spec.md §5:
//  1. Load the startup datastore's tree.
//  2. Compare its recorded module state against this process's modules.
//  3. Run ModuleUpgrade for every module whose revision differs (OTHER),
//     and DatastoreUpgrade once if any module is unrecognized (NOMATCH).
//  4. Diff an empty source against the startup tree as target, giving an
//     all-ADD vector, so plugins see the same Begin/Validate/Complete shape as an
//     ordinary commit (spec.md §5: "startup replay reuses the transaction
//     machinery with an empty source").
//  5. Commit the replayed tree into running via the normal Engine.Commit.
//  6. Report the outcome; a validation failure at startup is fatal to
//     process start (spec.md §5), unlike an ordinary edit-config.
func Replay(ctx context.Context, eng *engine.Engine, bus *plugin.Bus, startupDS *store.Datastore, currentModules map[string]string) (*engine.Transaction, engine.Outcome, []ModstateDiff, error) {
	if startupDS.Tree == nil {
		return nil, engine.Outcome{}, nil, fmt.Errorf("startup datastore %s has no stored tree", startupDS.Name)
	}

	diffs := CompareModstate(startupDS.ModuleState, currentModules)

	var anyNomatch bool
	for _, d := range diffs {
		switch d.Status {
		case store.ModstateNomatch:
			anyNomatch = true
		case store.ModstateOther:
			if err := bus.ModuleUpgradeAll(ctx, d.Module, d.AuthorRevision, d.CurrentRevision, startupDS.Tree); err != nil {
				return nil, engine.Outcome{}, diffs, fmt.Errorf("module upgrade %s: %w", d.Module, err)
			}
		}
	}
	if anyNomatch {
		if err := bus.DatastoreUpgradeAll(ctx, startupDS.Name, startupDS.Tree); err != nil {
			return nil, engine.Outcome{}, diffs, fmt.Errorf("datastore upgrade: %w", err)
		}
	}

	empty := tree.NewElement(startupDS.Tree.Namespace, startupDS.Tree.Name)
	tx, outcome := eng.Commit(ctx, empty, startupDS.Tree)
	return tx, outcome, diffs, nil
}

// StartupCommon computes the all-ADD diff vector startup replay presents
// to plugins: every node in the startup tree, since there is no prior
// running configuration to compare against (spec.md §5).
func StartupCommon(startupTree *tree.Node) (tree.Result, error) {
	empty := tree.NewElement(startupTree.Namespace, startupTree.Name)
	return tree.Diff(empty, startupTree)
}
