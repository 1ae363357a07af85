// Package failsafe implements the recovery path invoked when startup
// validation or a startup commit fails (spec.md §7 "Failsafe recovery").
// The four-step sequence — back up running, reset it, commit from the
// failsafe datastore, restore the backup and give up if that too fails —
// is modeled on the teacher's cmd/hivectl/merge.go default backup-before-
// mutate discipline and its api.go %w-wrapped step functions.
package failsafe

import (
	"context"
	"fmt"

	"github.com/netconfd/confd/internal/engine"
	"github.com/netconfd/confd/internal/logging"
	"github.com/netconfd/confd/pkg/store"
)

// Recover runs the failsafe sequence named in spec.md §7:
//  1. Copy running to tmp (backup).
//  2. Reset running to empty.
//  3. Commit with the failsafe datastore as the transaction's target,
//     replacing running.
//  4. On success, the system now runs on the failsafe config. On failure,
//     tmp is restored to running and a fatal error is returned; the caller
//     is expected to terminate the process (spec.md §7: "terminates with
//     a fatal log entry").
func Recover(ctx context.Context, eng *engine.Engine, stores *store.Set) error {
	running := stores.Get(store.Running)
	tmp := stores.Get(store.Tmp)
	failsafeDS := stores.Get(store.Failsafe)

	backup := running.Tree.Clone()
	tmp.Tree = backup
	tmp.Dirty = true

	running.Tree = nil
	running.Dirty = true

	if failsafeDS.Tree == nil {
		return restoreAndFail(running, tmp, fmt.Errorf("failsafe datastore is empty"))
	}

	_, outcome := eng.Commit(ctx, running.Tree, failsafeDS.Tree)
	if outcome.Kind != engine.OutcomeOk {
		var cause error
		if outcome.Kind == engine.OutcomeValidationFail {
			cause = fmt.Errorf("failsafe datastore failed validation: %v", outcome.Errors)
		} else {
			cause = outcome.Err
		}
		return restoreAndFail(running, tmp, cause)
	}

	running.Tree = failsafeDS.Tree
	running.Dirty = true
	logging.L.Error("startup failed; running now serves the failsafe configuration")
	return nil
}

// restoreAndFail puts backup back into running and returns a fatal,
// %w-wrapped error describing why failsafe itself could not be applied
// (spec.md §7: "restores tmp to running and terminates with a fatal log
// entry").
func restoreAndFail(running, tmp *store.Datastore, cause error) error {
	running.Tree = tmp.Tree
	running.Dirty = true
	err := fmt.Errorf("failsafe recovery failed, restored prior running: %w", cause)
	logging.L.Error("failsafe recovery failed", "error", err)
	return err
}
