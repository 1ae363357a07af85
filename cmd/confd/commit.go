package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/netconfd/confd/internal/engine"
	"github.com/netconfd/confd/internal/rpcerr"
	"github.com/netconfd/confd/pkg/store"
	"github.com/netconfd/confd/pkg/tree"
)

var (
	commitConfirmed      bool
	commitConfirmTimeout int
	commitPersist        string
	commitPersistID      string
)

func init() {
	cmd := newCommitCmd()
	cmd.Flags().BoolVar(&commitConfirmed, "confirmed", false, "Arm a confirmed-commit rollback window")
	cmd.Flags().IntVar(&commitConfirmTimeout, "confirm-timeout", 600, "Seconds before an unconfirmed commit rolls back")
	cmd.Flags().StringVar(&commitPersist, "persist", "", "Opaque token allowing confirmation from another session")
	cmd.Flags().StringVar(&commitPersistID, "persist-id", "", "Persist token of the confirmed commit this commit confirms")
	rootCmd.AddCommand(cmd)
}

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Install candidate as running (spec.md §4.D, §4.F)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit()
		},
	}
}

func runCommit() error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	running := app.Stores.Get(store.Running)
	candidate := app.Stores.Get(store.Candidate)

	if running.LockHolder != 0 && running.LockHolder != sessionID {
		printJSONOrText(rpcerr.InUse(fmt.Sprintf("running is locked by session %d", running.LockHolder)), "")
		return nil
	}
	if commitConfirmed && commitConfirmTimeout <= 0 {
		printJSONOrText(rpcerr.InvalidValue("/commit/confirm-timeout", "confirm-timeout must be positive"), "")
		return nil
	}

	previousRunning := running.Tree.Clone()

	_, outcome := app.Engine.Commit(context.Background(), running.Tree, candidate.Tree)
	switch outcome.Kind {
	case engine.OutcomeValidationFail:
		printJSONOrText(outcome.Errors, "")
		if !jsonOut {
			for _, e := range outcome.Errors {
				printError("%s\n", e.Error())
			}
		}
		return nil
	case engine.OutcomeFatal:
		printJSONOrText(rpcerr.OperationFailed(outcome.Err.Error()), "")
		return nil
	}

	running.Tree = candidate.Tree
	running.Dirty = true
	candidate.Dirty = false
	if err := app.save(store.Running); err != nil {
		return err
	}

	sessionKey := fmt.Sprintf("%d", sessionID)
	if err := reconcileConfirmedCommit(app, sessionKey, previousRunning); err != nil {
		printJSONOrText(err, "")
		return nil
	}

	printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
	return nil
}

// reconcileConfirmedCommit applies spec.md §4.F's confirmed-commit state
// transitions around an otherwise-successful commit: arming a new window,
// extending one, or confirming (and dropping) an active one.
func reconcileConfirmedCommit(app *App, sessionKey string, previousRunning *tree.Node) error {
	var persistToken *string
	if commitPersist != "" {
		persistToken = &commitPersist
	}
	var persistID *string
	if commitPersistID != "" {
		persistID = &commitPersistID
	}

	active := app.Confirm.Active()
	switch {
	case commitConfirmed && active:
		return app.Confirm.Confirm(sessionKey, persistID, true, time.Duration(commitConfirmTimeout)*time.Second)
	case commitConfirmed:
		return app.Confirm.BeginConfirmed(sessionKey, persistToken, time.Duration(commitConfirmTimeout)*time.Second, previousRunning)
	case active:
		return app.Confirm.Confirm(sessionKey, persistID, false, 0)
	default:
		return nil
	}
}
