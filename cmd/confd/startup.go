package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/netconfd/confd/internal/engine"
	"github.com/netconfd/confd/internal/failsafe"
	"github.com/netconfd/confd/internal/logging"
	"github.com/netconfd/confd/internal/startup"
	"github.com/netconfd/confd/pkg/store"
)

func init() {
	rootCmd.AddCommand(newStartupCmd())
}

func newStartupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "startup",
		Short: "Replay the startup datastore into running (spec.md §4.E)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartup()
		},
	}
}

func runStartup() error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	startupDS := app.Stores.Get(store.Startup)
	if startupDS.Tree == nil {
		printError("startup datastore is empty; nothing to replay\n")
		return nil
	}

	ctx := context.Background()
	currentModules := currentModuleRevisions(startupDS)

	_, outcome, diffs, err := startup.Replay(ctx, app.Engine, app.Bus, startupDS, currentModules)
	if err != nil {
		logging.L.Error("startup replay failed", "error", err)
		if ferr := failsafe.Recover(ctx, app.Engine, app.Stores); ferr != nil {
			return ferr
		}
		return app.save(store.Running)
	}

	switch outcome.Kind {
	case engine.OutcomeOk:
		app.Stores.Get(store.Running).Tree = startupDS.Tree
		if err := app.save(store.Running); err != nil {
			return err
		}
		printJSONOrText(map[string]any{"result": "ok", "modstate": diffs}, "<ok/>")
		return nil
	default:
		logging.L.Error("startup validation failed; engaging failsafe")
		if ferr := failsafe.Recover(ctx, app.Engine, app.Stores); ferr != nil {
			return ferr
		}
		return app.save(store.Running)
	}
}

// currentModuleRevisions is a placeholder for the revisions compiled into
// this process; a real deployment sources this from yangspec.YangSpec.
// It returns an empty map, so every module recorded in the startup
// datastore's module state is classified NOMATCH: the datastore upgrade
// hook runs whenever any module is recorded, and no module-specific upgrade
// runs. The datastore files buildApp loads carry no module-state record, so
// from this CLI neither hook fires.
func currentModuleRevisions(ds *store.Datastore) map[string]string {
	return map[string]string{}
}
