package main

import (
	"github.com/spf13/cobra"

	"github.com/netconfd/confd/internal/engine"
	"github.com/netconfd/confd/pkg/store"
)

func init() {
	rootCmd.AddCommand(newDiscardChangesCmd())
}

func newDiscardChangesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard-changes",
		Short: "Copy running to candidate, clearing candidate's dirty bit (spec.md §6)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscardChanges()
		},
	}
}

func runDiscardChanges() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	if err := engine.CopyConfig(app.Stores, store.Running, store.Candidate, sessionID); err != nil {
		printJSONOrText(err, "")
		return nil
	}
	app.Stores.Get(store.Candidate).Dirty = false
	if err := app.save(store.Candidate); err != nil {
		return err
	}
	printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
	return nil
}
