package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/netconfd/confd/pkg/store"
)

var cancelPersistID string

func init() {
	cmd := newCancelCommitCmd()
	cmd.Flags().StringVar(&cancelPersistID, "persist-id", "", "Persist token of the confirmed commit to cancel")
	rootCmd.AddCommand(cmd)
}

func newCancelCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-commit",
		Short: "Trigger a confirmed commit's rollback immediately (spec.md §6)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancelCommit()
		},
	}
}

func runCancelCommit() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	var persistID *string
	if cancelPersistID != "" {
		persistID = &cancelPersistID
	}
	if err := app.Confirm.CancelCommit(context.Background(), persistID); err != nil {
		printJSONOrText(err, "")
		return nil
	}
	if err := app.save(store.Running); err != nil {
		return err
	}
	printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
	return nil
}
