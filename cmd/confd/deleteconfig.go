package main

import (
	"github.com/spf13/cobra"

	"github.com/netconfd/confd/internal/engine"
)

func init() {
	rootCmd.AddCommand(newDeleteConfigCmd())
}

func newDeleteConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-config <target>",
		Short: "Clear a datastore's tree to empty (spec.md §6)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteConfig(args[0])
		},
	}
}

func runDeleteConfig(target string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	ds := app.Stores.Get(target)
	if err := engine.DeleteConfig(ds, sessionID); err != nil {
		printJSONOrText(err, "")
		return nil
	}
	if err := app.save(target); err != nil {
		return err
	}
	printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
	return nil
}
