package main

import (
	"github.com/spf13/cobra"

	"github.com/netconfd/confd/internal/engine"
)

func init() {
	rootCmd.AddCommand(newCopyConfigCmd())
}

func newCopyConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy-config <source> <target>",
		Short: "Copy one datastore's tree onto another (spec.md §6)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopyConfig(args[0], args[1])
		},
	}
}

func runCopyConfig(source, target string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	if err := engine.CopyConfig(app.Stores, source, target, sessionID); err != nil {
		printJSONOrText(err, "")
		return nil
	}
	if err := app.save(target); err != nil {
		return err
	}
	printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
	return nil
}
