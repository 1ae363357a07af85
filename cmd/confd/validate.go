package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/netconfd/confd/pkg/store"
)

func init() {
	rootCmd.AddCommand(newValidateCmd())
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [source]",
		Short: "Run the validate_common pipeline without committing (spec.md §4.D)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := store.Candidate
			if len(args) == 1 {
				source = args[0]
			}
			return runValidate(source)
		},
	}
}

func runValidate(source string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	running := app.Stores.Get(store.Running)
	target := app.Stores.Get(source)

	errs := app.Engine.ValidateOnly(context.Background(), running.Tree, target.Tree)
	if len(errs) == 0 {
		printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
		return nil
	}
	printJSONOrText(errs, "")
	if !jsonOut {
		for _, e := range errs {
			printError("%s\n", e.Error())
		}
	}
	return nil
}
