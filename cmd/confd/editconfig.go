package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/netconfd/confd/internal/treecodec"
)

var editOperation string

func init() {
	cmd := newEditConfigCmd()
	cmd.Flags().StringVar(&editOperation, "operation", "replace", "merge or replace")
	rootCmd.AddCommand(cmd)
}

func newEditConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit-config <target> <config-file>",
		Short: "Mutate a datastore from a JSON config document (spec.md §6)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditConfig(args[0], args[1])
		},
	}
}

func runEditConfig(target, file string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	ds := app.Stores.Get(target)
	if ds.LockHolder != 0 && ds.LockHolder != sessionID {
		printError("%s is locked by another session\n", target)
		return nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	incoming, err := treecodec.Unmarshal(data)
	if err != nil {
		return err
	}

	switch editOperation {
	case "replace":
		ds.Tree = incoming
	case "merge":
		if ds.Tree == nil {
			ds.Tree = incoming
		} else if incoming != nil {
			ds.Tree.Children = append(ds.Tree.Children, incoming.Children...)
		}
	default:
		printError("unknown operation %q\n", editOperation)
		return nil
	}
	ds.Dirty = true

	if err := app.save(target); err != nil {
		return err
	}
	printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
	return nil
}
