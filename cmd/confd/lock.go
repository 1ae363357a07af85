package main

import (
	"github.com/spf13/cobra"

	"github.com/netconfd/confd/internal/engine"
)

func init() {
	rootCmd.AddCommand(newLockCmd())
	rootCmd.AddCommand(newUnlockCmd())
}

func newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <target>",
		Short: "Claim a datastore's advisory lock for this session (spec.md §6)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLock(args[0])
		},
	}
}

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <target>",
		Short: "Release a datastore's advisory lock held by this session (spec.md §6)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(args[0])
		},
	}
}

func runLock(target string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	ds := app.Stores.Get(target)
	if err := engine.Lock(ds, sessionID); err != nil {
		printJSONOrText(err, "")
		return nil
	}
	printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
	return nil
}

func runUnlock(target string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	ds := app.Stores.Get(target)
	if err := engine.Unlock(ds, sessionID); err != nil {
		printJSONOrText(err, "")
		return nil
	}
	printJSONOrText(map[string]string{"result": "ok"}, "<ok/>")
	return nil
}
