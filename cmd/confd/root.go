// Command confd exposes the RPC-equivalent surface named in spec.md §6
// (edit-config, validate, commit, discard-changes, cancel-commit,
// copy-config, delete-config, lock, unlock) plus a startup subcommand for
// spec.md §4.E, as one subcommand per RunE the way the teacher's hivectl
// lays out cmd/hivectl/*.go: a rootCmd with persistent flags, and one
// newXCmd() constructor per file registered from init().
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/netconfd/confd/internal/changelog"
	"github.com/netconfd/confd/internal/config"
	"github.com/netconfd/confd/internal/confirm"
	"github.com/netconfd/confd/internal/engine"
	"github.com/netconfd/confd/internal/logging"
	"github.com/netconfd/confd/internal/treecodec"
	"github.com/netconfd/confd/pkg/plugin"
	"github.com/netconfd/confd/pkg/store"
)

var (
	verbose  bool
	quiet    bool
	jsonOut  bool
	dataDir  string
	sessionID int
	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "confd",
	Short:   "Configuration transaction core for a NETCONF-style backend",
	Long: `confd drives a device's candidate/running/startup/failsafe/tmp
datastores through the transaction engine described in spec.md: diff,
validate, plugin commit, and atomic install, plus startup replay and
confirmed-commit.`,
	Version: "0.1.0",
}

// App bundles the wiring every subcommand needs: the persisted datastore
// set, the plugin bus, the transaction engine, and the confirmed-commit
// manager, all built fresh per invocation from dataDir (this CLI is a
// short-lived process per RPC, not a long-running daemon).
type App struct {
	Stores     *store.Set
	Registry   *plugin.Registry
	Bus        *plugin.Bus
	Engine     *engine.Engine
	Confirm    *confirm.Manager
	FileStore  treecodec.FileStore
	Config     config.Options
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./confd-data", "Directory holding persisted datastore files")
	rootCmd.PersistentFlags().IntVar(&sessionID, "session", 1, "Client session id issuing this RPC")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a confd configuration options file")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildApp loads persisted datastores from dataDir and wires the engine.
// A real deployment registers plugins via the out-of-scope plugin-loading
// mechanism (spec.md §1); this CLI registers only the one built-in plugin
// the transaction core itself defines, the declarative changelog engine
// (spec.md §4.E.1), loaded from cfg.ChangelogPath if configured.
func buildApp() (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if err := logging.Init(logging.Options{Enabled: !quiet, Level: level}); err != nil {
		return nil, err
	}

	fs := treecodec.FileStore{Dir: dataDir}
	stores := store.NewSet()
	for _, name := range []string{store.Candidate, store.Running, store.Startup, store.Failsafe, store.Tmp} {
		t, err := fs.Load(name)
		if err != nil {
			return nil, err
		}
		stores.Get(name).Tree = t
	}

	entries, err := changelog.LoadEntries(cfg.ChangelogPath)
	if err != nil {
		return nil, err
	}
	registry := plugin.NewRegistry()
	registry.Register(changelog.NewPlugin(entries))
	bus := plugin.NewBus(registry)
	eng := engine.NewEngine(bus, nil)

	statePath := cfg.ConfirmStatePath
	if statePath == "" {
		statePath = dataDir + "/confirm-state.json"
	}
	confirmMgr := confirm.NewManager(eng, stores, store.SystemClock{}, statePath)

	return &App{
		Stores:    stores,
		Registry:  registry,
		Bus:       bus,
		Engine:    eng,
		Confirm:   confirmMgr,
		FileStore: fs,
		Config:    cfg,
	}, nil
}

// save persists a datastore's tree back to disk after a mutating command.
func (a *App) save(name string) error {
	ds := a.Stores.Get(name)
	if err := a.FileStore.Save(name, ds.Tree); err != nil {
		return err
	}
	ds.Dirty = false
	return nil
}

func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

func printJSONOrText(v any, text string) {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	printInfo("%s\n", text)
}
