package changelog

import (
	"context"
	"fmt"

	"github.com/netconfd/confd/pkg/plugin"
	"github.com/netconfd/confd/pkg/tree"
)

// NewPlugin builds the built-in plugin that drives Engine.Apply from the
// startup replay sequence: for a module whose stored revision no longer
// matches the one compiled into this process, it applies every entry
// recorded for that module's namespace against the startup tree being
// replayed (spec.md §4.E: "the declarative XML Changelog engine is one
// such [module-specific upgrade] callback"). Entries for namespaces other
// than the one being upgraded are ignored.
func NewPlugin(entries []Entry) *plugin.Descriptor {
	eng := NewEngine()
	return &plugin.Descriptor{
		Name: "changelog",
		ModuleUpgrade: func(ctx context.Context, module, fromRevision, toRevision string, tgt *tree.Node) error {
			for _, entry := range entries {
				if entry.Namespace != module {
					continue
				}
				if err := eng.Apply(tgt, entry, toRevision); err != nil {
					return fmt.Errorf("changelog upgrade of %s: %w", module, err)
				}
			}
			return nil
		},
	}
}
