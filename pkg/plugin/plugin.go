// Package plugin implements the Plugin Transaction Bus (spec.md §4.C): an
// ordered registry of configuration plugins invoked through a fixed
// seven-phase lifecycle on every candidate-to-running transition. The shape
// follows the teacher's hive/merge/strategy.Strategy pattern — an optional-
// capability record where absent callbacks are simply skipped — generalized
// from "pick one strategy" to "invoke every registered plugin in order."
package plugin

import (
	"context"
	"fmt"
	"reflect"

	"github.com/netconfd/confd/internal/rpcerr"
	"github.com/netconfd/confd/pkg/tree"
)

// TxView is the per-transaction data a plugin callback observes: the diff
// vectors computed by pkg/tree plus the source and target trees (spec.md
// §4.A, §4.C).
type TxView struct {
	Source     *tree.Node
	Target     *tree.Node
	Added      []*tree.Node
	Deleted    []*tree.Node
	SrcChanged []tree.Pair
	TgtChanged []tree.Pair
}

// Descriptor is one registered plugin. Every phase callback is optional;
// a plugin that only cares about Commit leaves every other field nil, and
// the Bus skips it for those phases, the same way the teacher's Strategy
// interface treats an unimplemented method as "not applicable" rather than
// an error.
type Descriptor struct {
	Name string

	// Context is the plugin's own per-transaction state pointer, if it has
	// one. When set, the Bus captures its identity before and after every
	// Begin, Complete, and Commit callback and reports a fence violation if
	// the callback swapped it out from under itself (spec.md §4.C: "a
	// lightweight fence around untrusted extension code"). Reset and the
	// upgrade callbacks are not fenced.
	Context any

	Begin      func(ctx context.Context, tx *TxView) error
	Validate   func(ctx context.Context, tx *TxView) []rpcerr.Reply
	Complete   func(ctx context.Context, tx *TxView) error
	Commit     func(ctx context.Context, tx *TxView) error
	CommitDone func(ctx context.Context, tx *TxView)
	End        func(ctx context.Context, tx *TxView)
	Abort      func(ctx context.Context, tx *TxView)

	Reset            func(ctx context.Context) error
	DatastoreUpgrade func(ctx context.Context, datastore string, tgt *tree.Node) error
	// ModuleUpgrade fires for a single module whose stored revision differs
	// from the one compiled into this process. tgt is the startup tree
	// being replayed, so a callback backed by internal/changelog.Engine can
	// apply its declarative steps directly against it (spec.md §4.E).
	ModuleUpgrade func(ctx context.Context, module string, fromRevision, toRevision string, tgt *tree.Node) error
}

// Registry holds plugins in registration order. Order matters: spec.md
// §4.C requires every phase except Abort to run in registration order, and
// Abort to unwind in reverse so a plugin never sees an Abort before a
// plugin that began after it.
type Registry struct {
	plugins []*Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry { return &Registry{} }

// Register appends a plugin to the end of the registration order.
func (r *Registry) Register(d *Descriptor) {
	r.plugins = append(r.plugins, d)
}

// InOrder returns plugins in registration order.
func (r *Registry) InOrder() []*Descriptor {
	out := make([]*Descriptor, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// ReverseOrder returns plugins in reverse registration order.
func (r *Registry) ReverseOrder() []*Descriptor {
	out := make([]*Descriptor, len(r.plugins))
	for i, d := range r.plugins {
		out[len(r.plugins)-1-i] = d
	}
	return out
}

// fenceAddr returns v's pointer identity, or 0 if v holds no pointer-kind
// value. Descriptor.Context is typically nil for plugins that don't use it,
// in which case the fence check is skipped entirely.
func fenceAddr(v any) uintptr {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		return rv.Pointer()
	default:
		return 0
	}
}

// Bus drives the seven-phase plugin lifecycle over a Registry (spec.md
// §4.C). It holds no transaction state of its own; internal/engine calls
// each phase at the appropriate state transition and supplies the TxView.
type Bus struct {
	registry *Registry
}

// NewBus creates a Bus over registry.
func NewBus(registry *Registry) *Bus {
	return &Bus{registry: registry}
}

// Begin invokes every plugin's Begin callback in registration order,
// stopping at the first error (spec.md §4.C: Begin failure aborts the
// transaction before any Validate runs). It returns the number of plugins
// that successfully reached or passed Begin — a plugin skipped because it
// has no Begin callback still counts, since there was nothing for it to
// fail. The caller uses this count to restrict Abort to that prefix
// (spec.md §4.C: "the engine invokes abort(t) for every plugin that
// successfully reached or passed begin").
func (b *Bus) Begin(ctx context.Context, tx *TxView) (int, error) {
	reached := 0
	for _, d := range b.registry.InOrder() {
		if d.Begin == nil {
			reached++
			continue
		}
		before := fenceAddr(d.Context)
		if err := d.Begin(ctx, tx); err != nil {
			return reached, fmt.Errorf("plugin %s: begin: %w", d.Name, err)
		}
		if before != 0 && fenceAddr(d.Context) != before {
			return reached, fmt.Errorf("plugin %s: begin: context fence violated", d.Name)
		}
		reached++
	}
	return reached, nil
}

// Validate invokes every plugin's Validate callback in registration order
// and accumulates every reported error rather than stopping at the first,
// per spec.md §4.B's accumulate-all-errors requirement.
func (b *Bus) Validate(ctx context.Context, tx *TxView) []rpcerr.Reply {
	var errs []rpcerr.Reply
	for _, d := range b.registry.InOrder() {
		if d.Validate == nil {
			continue
		}
		errs = append(errs, d.Validate(ctx, tx)...)
	}
	return errs
}

// Complete invokes every plugin's Complete callback in registration order,
// stopping at the first error. Complete is the last chance to refuse a
// transaction before Commit begins making it durable (spec.md §4.C).
func (b *Bus) Complete(ctx context.Context, tx *TxView) error {
	for _, d := range b.registry.InOrder() {
		if d.Complete == nil {
			continue
		}
		before := fenceAddr(d.Context)
		if err := d.Complete(ctx, tx); err != nil {
			return fmt.Errorf("plugin %s: complete: %w", d.Name, err)
		}
		if before != 0 && fenceAddr(d.Context) != before {
			return fmt.Errorf("plugin %s: complete: context fence violated", d.Name)
		}
	}
	return nil
}

// Commit invokes every plugin's Commit callback in registration order. A
// failure here is fatal to the transaction (spec.md §4.C, §7 kind 2): the
// engine reports it as fatal without retrying Commit, and restoring running
// from a backup is left to the engine's caller.
func (b *Bus) Commit(ctx context.Context, tx *TxView) error {
	for _, d := range b.registry.InOrder() {
		if d.Commit == nil {
			continue
		}
		before := fenceAddr(d.Context)
		if err := d.Commit(ctx, tx); err != nil {
			return fmt.Errorf("plugin %s: commit: %w", d.Name, err)
		}
		if before != 0 && fenceAddr(d.Context) != before {
			return fmt.Errorf("plugin %s: commit: context fence violated", d.Name)
		}
	}
	return nil
}

// CommitDone notifies every plugin that Commit has succeeded across the
// whole bus. CommitDone cannot fail the transaction (spec.md §4.C): by this
// point running has already been replaced, so callbacks are best-effort
// notifications only.
func (b *Bus) CommitDone(ctx context.Context, tx *TxView) {
	for _, d := range b.registry.InOrder() {
		if d.CommitDone != nil {
			d.CommitDone(ctx, tx)
		}
	}
}

// End notifies every plugin that the transaction finished successfully, so
// long-lived per-transaction resources can be released. The engine calls End
// only after a successful commit; an abandoned transaction gets Abort
// instead.
func (b *Bus) End(ctx context.Context, tx *TxView) {
	for _, d := range b.registry.InOrder() {
		if d.End != nil {
			d.End(ctx, tx)
		}
	}
}

// Abort notifies every plugin that the transaction was abandoned, in
// reverse registration order, so a later-registered plugin (which may
// depend on an earlier one's state) unwinds first. A panic-free callback
// is the plugin's responsibility, not the Bus's.
func (b *Bus) Abort(ctx context.Context, tx *TxView) {
	b.AbortThrough(ctx, tx, len(b.registry.plugins))
}

// AbortThrough notifies, in reverse order, only the first n plugins in
// registration order — the prefix that successfully reached or passed
// Begin, as returned by Begin. A plugin whose Begin callback never ran
// because an earlier plugin's Begin failed must not receive Abort
// (spec.md §4.C); passing n = len(registry) aborts every plugin, which is
// correct once Begin has fully succeeded.
func (b *Bus) AbortThrough(ctx context.Context, tx *TxView, n int) {
	plugins := b.registry.InOrder()
	if n > len(plugins) {
		n = len(plugins)
	}
	if n < 0 {
		n = 0
	}
	for i := n - 1; i >= 0; i-- {
		if d := plugins[i]; d.Abort != nil {
			d.Abort(ctx, tx)
		}
	}
}

// ResetAll invokes every plugin's Reset callback in registration order,
// stopping at the first error. Neither discard-changes nor startup replay in
// this module calls it.
func (b *Bus) ResetAll(ctx context.Context) error {
	for _, d := range b.registry.InOrder() {
		if d.Reset == nil {
			continue
		}
		if err := d.Reset(ctx); err != nil {
			return fmt.Errorf("plugin %s: reset: %w", d.Name, err)
		}
	}
	return nil
}

// DatastoreUpgradeAll invokes every plugin's DatastoreUpgrade callback
// during startup replay of an older-version datastore (spec.md §5).
func (b *Bus) DatastoreUpgradeAll(ctx context.Context, datastore string, tgt *tree.Node) error {
	for _, d := range b.registry.InOrder() {
		if d.DatastoreUpgrade == nil {
			continue
		}
		if err := d.DatastoreUpgrade(ctx, datastore, tgt); err != nil {
			return fmt.Errorf("plugin %s: datastore-upgrade: %w", d.Name, err)
		}
	}
	return nil
}

// ModuleUpgradeAll invokes every plugin's ModuleUpgrade callback for a
// single module whose on-disk revision differs from its current revision,
// passing tgt (the startup tree being replayed) so a callback can mutate
// it in place (spec.md §5). Startup replay calls it for every module
// classified OTHER; a NOMATCH module triggers DatastoreUpgradeAll instead.
func (b *Bus) ModuleUpgradeAll(ctx context.Context, module, fromRevision, toRevision string, tgt *tree.Node) error {
	for _, d := range b.registry.InOrder() {
		if d.ModuleUpgrade == nil {
			continue
		}
		if err := d.ModuleUpgrade(ctx, module, fromRevision, toRevision, tgt); err != nil {
			return fmt.Errorf("plugin %s: module-upgrade: %w", d.Name, err)
		}
	}
	return nil
}
