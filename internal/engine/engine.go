// Package engine implements the Transaction Engine (spec.md §4.D): the
// state machine that drives a candidate-to-running transition through the
// Plugin Transaction Bus, and the companion lock/copy/delete RPCs that
// share its locking rules. The sequence-and-flush discipline — advance a
// small state field step by step, and only ever move forward except on a
// well-defined abort path — follows the teacher's hive/tx.Manager
// Begin/Commit/Rollback protocol, generalized from "one flush" to "seven
// named phases driven through a plugin bus."
package engine

import (
	"context"
	"fmt"

	"github.com/netconfd/confd/internal/rpcerr"
	"github.com/netconfd/confd/pkg/plugin"
	"github.com/netconfd/confd/pkg/tree"
	"github.com/netconfd/confd/pkg/validator"
	"github.com/netconfd/confd/pkg/yangspec"
)

// State is a node in the transaction state machine (spec.md §4.D).
type State int

const (
	StateIdle State = iota
	StateOpen
	StateValidated
	StateReady
	StateCommitted
	StateInstalled
	StateAborting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateValidated:
		return "validated"
	case StateReady:
		return "ready"
	case StateCommitted:
		return "committed"
	case StateInstalled:
		return "installed"
	case StateAborting:
		return "aborting"
	default:
		return "unknown"
	}
}

// valid forward edges of the state machine; StateAborting is reachable
// from every state from StateOpen through StateCommitted and always leads
// back to StateIdle. StateInstalled leads only to StateIdle.
var validEdges = map[State]map[State]bool{
	StateIdle:      {StateOpen: true},
	StateOpen:      {StateValidated: true, StateAborting: true},
	StateValidated: {StateReady: true, StateAborting: true},
	StateReady:     {StateCommitted: true, StateAborting: true},
	StateCommitted: {StateInstalled: true, StateAborting: true},
	StateInstalled: {StateIdle: true},
	StateAborting:  {StateIdle: true},
}

// Transaction holds the diff vectors and current state for one
// candidate-to-running transition (spec.md §4.A, §4.D).
type Transaction struct {
	Source *tree.Node // running, before this transaction
	Target *tree.Node // candidate being installed

	Added      []*tree.Node
	Deleted    []*tree.Node
	SrcChanged []tree.Pair
	TgtChanged []tree.Pair

	state State
}

// State returns the transaction's current state machine position.
func (t *Transaction) State() State { return t.state }

func (t *Transaction) transition(to State) error {
	if !validEdges[t.state][to] {
		return fmt.Errorf("invalid transaction transition %s -> %s", t.state, to)
	}
	t.state = to
	return nil
}

func (t *Transaction) view() *plugin.TxView {
	return &plugin.TxView{
		Source:     t.Source,
		Target:     t.Target,
		Added:      t.Added,
		Deleted:    t.Deleted,
		SrcChanged: t.SrcChanged,
		TgtChanged: t.TgtChanged,
	}
}

// OutcomeKind classifies how a Commit attempt ended.
type OutcomeKind int

const (
	OutcomeOk OutcomeKind = iota
	OutcomeValidationFail
	OutcomeFatal
)

// Outcome is the tagged result of Engine.Commit (spec.md §4.D, §7).
type Outcome struct {
	Kind   OutcomeKind
	Errors []rpcerr.Reply // populated when Kind == OutcomeValidationFail
	Err    error          // populated when Kind == OutcomeFatal
}

// Engine drives transactions for a single process: one Engine per running
// datastore, shared across sessions (spec.md §4.D assumes a single
// committer at a time, enforced by the caller holding the datastore lock).
type Engine struct {
	bus  *plugin.Bus
	spec yangspec.YangSpec
}

// NewEngine creates an Engine driving bus and validating against spec.
func NewEngine(bus *plugin.Bus, spec yangspec.YangSpec) *Engine {
	return &Engine{bus: bus, spec: spec}
}

// Commit drives source (current running) and target (candidate) through
// the full transaction state machine: diff, Begin, Validate, Complete,
// Commit, CommitDone, End. On any failure before Commit, the bus is wound
// down via Abort and the datastores are left untouched. On failure during
// or after the plugin Commit phase, the caller is responsible for
// restoring source from its own backup (spec.md §7 kind 2): the Engine
// reports OutcomeFatal but does not itself own datastore persistence.
func (e *Engine) Commit(ctx context.Context, source, target *tree.Node) (*Transaction, Outcome) {
	tx := &Transaction{Source: source, Target: target, state: StateIdle}

	result, err := tree.Diff(source, target)
	if err != nil {
		return tx, Outcome{Kind: OutcomeFatal, Err: fmt.Errorf("diff: %w", err)}
	}
	result.ApplyFlags(source, target)
	tx.Added, tx.Deleted, tx.SrcChanged, tx.TgtChanged = result.Added, result.Deleted, result.SrcChanged, result.TgtChanged

	if err := tx.transition(StateOpen); err != nil {
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}
	reachedBegin, err := e.bus.Begin(ctx, tx.view())
	if err != nil {
		e.abort(ctx, tx, reachedBegin)
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}

	if err := tx.transition(StateValidated); err != nil {
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}
	var errs []rpcerr.Reply
	errs = append(errs, validator.ValidateAllTop(target, e.spec)...)
	errs = append(errs, e.bus.Validate(ctx, tx.view())...)
	if len(errs) > 0 {
		e.abort(ctx, tx, reachedBegin)
		return tx, Outcome{Kind: OutcomeValidationFail, Errors: errs}
	}

	if err := tx.transition(StateReady); err != nil {
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}
	if err := e.bus.Complete(ctx, tx.view()); err != nil {
		e.abort(ctx, tx, reachedBegin)
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}

	if err := tx.transition(StateCommitted); err != nil {
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}
	if err := e.bus.Commit(ctx, tx.view()); err != nil {
		// Past this point the transaction may be partially applied;
		// the caller restores running from backup (spec.md §7 kind 2).
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}

	if err := tx.transition(StateInstalled); err != nil {
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}
	e.bus.CommitDone(ctx, tx.view())

	if err := tx.transition(StateIdle); err != nil {
		return tx, Outcome{Kind: OutcomeFatal, Err: err}
	}
	e.bus.End(ctx, tx.view())

	return tx, Outcome{Kind: OutcomeOk}
}

// abort unwinds tx via the plugin bus, restricting Abort to the plugins
// that actually reached or passed Begin (spec.md §4.C) — reachedBegin is
// the count Engine.Commit captured from its one call to Bus.Begin.
func (e *Engine) abort(ctx context.Context, tx *Transaction, reachedBegin int) {
	_ = tx.transition(StateAborting)
	e.bus.AbortThrough(ctx, tx.view(), reachedBegin)
	_ = tx.transition(StateIdle)
}

// ValidateOnly runs the Validate phase (structural validator plus every
// plugin's Validate callback) without attempting Commit, used by the
// validate RPC (spec.md §6) which must report errors without installing
// anything.
func (e *Engine) ValidateOnly(ctx context.Context, source, target *tree.Node) []rpcerr.Reply {
	result, err := tree.Diff(source, target)
	if err != nil {
		return []rpcerr.Reply{rpcerr.OperationFailed(err.Error())}
	}
	tx := &Transaction{
		Source: source, Target: target,
		Added: result.Added, Deleted: result.Deleted,
		SrcChanged: result.SrcChanged, TgtChanged: result.TgtChanged,
	}
	var errs []rpcerr.Reply
	errs = append(errs, validator.ValidateAllTop(target, e.spec)...)
	errs = append(errs, e.bus.Validate(ctx, tx.view())...)
	return errs
}
