// Package confirm implements the Confirmed-Commit Manager (spec.md §4.F):
// scheduling the rollback timer a confirmed commit arms, persisting enough
// state that a process restart mid-window still honors the rollback, and
// reconciling the confirming commit that cancels it. The write-then-rename
// persistence protocol follows the teacher's hive/tx.Manager.Commit ordered
// flush: write data, fsync, then atomically publish the new state.
package confirm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/netconfd/confd/internal/engine"
	"github.com/netconfd/confd/internal/logging"
	"github.com/netconfd/confd/internal/rpcerr"
	"github.com/netconfd/confd/pkg/store"
	"github.com/netconfd/confd/pkg/tree"
)

// Phase is a node in the confirmed-commit state machine (spec.md §3).
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseConfirmedWait
	PhaseRollback
)

func (p Phase) String() string {
	switch p {
	case PhaseInactive:
		return "inactive"
	case PhaseConfirmedWait:
		return "confirmed-wait"
	case PhaseRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// State is the persisted confirmed-commit record (spec.md §3, §6).
type State struct {
	Phase        Phase
	PersistToken *string
	SessionID    string
	Deadline     time.Time
	SnapshotName string
}

// persistedState is State's on-disk JSON shape (spec.md §6's small
// "confirmed-commit" state file: `{active, persist-token, session-id,
// deadline-unix-seconds, snapshot-name}`).
type persistedState struct {
	Active         bool    `json:"active"`
	PersistToken   *string `json:"persist_token,omitempty"`
	SessionID      string  `json:"session_id"`
	DeadlineUnix   int64   `json:"deadline_unix_seconds"`
	SnapshotName   string  `json:"snapshot_name"`
}

// DefaultTimeout is applied when a confirmed commit omits confirm-timeout
// (spec.md §4.F: "default 600").
const DefaultTimeout = 600 * time.Second

// Manager owns the confirmed-commit timer and persisted state for one
// Engine. Only one confirmed commit can be outstanding at a time (spec.md
// §5's single-committer model).
type Manager struct {
	mu    sync.Mutex
	eng   *engine.Engine
	stores *store.Set
	clock store.Clock
	timer store.Timer

	state     State
	statePath string
}

// NewManager creates a Manager driving eng's rollback transactions and
// persisting state under statePath (empty disables persistence, useful in
// tests).
func NewManager(eng *engine.Engine, stores *store.Set, clock store.Clock, statePath string) *Manager {
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &Manager{eng: eng, stores: stores, clock: clock, statePath: statePath}
}

// State returns a snapshot of the manager's current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether a confirmed commit is currently outstanding.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Phase == PhaseConfirmedWait
}

// BeginConfirmed arms a rollback window for a just-installed confirmed
// commit: it snapshots previousRunning (the tree running held before this
// commit was installed) into a rollback datastore and starts the timeout
// countdown (spec.md §4.F "Initial confirmed commit"). A zero or negative
// timeout is rejected per spec.md §8's boundary behavior.
func (m *Manager) BeginConfirmed(sessionID string, persistToken *string, timeout time.Duration, previousRunning *tree.Node) error {
	if timeout <= 0 {
		return rpcerr.InvalidValue("/commit/confirm-timeout", "confirm-timeout must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshotName := snapshotDatastoreName(sessionID, persistToken)
	ds := m.stores.Get(snapshotName)
	ds.Tree = previousRunning.Clone()
	ds.Dirty = true

	m.state = State{
		Phase:        PhaseConfirmedWait,
		PersistToken: persistToken,
		SessionID:    sessionID,
		Deadline:     m.clock.Now().Add(timeout),
		SnapshotName: snapshotName,
	}
	m.arm(timeout)
	return m.persistLocked()
}

// Confirm reconciles a subsequent commit against the active confirmed
// commit (spec.md §4.F "Confirming commit"/"Extending"). matches reports
// whether the confirming commit is authorized to act on the active window:
// either its persistID equals the recorded persist token, or it is from
// the same session with no persist token of its own. If extend is true
// (the confirming commit itself carries <confirmed/>), the timer is reset
// but the rollback snapshot is kept; otherwise the window closes and the
// snapshot is dropped.
func (m *Manager) Confirm(sessionID string, persistID *string, extend bool, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase != PhaseConfirmedWait {
		return rpcerr.OperationFailed("no confirmed commit is active")
	}
	if !m.matchesLocked(sessionID, persistID) {
		return rpcerr.AccessDenied("commit does not match the active confirmed commit")
	}

	if extend {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		m.state.Deadline = m.clock.Now().Add(timeout)
		m.arm(timeout)
		return m.persistLocked()
	}

	m.stopTimerLocked()
	m.stores.Remove(m.state.SnapshotName)
	m.state = State{}
	return m.persistLocked()
}

// CancelCommit triggers rollback immediately regardless of the timer
// (spec.md §6 cancel-commit RPC), provided persistID (when supplied)
// matches the active window's token.
func (m *Manager) CancelCommit(ctx context.Context, persistID *string) error {
	m.mu.Lock()
	if m.state.Phase != PhaseConfirmedWait {
		m.mu.Unlock()
		return rpcerr.OperationFailed("no confirmed commit is active")
	}
	if persistID != nil && !m.matchesLocked("", persistID) {
		m.mu.Unlock()
		return rpcerr.AccessDenied("persist-id does not match the active confirmed commit")
	}
	m.mu.Unlock()
	return m.fire(ctx)
}

// OnSessionEnd treats a mid-window session disconnect as an immediate
// timer fire unless the window carries a persist token, in which case any
// session presenting a matching persist-id may still confirm later
// (spec.md §4.F "Session end").
func (m *Manager) OnSessionEnd(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if m.state.Phase != PhaseConfirmedWait || m.state.SessionID != sessionID || m.state.PersistToken != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return m.fire(ctx)
}

// matchesLocked implements the authorization rule shared by Confirm and
// CancelCommit; callers must hold m.mu.
func (m *Manager) matchesLocked(sessionID string, persistID *string) bool {
	if persistID != nil {
		return m.state.PersistToken != nil && *persistID == *m.state.PersistToken
	}
	return sessionID != "" && sessionID == m.state.SessionID
}

// arm (re)starts the rollback timer; callers must hold m.mu.
func (m *Manager) arm(timeout time.Duration) {
	m.stopTimerLocked()
	m.timer = m.clock.AfterFunc(timeout, func() {
		if err := m.fire(context.Background()); err != nil {
			logging.L.Error("confirmed-commit rollback failed", "error", err)
		}
	})
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// fire engages the Rollback phase (spec.md §4.F "Timer fire"): the
// snapshot datastore replaces running via a full commit transaction with
// source=running, target=snapshot. This call sits above Engine.Commit, not
// inside it, so it never re-enters the confirmed-commit decision this
// Manager itself makes for ordinary commits — the reentrancy guard spec.md
// §4.F requires is structural, not a flag threaded through Transaction.
func (m *Manager) fire(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Phase != PhaseConfirmedWait {
		m.mu.Unlock()
		return nil
	}
	m.state.Phase = PhaseRollback
	snapshotName := m.state.SnapshotName
	m.stopTimerLocked()
	m.mu.Unlock()

	running := m.stores.Get(store.Running)
	snapshot := m.stores.Get(snapshotName)

	_, outcome := m.eng.Commit(ctx, running.Tree, snapshot.Tree)
	if outcome.Kind != engine.OutcomeOk {
		if outcome.Kind == engine.OutcomeValidationFail {
			return fmt.Errorf("confirmed-commit rollback: snapshot failed validation: %v", outcome.Errors)
		}
		return fmt.Errorf("confirmed-commit rollback: %w", outcome.Err)
	}
	running.Tree = snapshot.Tree
	running.Dirty = true

	m.mu.Lock()
	m.stores.Remove(snapshotName)
	m.state = State{}
	err := m.persistLocked()
	m.mu.Unlock()
	return err
}

// Restore reconciles persisted state found on disk after a process
// restart (spec.md §4.F "Persistence"): if the deadline has already
// passed, rollback fires immediately; otherwise the timer is re-armed for
// the remaining duration.
func (m *Manager) Restore(ctx context.Context) error {
	loaded, ok, err := m.load()
	if err != nil {
		return fmt.Errorf("load confirmed-commit state: %w", err)
	}
	if !ok {
		return nil
	}

	m.mu.Lock()
	m.state = loaded
	remaining := loaded.Deadline.Sub(m.clock.Now())
	if remaining <= 0 {
		m.mu.Unlock()
		return m.fire(ctx)
	}
	m.arm(remaining)
	m.mu.Unlock()
	return nil
}

// persistLocked writes m.state to statePath using write-then-rename with
// an fdatasync in between, so a crash never observes a partially written
// state file (spec.md §9). Callers must hold m.mu. A blank statePath
// disables persistence entirely.
func (m *Manager) persistLocked() error {
	if m.statePath == "" {
		return nil
	}
	rec := persistedState{
		Active:       m.state.Phase == PhaseConfirmedWait,
		PersistToken: m.state.PersistToken,
		SessionID:    m.state.SessionID,
		SnapshotName: m.state.SnapshotName,
	}
	if rec.Active {
		rec.DeadlineUnix = m.state.Deadline.Unix()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal confirmed-commit state: %w", err)
	}

	tmpPath := m.statePath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmpPath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := fdatasync(int(f.Fd())); err != nil {
		f.Close()
		return fmt.Errorf("fdatasync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, m.statePath); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, m.statePath, err)
	}
	return nil
}

func (m *Manager) load() (State, bool, error) {
	if m.statePath == "" {
		return State{}, false, nil
	}
	data, err := os.ReadFile(m.statePath)
	if os.IsNotExist(err) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var rec persistedState
	if err := json.Unmarshal(data, &rec); err != nil {
		return State{}, false, err
	}
	if !rec.Active {
		return State{}, false, nil
	}
	return State{
		Phase:        PhaseConfirmedWait,
		PersistToken: rec.PersistToken,
		SessionID:    rec.SessionID,
		Deadline:     time.Unix(rec.DeadlineUnix, 0),
		SnapshotName: rec.SnapshotName,
	}, true, nil
}

func snapshotDatastoreName(sessionID string, persistToken *string) string {
	if persistToken != nil {
		return "rollback_" + *persistToken
	}
	return "rollback_" + sessionID
}
