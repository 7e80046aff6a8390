package session

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/strata-db/strata/pkg/branch"
	"github.com/strata-db/strata/pkg/config"
	"github.com/strata-db/strata/pkg/embed"
	"github.com/strata-db/strata/pkg/event"
	"github.com/strata-db/strata/pkg/graph"
	"github.com/strata-db/strata/pkg/jsondoc"
	"github.com/strata-db/strata/pkg/kv"
	"github.com/strata-db/strata/pkg/log"
	"github.com/strata-db/strata/pkg/state"
	"github.com/strata-db/strata/pkg/strataerr"
	"github.com/strata-db/strata/pkg/txn"
	"github.com/strata-db/strata/pkg/value"
	"github.com/strata-db/strata/pkg/wal"
)

var sessionLog = log.WithComponent("session")

// durabilityCounters tracks the commits/rollbacks/conflicts this session
// has observed, for the DurabilityCounters command. These are per-session
// observations, not an engine-wide stat — a per-session count is the
// natural unit for an embedding caller that wants to know how its own
// work has fared.
type durabilityCounters struct {
	commits   uint64
	rollbacks uint64
	conflicts uint64
}

// Session owns one logical cursor into a Strata engine: a current branch
// and, optionally, a current transaction. It is not safe for
// concurrent use by multiple goroutines — same restriction the underlying
// Transaction carries.
type Session struct {
	ctrl      *txn.Controller
	branchIdx *branch.Primitive
	kv        *kv.Primitive
	json      *jsondoc.Primitive
	state     *state.Primitive
	event     *event.Primitive
	graph     *graph.Primitive

	cfg config.Config

	embedder  embed.QueryEmbedder
	vectors   embed.VectorCollection
	textField string
	autoEmbed atomic.Bool

	currentBranch string
	tx            *txn.Transaction

	counters durabilityCounters
}

// New returns a Session bound to ctrl, starting on the default branch with
// no active transaction. embedder/vectors may be nil — the auto-embed hook
// is then always a no-op regardless of cfg.AutoEmbed.
func New(ctrl *txn.Controller, cfg config.Config, embedder embed.QueryEmbedder, vectors embed.VectorCollection) *Session {
	s := &Session{
		ctrl:          ctrl,
		branchIdx:     branch.New(ctrl),
		kv:            kv.New(ctrl),
		json:          jsondoc.New(ctrl),
		state:         state.New(ctrl),
		event:         event.New(ctrl),
		graph:         graph.New(ctrl),
		cfg:           cfg,
		embedder:      embedder,
		vectors:       vectors,
		textField:     "text",
		currentBranch: branch.Default,
	}
	s.autoEmbed.Store(cfg.AutoEmbed)
	return s
}

// requireBranch enforces the write gate: a write to a branch other
// than default must verify the branch exists; default never checks.
func (s *Session) requireBranch(b string) error {
	if b == branch.Default {
		return nil
	}
	if !s.branchIdx.Exists(b) {
		return strataerr.BranchNotFound(b)
	}
	return nil
}

func (s *Session) requireWritable() error {
	if s.cfg.ReadOnly {
		return strataerr.New(strataerr.KindConstraintViolation, "database is open read-only")
	}
	return nil
}

// --- Lifecycle ---

// Info is a snapshot of session/engine state for the Info command.
type Info struct {
	CurrentBranch    string
	HasTransaction   bool
	GlobalVersion    value.Version
	ReadOnly         bool
	AutoEmbedEnabled bool
}

func (s *Session) Ping() string { return "pong" }

func (s *Session) Info() Info {
	return Info{
		CurrentBranch:    s.currentBranch,
		HasTransaction:   s.tx != nil,
		GlobalVersion:    s.ctrl.GlobalVersion(),
		ReadOnly:         s.cfg.ReadOnly,
		AutoEmbedEnabled: s.autoEmbed.Load(),
	}
}

// Flush forces a WAL fsync regardless of the configured durability mode.
func (s *Session) Flush() error {
	return s.ctrl.Wal().Sync()
}

// Compact writes a fresh snapshot of every live entry at the current
// global version. WAL segment garbage collection ahead of the snapshot is
// not implemented (see design notes) — Compact only adds a recovery
// shortcut, it never deletes WAL data.
func (s *Session) Compact() (string, error) {
	dir := filepath.Join(s.cfg.DataDir, "snapshots")
	return wal.WriteSnapshot(dir, s.ctrl.Store(), s.ctrl.GlobalVersion(), 0)
}

// --- Transaction lifecycle ---

// TxnBegin starts a transaction on branch (the current branch if branch
// is ""). Fails if a transaction is already active — only one transaction
// per session at a time.
func (s *Session) TxnBegin(branchID string) error {
	if s.tx != nil {
		return strataerr.New(strataerr.KindConstraintViolation, "a transaction is already active")
	}
	if branchID == "" {
		branchID = s.currentBranch
	}
	if err := s.requireBranch(branchID); err != nil {
		return err
	}
	s.tx = s.ctrl.Begin(branchID)
	return nil
}

// TxnCommit validates and publishes the active transaction.
func (s *Session) TxnCommit() (value.Version, error) {
	if s.tx == nil {
		return value.Version{}, strataerr.TransactionNotActive()
	}
	tx := s.tx
	s.tx = nil
	if err := s.ctrl.Commit(tx); err != nil {
		if strataerr.Is(err, strataerr.KindConflict) || strataerr.Is(err, strataerr.KindVersionConflict) {
			s.counters.conflicts++
		}
		return value.Version{}, err
	}
	s.counters.commits++
	return s.ctrl.GlobalVersion(), nil
}

// TxnRollback aborts the active transaction, discarding its buffered
// writes.
func (s *Session) TxnRollback() error {
	if s.tx == nil {
		return strataerr.TransactionNotActive()
	}
	tx := s.tx
	s.tx = nil
	s.counters.rollbacks++
	return s.ctrl.Rollback(tx)
}

// --- Branch ---
// Branch commands never consult the active transaction — none of them
// respect it — they dispatch straight to pkg/branch.

func (s *Session) BranchCreate(id, displayName string, metadata *value.Object, cascadeDefault graph.CascadePolicy, createdAt int64) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	return s.branchIdx.Create(id, displayName, metadata, cascadeDefault, createdAt)
}

func (s *Session) BranchExists(id string) bool { return s.branchIdx.Exists(id) }

func (s *Session) BranchGet(id string) (branch.Meta, bool, error) { return s.branchIdx.Get(id) }

func (s *Session) BranchList(stateFilter *branch.State) ([]branch.Meta, error) {
	return s.branchIdx.List(stateFilter)
}

func (s *Session) BranchDelete(id string) (bool, error) {
	if err := s.requireWritable(); err != nil {
		return false, err
	}
	return s.branchIdx.Delete(id)
}

func (s *Session) BranchFork(source, destination string, mode branch.ForkMode) (value.Version, error) {
	if err := s.requireWritable(); err != nil {
		return value.Version{}, err
	}
	return s.branchIdx.Fork(source, destination, mode)
}

func (s *Session) BranchDiff(a, b string) (branch.Diff, error) { return s.branchIdx.Diff(a, b) }

func (s *Session) BranchMerge(source, target string, strategy branch.MergeStrategy) (int, error) {
	if err := s.requireWritable(); err != nil {
		return 0, err
	}
	return s.branchIdx.Merge(source, target, strategy)
}

// SetBranch changes the session's current branch, used outside a
// transaction (a transaction carries its own branch, fixed at BEGIN).
func (s *Session) SetBranch(id string) error {
	if err := s.requireBranch(id); err != nil {
		return err
	}
	s.currentBranch = id
	return nil
}

func (s *Session) CurrentBranch() string { return s.currentBranch }

// branchFor resolves which branch a KV/JSON/State/Event command targets:
// the active transaction's branch if one is open, else the session's
// current branch.
func (s *Session) branchFor() string {
	if s.tx != nil {
		return s.tx.Branch
	}
	return s.currentBranch
}

// --- Config ---

func (s *Session) ConfigGet() config.Config { return s.cfg }

func (s *Session) ConfigSetAutoEmbed(enabled bool) {
	s.autoEmbed.Store(enabled)
}

func (s *Session) AutoEmbedStatus() (enabled bool, hasEmbedder bool) {
	return s.autoEmbed.Load(), s.embedder != nil && s.vectors != nil
}

// DurabilityCounters reports commit/rollback/conflict counts observed by
// this session since it was created.
func (s *Session) DurabilityCounters() (commits, rollbacks, conflicts uint64) {
	return s.counters.commits, s.counters.rollbacks, s.counters.conflicts
}

// maybeAutoEmbed runs the auto-embed hook for one written key/value.
// Failures are logged and swallowed — the triggering write has
// already succeeded and must not be undone by an indexing side effect.
func (s *Session) maybeAutoEmbed(ctx context.Context, branchID, collection, key string, val value.Value) {
	if !s.autoEmbed.Load() || s.embedder == nil || s.vectors == nil {
		return
	}
	text, ok := embed.EmbeddableText(val, s.textField)
	if !ok {
		return
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		sessionLog.Warn().Err(err).Str("branch", branchID).Str("key", key).Msg("auto-embed: embed failed")
		return
	}
	if err := s.vectors.EnsureCollection(ctx, collection, len(vec)); err != nil {
		sessionLog.Warn().Err(err).Str("collection", collection).Msg("auto-embed: ensure collection failed")
		return
	}
	if err := s.vectors.Insert(ctx, collection, key, vec, nil); err != nil {
		sessionLog.Warn().Err(err).Str("collection", collection).Str("key", key).Msg("auto-embed: insert failed")
	}
}
