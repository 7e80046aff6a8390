// Package session implements the Session/Executor (C7): the single
// logical cursor an embedding program holds into a Strata engine — a
// current branch, an optional current transaction, and a uniform command
// dispatch surface over every primitive.
//
// Two ways to drive a Session are provided side by side, the way a
// typical cluster FSM exposes both a typed API on its store and a
// generic tagged-command Apply entry point for its replication log: most
// Go callers want typed methods (Session.KvPut, Session.GraphAddNode, …),
// but a uniform Dispatch(Command) Output surface is kept too, for a
// scripting or CLI front-end that only knows command names at runtime.
// Both paths share the exact same branch-existence and transaction
// routing logic — Dispatch is a thin switch over the typed methods, not
// a second implementation.
package session
