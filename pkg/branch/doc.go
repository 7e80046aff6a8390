// Package branch implements the Branch Index (C6): creation, lookup,
// fork, diff, and merge of the logical namespaces every other primitive's
// storage key is qualified by.
//
// Branch metadata lives in its own reserved pseudo-branch shard
// (metaShard) under storage.TagBranchMeta, keyed by branch id — it is
// deliberately not stored "inside" the branch it describes, since the
// default branch's metadata must exist even though default itself is
// never materialized in the index (it always exists implicitly).
//
// fork/diff/merge read and write storage directly through the controller
// rather than through an active transaction: branch operations are
// executed outside the normal per-transaction envelope and are not
// rolled back by a concurrent TxnRollback in a session. fork and merge
// still commit as a single implicit transaction each (one meta-commit
// with re-allocated commit versions bound to it), they just never
// participate in a caller's explicit BEGIN/COMMIT.
package branch
