/*
Package txn implements Strata's concurrency controller:
snapshot isolation with optimistic concurrency control. A transaction
captures a snapshot version at BEGIN, buffers every write locally, and
records read-set and CAS-set entries as it reads. Commit validates those
sets under a single mutex, then persists a Commit entry to the WAL before
publishing the buffered writes to storage — in that order, since WAL-before-
publish is what makes recovery correct.

Validation allows write skew: two transactions that each read a key the
other writes, then commit disjoint writes, both succeed. This is an
explicit relaxation from serializable isolation, built on a single-mutex
critical-section style for its decision state — one lock serializes the
validate-then-publish step, with atomics for the counters outside it —
generalized here to a read-set/cas-set validator.
*/
package txn
