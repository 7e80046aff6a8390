/*
Package storage implements Strata's storage substrate: a
sharded, in-memory, version-chained keyspace keyed by (branch, type-tag,
user-key), with prefix scans and atomic batch application.

Sharding is by branch id — natural agent-level partitioning that eliminates
cross-branch contention. The layout follows a bucket-per-concern design
adapted from on-disk buckets to in-memory shards plus an MVCC version
chain per key. Reads copy out under a per-chain view and never block a
writer; writes take only the target shard's lock.
*/
package storage
