/*
Package serialize implements the canonical binary encoding of value.Value
used by the WAL (pkg/wal) and snapshot buckets (pkg/wal's snapshot writer).
It is distinct from any human-readable form: a compact, self-describing,
tag-prefixed encoding that round-trips the full recursive Value tree
without a schema. See SPEC_FULL.md §8 for why this is hand-rolled rather
than built on a third-party serializer.
*/
package serialize
