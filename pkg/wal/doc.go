/*
Package wal implements Strata's durability layer: a segmented,
CRC-protected append-only log of Begin/Put/Delete/Commit/Abort/BranchMeta/
Checkpoint entries, one batched append and fsync per committing
transaction, three durability modes, and a recovery protocol that stops
replay at the first corrupt or unknown entry rather than attempting to
skip past it.

Each segment starts with a magic + format-version + segment-number header;
each entry is framed as length prefix + entry-type byte + body + CRC32 of
type and body. This follows a storage-engine WAL shape, generalized here to
the seven entry types Strata's durability model requires and to a
commit-version space rather than a single LSN counter. Snapshots are
backed by go.etcd.io/bbolt, a single-file atomic embedded store, so a
snapshot is one bbolt file swapped in atomically rather than a
hand-rolled format.
*/
package wal
