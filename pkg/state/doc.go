/*
Package state implements Strata's State primitive: a
single-slot, last-write-wins cell per name, with init (write-only-if-absent),
unconditional set, get, cas, and history.

The storage substrate's conflict detection and snapshot reads are built
around one globally monotonic, Version::Txn-kind commit counter shared by
every primitive (pkg/txn); a per-cell Version::Counter authority distinct
from that counter would need its own allocation path with no additional
safety benefit, since CAS here still validates against the real committed
version under the controller's commit mutex. This package therefore reuses
the real commit version's numeric value but re-tags it as Version::Counter
at the package boundary, so a State version is never interchangeable with a
KV/JSON Version::Txn or an Event Version::Sequence even when the numbers
happen to collide (pkg/value/version.go's documented invariant). This is
recorded as an Open Question resolution in the design ledger.
*/
package state
