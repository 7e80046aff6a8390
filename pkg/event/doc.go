/*
Package event implements Strata's Event primitive: append-only
streams, each with its own monotonic Version::Sequence, payload always a
Value::Object.

Each stream tracks its next sequence number in a dedicated internal counter
cell (storage.TagEvent, reserved key namespace distinct from the entries
themselves) rather than reusing the shared commit counter pkg/txn allocates
for every primitive — range(start, end, limit) needs small, per-stream
ordinals, not sparse global commit numbers. Appending is a read-increment-
write against that counter validated through the normal optimistic
controller (the same compare-and-swap discipline pkg/kv's Cas uses), so
concurrent appends to one stream serialize correctly without a dedicated
lock; a non-transactional append retries on a detected conflict rather than
surfacing it, since there is nothing for a direct caller to have read
stale.
*/
package event
