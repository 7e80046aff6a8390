/*
Package jsondoc implements Strata's JSON document primitive:
one chain entry per write, path-addressable reads/writes/deletes against a
recursive Value tree.

The stored form is always the canonical binary encoding of the whole
document, wrapped as Value::Bytes within the storage chain —
never the structured Value itself. Every read path here decodes back to a
structured Value before returning it; callers, including a root-path ("$")
read inside an active transaction, must never observe the raw encoded
bytes — a root-path ("$") read inside an active transaction must behave
identically to one outside it.
*/
package jsondoc
