/*
Package value implements Strata's recursive Value tree, its Version tag,
and the typed EntityRef handles used to address data across branches.

These three types are the payload and addressing vocabulary shared by every
primitive (KV, JSON, State, Event, Graph) and by the durability and
concurrency layers underneath them. Nothing above this package invents its
own notion of "a stored thing" — everything is a Value, versioned by a
Version, reachable through an EntityRef.
*/
package value
