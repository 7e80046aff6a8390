/*
Package kv implements Strata's Key-Value primitive: plain
put/get/delete/history/list/cas over the shared storage substrate, tagged
storage.TagKV and scoped to one branch at a time.

Grounded on storage.Store directly — KV needs none of JSON's path logic or
Graph's index structures, so it is the thinnest of the five primitives, a
direct pass-through to the concurrency controller's read/write paths.
*/
package kv
