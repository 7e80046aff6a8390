/*
Package strataerr defines Strata's closed error taxonomy. Errors
are discriminated by Kind, not by Go type hierarchy, so every layer above
storage can route on Kind alone. Source chains are intentionally discarded
when storage-layer failures cross into this envelope — the envelope must
stay clonable/serializable across the session boundary — but the
original message text is always preserved.
*/
package strataerr
