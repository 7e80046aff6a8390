/*
Package metrics defines Strata's in-process Prometheus instrumentation:
counters and histograms covering WAL durability, transaction validation,
and storage operations. The DurabilityCounters session command does not
read them; it reports per-session counters kept by pkg/session. This
package does not run an HTTP exporter itself, since
telemetry sinks are an out-of-scope external concern.
*/
package metrics
