// Package sinks implements concrete progress consumers: structured logging,
// Prometheus collectors, Pub/Sub publication, and the sequenced notification
// feed read by clients. Each sink satisfies progress.Sink and is safe for
// repeated Consume/Close cycles.
package sinks
