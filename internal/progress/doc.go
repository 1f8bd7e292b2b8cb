// Package progress provides the per-job progress simulator that animates a
// generation while its remote call is outstanding, plus the lifecycle event
// primitives and non-blocking hub that fan those events out to pluggable sinks
// such as Prometheus metrics, Pub/Sub notifications, or the notification feed.
package progress
