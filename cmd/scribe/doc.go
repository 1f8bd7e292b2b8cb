// Package main hosts the Bangla content studio entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, the studio snapshot, transcription uploads, content
//     generation, selection management, reset, the notification feed, and a WebSocket endpoint for live audio.
//   - Generation: internal/dispatcher begins a job in the registry and enqueues it on a bounded in-memory queue sized
//     by dispatch.queue_depth; a fixed worker pool sized by dispatch.workers (at least one per content type) runs
//     each call with a simulated progress curve and settles the result (100% hold, then idle with the new text; failures keep the previous text).
//   - Transcription: uploaded files or gs:// objects are base64-encoded and sent to the configured provider; the
//     transcript replaces the current one and the coarse progress returns to 0 after transcript_reset_ms.
//   - Live recording: float32 frames from the WebSocket are packed as 16 kHz PCM16 and streamed to a Gemini live
//     session; every fragment is appended as text + " " + fragment and pushed back to the client.
//   - Providers: internal/genai routes generation to gemini, openai, or anthropic with an optional fallback and
//     bounded retries; every remote call is capped by genai.call_timeout_seconds.
//   - Fanout: lifecycle events are batched by the progress Hub into log, Prometheus, notification-feed, and optional
//     Pub/Sub sinks.
//
// Quick checklist:
//   - Configure env vars: SCRIBE_SERVER_PORT or PORT, SCRIBE_GENAI_PROVIDER, SCRIBE_GENAI_GEMINI_API_KEY (and the
//     openai/anthropic keys when those providers are selected), SCRIBE_STORAGE_GCS_ENABLED, pubsub project/topic.
//   - Run locally: go run ./cmd/scribe -config config.yaml (or rely solely on env overrides).
//   - The process reacts to SIGTERM by draining HTTP, stopping live recording, and flushing the progress sinks.
package main
