// Package studio defines the core types shared across the transcription and
// content-generation subsystems: the four fixed content types, the per-type
// job entry, the transcript state, the selection set, and the collaborator
// interfaces the orchestration layer depends on.
package studio
