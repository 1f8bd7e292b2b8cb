package studio

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ContentType names one of the fixed output categories generated from a transcript.
type ContentType string

// Supported content types.
const (
	ContentTitle     ContentType = "title"
	ContentThumbnail ContentType = "thumbnail"
	ContentFacebook  ContentType = "facebook"
	ContentYouTube   ContentType = "youtube"
)

var allContentTypes = [...]ContentType{
	ContentTitle,
	ContentThumbnail,
	ContentFacebook,
	ContentYouTube,
}

// ContentTypes returns the fixed set in display order.
func ContentTypes() []ContentType {
	out := make([]ContentType, len(allContentTypes))
	copy(out, allContentTypes[:])
	return out
}

// Valid reports whether c is one of the four supported content types.
func (c ContentType) Valid() bool {
	for _, known := range allContentTypes {
		if c == known {
			return true
		}
	}
	return false
}

// ParseContentType normalizes user input into a ContentType.
func ParseContentType(raw string) (ContentType, error) {
	c := ContentType(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownContentType, raw)
	}
	return c, nil
}

// ListOutput reports whether the generated text is a list of short items
// (numbered titles, thumbnail phrases) rather than a single block of prose.
func (c ContentType) ListOutput() bool {
	return c == ContentTitle || c == ContentThumbnail
}

// ContentJob is the registry entry for one content type. Progress is only
// meaningful while IsRunning is true and is zero otherwise.
type ContentJob struct {
	Key       ContentType `json:"key"`
	IsRunning bool        `json:"is_running"`
	Progress  int         `json:"progress"`
	Result    string      `json:"result"`
	// RunID identifies the in-flight run that owns this entry; empty when idle.
	RunID string `json:"run_id,omitempty"`
}

var listPrefix = regexp.MustCompile(`^\d+[.)]\s*`)

// Items splits Result into trimmed, de-numbered, non-empty lines.
func (j ContentJob) Items() []string {
	return SplitItems(j.Result)
}

// SplitItems splits generated list text into items, stripping "1." or "1)" prefixes.
func SplitItems(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		item := strings.TrimSpace(listPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// TranscriptState holds the transcript and the coarse transcription progress,
// which is independent of per-job generation progress.
type TranscriptState struct {
	Text           string `json:"text"`
	IsTranscribing bool   `json:"is_transcribing"`
	Progress       int    `json:"progress"`
}

// Snapshot is a read-only copy of the whole studio state.
type Snapshot struct {
	Transcript TranscriptState `json:"transcript"`
	Jobs       []ContentJob    `json:"jobs"`
	Selection  []ContentType   `json:"selection"`
	Recording  bool            `json:"recording"`
}

// Job returns the entry for key from the snapshot.
func (s Snapshot) Job(key ContentType) (ContentJob, bool) {
	for _, job := range s.Jobs {
		if job.Key == key {
			return job, true
		}
	}
	return ContentJob{}, false
}

// WorkItem is a generation request handed from the dispatcher to a worker.
type WorkItem struct {
	Key        ContentType
	RunID      string
	Transcript string
	Submitted  time.Time
}
