package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart        Stage = "JOB_START"
	StageJobProgress     Stage = "JOB_PROGRESS"
	StageJobDone         Stage = "JOB_DONE"
	StageJobError        Stage = "JOB_ERROR"
	StageTranscribeStart Stage = "TRANSCRIBE_START"
	StageTranscribeDone  Stage = "TRANSCRIBE_DONE"
	StageTranscribeError Stage = "TRANSCRIBE_ERROR"
	StageLiveStart       Stage = "LIVE_START"
	StageLiveStop        Stage = "LIVE_STOP"
	StageLiveError       Stage = "LIVE_ERROR"
	StageReset           Stage = "RESET"
)

// Event captures a single studio lifecycle milestone.
type Event struct {
	// RunID identifies one generation run; required for job stages.
	RunID string `json:"run_id,omitempty"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Stage denotes which milestone occurred.
	Stage Stage `json:"stage"`
	// ContentType scopes job events to title/thumbnail/facebook/youtube.
	ContentType string `json:"content_type,omitempty"`
	// Progress is the displayed percentage at the time of the event.
	Progress int `json:"progress,omitempty"`
	// Dur captures the remote call latency for completions and failures.
	Dur time.Duration `json:"duration,omitempty"`
	// Note carries the user-facing message for failures.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobProgress, StageJobDone, StageJobError:
		if e.RunID == "" {
			return errors.New("job event requires run id")
		}
		if e.ContentType == "" {
			return errors.New("job event requires content type")
		}
	case StageTranscribeStart, StageTranscribeDone, StageTranscribeError,
		StageLiveStart, StageLiveStop, StageLiveError, StageReset:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Progress < 0 || e.Progress > 100 {
		return errors.New("progress must be within 0..100")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Failure reports whether the event describes a failed operation.
func (e Event) Failure() bool {
	switch e.Stage {
	case StageJobError, StageTranscribeError, StageLiveError:
		return true
	default:
		return false
	}
}

// Settled reports whether the event ends an operation, successfully or not.
func (e Event) Settled() bool {
	switch e.Stage {
	case StageJobDone, StageTranscribeDone, StageLiveStop:
		return true
	default:
		return e.Failure()
	}
}

// Attributes exposes routing metadata for message brokers.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		"stage":        string(e.Stage),
		"content_type": e.ContentType,
		"run_id":       e.RunID,
	}
}
