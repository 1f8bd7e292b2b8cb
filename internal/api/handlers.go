package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/bangla-scribe/internal/audio"
	"github.com/JakeFAU/bangla-scribe/internal/metrics"
	"github.com/JakeFAU/bangla-scribe/internal/progress/sinks"
	"github.com/JakeFAU/bangla-scribe/internal/storage/gcs"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
	"github.com/JakeFAU/bangla-scribe/internal/transcribe"
)

// jobView adds parsed list items to a job for list-style content types.
type jobView struct {
	studio.ContentJob
	Items []string `json:"items,omitempty"`
}

func viewJob(job studio.ContentJob) jobView {
	v := jobView{ContentJob: job}
	if job.Key.ListOutput() {
		v.Items = job.Items()
	}
	return v
}

func viewJobs(jobs []studio.ContentJob) []jobView {
	out := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, viewJob(job))
	}
	return out
}

type stateResponse struct {
	Transcript studio.TranscriptState `json:"transcript"`
	Jobs       []jobView              `json:"jobs"`
	Selection  []studio.ContentType   `json:"selection"`
	Recording  bool                   `json:"recording"`
}

func viewState(snap studio.Snapshot) stateResponse {
	return stateResponse{
		Transcript: snap.Transcript,
		Jobs:       viewJobs(snap.Jobs),
		Selection:  snap.Selection,
		Recording:  snap.Recording,
	}
}

type transcriptRequest struct {
	Text *string `json:"text"`
}

type objectTranscriptionRequest struct {
	GCSURI string `json:"gcs_uri"`
}

type generateRequest struct {
	Types []string `json:"types"`
}

type selectionRequest struct {
	Types []string `json:"types"`
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, viewState(s.studio.Snapshot()))
}

func (s *Server) putTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == nil {
		writeError(w, http.StatusBadRequest, "missing transcript text")
		return
	}
	writeJSON(w, http.StatusOK, s.studio.ReplaceTranscript(*req.Text))
}

func (s *Server) postTranscription(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	switch mediaType {
	case "multipart/form-data":
		err = s.submitUpload(w, r)
	case "application/json":
		var req objectTranscriptionRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil || req.GCSURI == "" {
			writeError(w, http.StatusBadRequest, "missing gcs_uri")
			return
		}
		if _, _, parseErr := gcs.ParseURI(req.GCSURI); parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		err = s.studio.SubmitObject(req.GCSURI)
	default:
		writeError(w, http.StatusUnsupportedMediaType, "expected multipart/form-data or application/json")
		return
	}
	if err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.studio.Snapshot().Transcript)
}

func (s *Server) submitUpload(w http.ResponseWriter, r *http.Request) error {
	limit := s.cfg.MaxUploadBytes()
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errBadRequest{msg: "missing audio file"}
	}
	defer file.Close() //nolint:errcheck // multipart parts are memory or temp-file backed
	data, err := io.ReadAll(file)
	if err != nil {
		return errBadRequest{msg: "read audio file"}
	}
	metrics.ObserveUpload(int64(len(data)))
	mimeType, err := audio.Resolve(data, header.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	return s.studio.SubmitFile(data, mimeType)
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	key, err := studio.ParseContentType(chi.URLParam(r, "content_type"))
	if err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	job, err := s.studio.Job(key)
	if err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewJob(job))
}

func (s *Server) generateOne(w http.ResponseWriter, r *http.Request) {
	key, err := studio.ParseContentType(chi.URLParam(r, "content_type"))
	if err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	job, err := s.studio.Generate(r.Context(), key)
	if err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, viewJob(job))
}

func (s *Server) generateSelected(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	var keys []studio.ContentType
	if req.Types != nil {
		parsed, err := parseKeys(req.Types)
		if err != nil {
			s.writeStudioError(w, r, err)
			return
		}
		keys = parsed
	}
	started, err := s.studio.GenerateSelected(r.Context(), keys)
	if err != nil && len(started) == 0 {
		s.writeStudioError(w, r, err)
		return
	}
	resp := map[string]any{"started": viewJobs(started)}
	if err != nil {
		s.logger.Warn("batch generation partially started", zap.Error(err))
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) getSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"types": s.studio.Selection()})
}

func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	keys, err := parseKeys(req.Types)
	if err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	if err := s.studio.SetSelection(keys); err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": s.studio.Selection()})
}

func (s *Server) toggleSelection(w http.ResponseWriter, r *http.Request) {
	key, err := studio.ParseContentType(chi.URLParam(r, "content_type"))
	if err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	selected, err := s.studio.ToggleSelection(key)
	if err != nil {
		s.writeStudioError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content_type": key,
		"selected":     selected,
		"types":        s.studio.Selection(),
	})
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewState(s.studio.Reset(r.Context())))
}

func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = parsed
	}
	items := []sinks.Notification{}
	latest := int64(0)
	if s.feed != nil {
		items = append(items, s.feed.Since(since)...)
		latest = s.feed.Latest()
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items, "latest": latest})
}

func parseKeys(raw []string) ([]studio.ContentType, error) {
	keys := make([]studio.ContentType, 0, len(raw))
	for _, r := range raw {
		key, err := studio.ParseContentType(r)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

type errBadRequest struct {
	msg string
}

func (e errBadRequest) Error() string { return e.msg }

// statusFor maps studio errors onto HTTP status codes.
func statusFor(err error) int {
	var badReq errBadRequest
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &badReq),
		errors.Is(err, studio.ErrNoInput),
		errors.Is(err, studio.ErrNoSelection),
		errors.Is(err, studio.ErrCapturePermission):
		return http.StatusBadRequest
	case errors.Is(err, studio.ErrUnknownContentType):
		return http.StatusNotFound
	case errors.Is(err, studio.ErrJobRunning),
		errors.Is(err, studio.ErrTranscriptionRunning),
		errors.Is(err, studio.ErrRecordingActive):
		return http.StatusConflict
	case errors.Is(err, audio.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &tooLarge), errors.Is(err, gcs.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, transcribe.ErrNoObjectStore):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeStudioError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, status, strings.TrimSpace(err.Error()))
}
