// Package audio converts captured and uploaded audio into the payloads the
// transcription providers accept.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strings"

	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// Live capture format.
const (
	SampleRate  = 16000
	PCMMIMEType = "audio/pcm;rate=16000"
)

// ErrUnsupportedMedia is returned for payloads that are not audio or video.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// DecodeFloat32LE parses little-endian IEEE-754 float32 samples.
func DecodeFloat32LE(frame []byte) ([]float32, error) {
	if len(frame)%4 != 0 {
		return nil, fmt.Errorf("frame length %d is not a multiple of 4", len(frame))
	}
	out := make([]float32, len(frame)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(frame[i*4:]))
	}
	return out, nil
}

// PCM16 packs samples in [-1, 1] as signed 16-bit little-endian PCM.
// Each sample is scaled by 32768 and clamped to the int16 range, so a full
// scale positive sample saturates instead of wrapping.
func PCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

func toInt16(s float32) int16 {
	v := float64(s) * 32768
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

// EncodePCM packs one captured frame for a live session.
func EncodePCM(samples []float32) studio.AudioPayload {
	return studio.AudioPayload{
		Data:     base64.StdEncoding.EncodeToString(PCM16(samples)),
		MIMEType: PCMMIMEType,
	}
}

// Encode base64-encodes a complete file. An empty or generic declared type
// is replaced by the sniffed one.
func Encode(data []byte, mimeType string) (studio.AudioPayload, error) {
	resolved, err := Resolve(data, mimeType)
	if err != nil {
		return studio.AudioPayload{}, err
	}
	return studio.AudioPayload{
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: resolved,
	}, nil
}

// Resolve settles the media type of a complete file and rejects anything
// that cannot carry speech.
func Resolve(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("audio payload is empty")
	}
	resolved := NormalizeMIME(mimeType)
	if resolved == "" || resolved == "application/octet-stream" {
		resolved = DetectMIME(data)
	}
	if !Supported(resolved) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, resolved)
	}
	return resolved, nil
}

// DetectMIME sniffs the content type of data.
func DetectMIME(data []byte) string {
	return NormalizeMIME(http.DetectContentType(data))
}

// NormalizeMIME lowercases a media type and drops its parameters.
func NormalizeMIME(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mediaType
}

// Supported reports whether the media type can carry speech.
func Supported(mediaType string) bool {
	return strings.HasPrefix(mediaType, "audio/") || strings.HasPrefix(mediaType, "video/")
}
