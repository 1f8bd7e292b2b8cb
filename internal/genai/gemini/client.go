// Package gemini adapts the Google Gen AI SDK to the studio's generator,
// transcriber, and live-session interfaces.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// Default models.
const (
	DefaultModel     = "gemini-3-flash-preview"
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"
)

// Config selects credentials and models.
type Config struct {
	APIKey    string
	Model     string
	LiveModel string
	// LiveInstruction overrides the live session system instruction.
	LiveInstruction string
	// BaseURL overrides the API endpoint; used by tests and proxies.
	BaseURL string
}

// Client implements studio.Generator, studio.Transcriber, and
// studio.LiveTranscriber on top of one SDK client.
type Client struct {
	client *genai.Client
	cfg    Config
}

// New builds a Client for the Gemini API backend.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.LiveModel == "" {
		cfg.LiveModel = DefaultLiveModel
	}
	if cfg.LiveInstruction == "" {
		cfg.LiveInstruction = studio.LiveInstruction
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, cfg: cfg}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return "gemini" }

// Generate sends prompt as a single user turn and returns the text reply.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// Transcribe sends the audio inline together with the transcription
// instruction.
func (c *Client) Transcribe(ctx context.Context, payload studio.AudioPayload) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return "", fmt.Errorf("decode audio payload: %w", err)
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, payload.MIMEType),
			genai.NewPartFromText(studio.TranscribeInstruction),
		}, genai.RoleUser),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
