// Package openai adapts the OpenAI chat and Whisper APIs to the studio's
// generator and transcriber interfaces.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/JakeFAU/bangla-scribe/internal/audio"
	"github.com/JakeFAU/bangla-scribe/internal/studio"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.GPT4oMini

// Config selects credentials and models.
type Config struct {
	APIKey string
	Model  string
	// Language is the ISO-639-1 hint passed to Whisper (default "bn").
	Language string
	BaseURL  string
}

// Client implements studio.Generator and studio.Transcriber.
type Client struct {
	client *openai.Client
	cfg    Config
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = "bn"
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{client: openai.NewClientWithConfig(oc), cfg: cfg}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return "openai" }

// Generate sends prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe uploads the audio to Whisper with the Bangla language hint.
func (c *Client) Transcribe(ctx context.Context, payload studio.AudioPayload) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return "", fmt.Errorf("decode audio payload: %w", err)
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "audio" + extensionFor(payload.MIMEType),
		Reader:   bytes.NewReader(data),
		Prompt:   studio.TranscribeInstruction,
		Language: c.cfg.Language,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

var extensions = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/wave":   ".wav",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/ogg":    ".ogg",
	"audio/webm":   ".webm",
	"video/webm":   ".webm",
	"audio/mp4":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"video/mp4":    ".mp4",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
}

// Whisper infers the container from the file name.
func extensionFor(mimeType string) string {
	if ext, ok := extensions[audio.NormalizeMIME(mimeType)]; ok {
		return ext
	}
	return ".mp3"
}
