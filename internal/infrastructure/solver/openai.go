// Package solver answers captcha challenges with a vision model before
// falling back to a human.
package solver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
)

var _ output.Solver = (*VisionSolver)(nil)

const solvePrompt = "Read the distorted text in this CAPTCHA image. " +
	"Reply with only the characters you see, nothing else."

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://openrouter.ai/api/v1",
	}
}

// VisionSolver sends the challenge image to a multimodal chat model and
// returns the transcribed text.
type VisionSolver struct {
	client *openai.Client
	model  string
	logger output.LoggerPort
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.logger != nil {
		var bodyBytes []byte
		if req.Body != nil {
			bodyBytes, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		var requestData map[string]interface{}
		if len(bodyBytes) > 0 {
			json.Unmarshal(bodyBytes, &requestData)
		}

		t.logger.Debug("HTTP Request",
			"method", req.Method,
			"url", req.URL.String(),
			"bodyLen", len(bodyBytes),
		)
	}

	resp, err := t.base.RoundTrip(req)

	if t.logger != nil && resp != nil {
		t.logger.Debug("HTTP Response",
			"status", resp.Status,
			"statusCode", resp.StatusCode,
		)
	}

	return resp, err
}

func NewVisionSolver(cfg Config) *VisionSolver {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	if cfg.Logger != nil {
		config.HTTPClient = &http.Client{
			Transport: &loggingTransport{
				base:   http.DefaultTransport,
				logger: cfg.Logger,
			},
		}
	}

	return &VisionSolver{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Solve transcribes the challenge image. Returns ErrNotImplemented when
// the solver was constructed without credentials so the coordinator
// falls back to the human console.
func (s *VisionSolver) Solve(ctx context.Context, image []byte) (string, error) {
	if s.model == "" {
		return "", entity.ErrNotImplemented
	}

	dataURL := fmt.Sprintf("data:image/jpeg;base64,%s",
		base64.StdEncoding.EncodeToString(image))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: solvePrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("captcha completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("model returned empty transcription")
	}

	if s.logger != nil {
		s.logger.Info("captcha transcribed", "model", s.model, "length", len(answer))
	}
	return answer, nil
}
