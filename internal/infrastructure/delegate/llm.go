// Package delegate answers choice-control questions with an LLM: given the
// letter being sent and the options a select or radio group offers, pick the
// option that best matches the sender's intent.
package delegate

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
)

var _ output.ChoiceDelegate = (*LLMDelegate)(nil)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  output.LoggerPort
}

// LLMDelegate asks a chat model to choose among the offered options. The
// model must answer with one of the options verbatim; anything else falls
// back to the computed default.
type LLMDelegate struct {
	llm    llms.Model
	logger output.LoggerPort
}

func New(cfg Config) (*LLMDelegate, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("delegate: api key and model are required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("delegate: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = output.NopLogger{}
	}
	return &LLMDelegate{llm: llm, logger: cfg.Logger}, nil
}

func (d *LLMDelegate) ChooseValue(ctx context.Context, q output.ChoiceQuery) (string, error) {
	if len(q.Options) == 0 {
		return "", entity.ErrNotImplemented
	}

	prompt := buildPrompt(q)
	answer, err := llms.GenerateFromSinglePrompt(ctx, d.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("delegate: %w", err)
	}

	answer = strings.TrimSpace(answer)
	for _, opt := range q.Options {
		if strings.EqualFold(answer, opt) {
			d.logger.Debug("delegate chose option", "field", q.Field, "value", opt)
			return opt, nil
		}
	}

	d.logger.Debug("delegate answer not among options, keeping default",
		"field", q.Field, "answer", answer)
	return "", entity.ErrNotImplemented
}

func buildPrompt(q output.ChoiceQuery) string {
	var b strings.Builder
	b.WriteString("A contact form field needs a value picked from a fixed list.\n")
	fmt.Fprintf(&b, "Field: %s\n", q.Field)
	if q.Letter != nil {
		if q.Letter.Subject != "" {
			fmt.Fprintf(&b, "Message subject: %s\n", q.Letter.Subject)
		}
		if q.Letter.IssueArea != "" {
			fmt.Fprintf(&b, "Issue area: %s\n", q.Letter.IssueArea)
		}
	}
	if q.Default != "" {
		fmt.Fprintf(&b, "Current default: %s\n", q.Default)
	}
	b.WriteString("Options:\n")
	for _, opt := range q.Options {
		fmt.Fprintf(&b, "- %s\n", opt)
	}
	b.WriteString("Answer with exactly one option from the list, nothing else.")
	return b.String()
}
