// Package config loads the delivery engine configuration and the
// recipient contact-step definitions from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"formageddon/internal/domain/entity"
)

// Config is the top-level engine configuration.
type Config struct {
	// ReplyDomain is the domain used to build threaded reply addresses.
	// When empty, the sender's real email is always used.
	ReplyDomain string `yaml:"reply_domain"`

	// CaptchaDir is where captured challenge images are written for the
	// human solver console.
	CaptchaDir string `yaml:"captcha_dir"`

	// DatabasePath is the sqlite file holding letters, attempts and
	// browser state checkpoints.
	DatabasePath string `yaml:"database_path"`

	// DefaultParams are forced onto every submitted form after the
	// field-filling pass, keyed by control name.
	DefaultParams map[string]string `yaml:"default_params"`

	// RequestTimeout is a Go duration string, e.g. "30s".
	RequestTimeoutRaw string        `yaml:"request_timeout"`
	RequestTimeout    time.Duration `yaml:"-"`

	// RenderPages routes page fetches through a headless browser
	// instead of plain HTTP.
	RenderPages bool `yaml:"render_pages"`

	Console ConsoleConfig `yaml:"console"`
	Solver  SolverConfig  `yaml:"solver"`

	Recipients []RecipientConfig `yaml:"recipients"`
}

// ConsoleConfig configures the HTTP side-channel where a human reviews
// pending captcha challenges and posts solutions.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SolverConfig configures the vision-model captcha solver and the LLM
// choice delegate. Credentials come from the environment, not YAML.
type SolverConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// RecipientConfig mirrors the per-recipient contact step definitions.
type RecipientConfig struct {
	ID    string       `yaml:"id"`
	Name  string       `yaml:"name"`
	Steps []StepConfig `yaml:"steps"`
}

type StepConfig struct {
	Command string      `yaml:"command"`
	Form    *FormConfig `yaml:"form"`
}

type FormConfig struct {
	Fields         []FieldConfig             `yaml:"fields"`
	SubmitSelector string                    `yaml:"submit_selector"`
	SuccessString  string                    `yaml:"success_string"`
	UseRealEmail   bool                      `yaml:"use_real_email"`
	CaptchaImage   *CaptchaImageConfig       `yaml:"captcha_image"`
	Secondary      *SecondaryChallengeConfig `yaml:"secondary_challenge"`
}

type FieldConfig struct {
	Selector string `yaml:"selector"`
	Value    string `yaml:"value"`
	Required bool   `yaml:"required"`
}

type CaptchaImageConfig struct {
	Selector string `yaml:"selector"`
}

type SecondaryChallengeConfig struct {
	URL            string      `yaml:"url"`
	ImageSelector  string      `yaml:"image_selector"`
	Form           *FormConfig `yaml:"form"`
	TokenSelector  string      `yaml:"token_selector"`
	TokenAttr      string      `yaml:"token_attr"`
	TokenFieldSel  string      `yaml:"token_field_selector"`
}

// Load reads the YAML file at path and fills in defaults for anything
// left unspecified.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.defaults()
	return &cfg, nil
}

func (c *Config) defaults() {
	if c.CaptchaDir == "" {
		c.CaptchaDir = "tmp/captchas"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/formageddon.db"
	}
	if c.RequestTimeoutRaw != "" {
		if d, err := time.ParseDuration(c.RequestTimeoutRaw); err == nil {
			c.RequestTimeout = d
		}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Console.Addr == "" {
		c.Console.Addr = ":8090"
	}
}

// Recipient resolves a recipient definition by id and converts it into
// the domain form. The second return reports whether the id exists.
func (c *Config) Recipient(id string) (*entity.Recipient, bool) {
	for i := range c.Recipients {
		if c.Recipients[i].ID == id {
			return c.Recipients[i].toEntity(), true
		}
	}
	return nil, false
}

func (rc *RecipientConfig) toEntity() *entity.Recipient {
	r := &entity.Recipient{
		ID:   rc.ID,
		Name: rc.Name,
	}
	for i, sc := range rc.Steps {
		step := &entity.ContactStep{
			StepNumber: i + 1,
			Command:    sc.Command,
		}
		if sc.Form != nil {
			step.Form = sc.Form.toEntity()
		}
		r.Steps = append(r.Steps, step)
	}
	return r
}

func (fc *FormConfig) toEntity() *entity.Form {
	f := &entity.Form{
		SubmitCSSSelector: fc.SubmitSelector,
		SuccessString:     fc.SuccessString,
		UseRealEmail:      fc.UseRealEmail,
	}
	for i, field := range fc.Fields {
		f.Fields = append(f.Fields, &entity.FormField{
			CSSSelector: field.Selector,
			Value:       field.Value,
			Required:    field.Required,
			FieldNumber: i + 1,
		})
	}
	if fc.CaptchaImage != nil {
		f.CaptchaImage = &entity.CaptchaImageSpec{CSSSelector: fc.CaptchaImage.Selector}
	}
	if fc.Secondary != nil {
		sec := &entity.SecondaryChallengeSpec{
			URL:                   fc.Secondary.URL,
			ImageCSSSelector:      fc.Secondary.ImageSelector,
			TokenCSSSelector:      fc.Secondary.TokenSelector,
			TokenAttr:             fc.Secondary.TokenAttr,
			TokenFieldCSSSelector: fc.Secondary.TokenFieldSel,
		}
		if fc.Secondary.Form != nil {
			sec.Form = fc.Secondary.Form.toEntity()
		}
		f.SecondaryChallenge = sec
	}
	return f
}
