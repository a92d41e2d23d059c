// Package fill reconciles semantic field values against arbitrary HTML form
// controls on a live document.
package fill

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
)

// Config tunes an Engine.
type Config struct {
	// ReplyDomain enables generated reply addresses for email fields:
	// formageddon+<threadID>@<ReplyDomain>. Empty disables the substitution.
	ReplyDomain string

	// Delegate may override computed values for choice controls. Optional.
	Delegate output.ChoiceDelegate

	Logger output.LoggerPort

	// Rand drives the random default policy. Tests inject a seeded source.
	Rand *rand.Rand
}

// Engine applies one semantic field to one control, with control-type
// specific rules and default-selection policies. One engine is shared by
// every concurrent delivery, so the random source is guarded.
type Engine struct {
	replyDomain string
	delegate    output.ChoiceDelegate
	logger      output.LoggerPort

	randMu sync.Mutex
	rand   *rand.Rand
}

// intn draws from the shared source under the lock.
func (e *Engine) intn(n int) int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Intn(n)
}

func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = output.NopLogger{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		replyDomain: cfg.ReplyDomain,
		delegate:    cfg.Delegate,
		logger:      cfg.Logger,
		rand:        cfg.Rand,
	}
}

// Fill locates the field's control on the document and applies the letter's
// value for it. Returns entity.ErrFieldNotFound (wrapped) when the selector
// resolves to nothing, entity.ErrUnknownField when the semantic value has no
// resolution.
func (e *Engine) Fill(ctx context.Context, doc *goquery.Document, form *entity.Form, ff *entity.FormField, letter *entity.Letter) error {
	if doc == nil {
		return fmt.Errorf("fill %q: no document", ff.CSSSelector)
	}

	switch ff.Value {
	case entity.FieldEmail:
		if e.replyDomain != "" && !form.UseRealEmail {
			addr := fmt.Sprintf("formageddon+%d@%s", letter.Thread.ID, e.replyDomain)
			return e.fillIn(doc, ff.CSSSelector, addr)
		}
		return e.fillGeneric(ctx, doc, ff, letter)
	case entity.FieldWantResponse:
		return e.fillWantResponse(ctx, doc, ff, letter)
	case entity.FieldTitle:
		return e.fillTitle(ctx, doc, ff, letter)
	case entity.FieldIssueArea:
		return e.fillIssueArea(ctx, doc, ff, letter)
	case entity.FieldStateHouse:
		return e.fillStateHouse(doc, ff, letter)
	default:
		return e.fillGeneric(ctx, doc, ff, letter)
	}
}

// fillGeneric handles every field without special policy: resolve the value
// by name, then apply it per control kind.
func (e *Engine) fillGeneric(ctx context.Context, doc *goquery.Document, ff *entity.FormField, letter *entity.Letter) error {
	ctrl, err := resolveControl(doc, ff.CSSSelector)
	if err != nil {
		return err
	}

	switch ctrl.kind {
	case kindSelect:
		if ff.NotChangeable() {
			return nil
		}
		value, err := letter.ValueFor(ff.Value)
		if err != nil {
			return err
		}
		value = e.delegateChoice(ctx, letter, ff.Value, selectOptionValues(ctrl), value)
		def := defaultNone
		if ff.Required {
			def = defaultFirstWithValue
		}
		return e.selectOption(doc, ff.CSSSelector, value, def)

	case kindCheckbox:
		// target state derives from the semantic field; idempotent when
		// the control is already correct
		_, checked := ctrl.sel.Attr("checked")
		if ff.Value == entity.FieldLeaveBlank {
			if checked {
				e.uncheck(doc, ff.CSSSelector)
			}
			return nil
		}
		if !checked {
			return e.check(doc, ff.CSSSelector, defaultNone, false)
		}
		return nil

	case kindRadio:
		if ff.Value == entity.FieldLeaveBlank {
			return nil
		}
		if _, checked := ctrl.sel.Attr("checked"); !checked {
			return e.check(doc, ff.CSSSelector, defaultNone, false)
		}
		return nil

	default:
		if ff.NotChangeable() {
			return nil
		}
		value, err := letter.ValueFor(ff.Value)
		if err != nil {
			return err
		}
		return e.fillIn(doc, ff.CSSSelector, value)
	}
}

// delegateChoice asks the configured delegate to override a computed value
// for a choice control. ErrNotImplemented keeps the computed default.
func (e *Engine) delegateChoice(ctx context.Context, letter *entity.Letter, field string, options []string, def string) string {
	if e.delegate == nil {
		return def
	}

	v, err := e.delegate.ChooseValue(ctx, output.ChoiceQuery{
		Letter:  letter,
		Field:   field,
		Options: options,
		Default: def,
	})
	if err != nil {
		if !errors.Is(err, entity.ErrNotImplemented) {
			e.logger.Warn("choice delegate failed, using default",
				"field", field, "error", err)
		}
		return def
	}
	return v
}
