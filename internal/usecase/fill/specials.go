package fill

import (
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"formageddon/internal/domain/entity"
)

var (
	affirmativeRe = regexp.MustCompile(`(?i)(y(es)?|true)`)
	genericAreaRe = regexp.MustCompile(`(?i)(general|other)`)
)

// fillWantResponse handles the want_response field: prefer an affirmative
// option on a select, check a checkbox/radio, write the literal "Yes"
// anywhere else.
func (e *Engine) fillWantResponse(ctx context.Context, doc *goquery.Document, ff *entity.FormField, letter *entity.Letter) error {
	ctrl, err := resolveControl(doc, ff.CSSSelector)
	if err != nil {
		return err
	}

	switch ctrl.kind {
	case kindSelect:
		options := selectOptionValues(ctrl)
		value := ""
		for _, o := range options {
			if affirmativeRe.MatchString(o) {
				value = o
				break
			}
		}
		value = e.delegateChoice(ctx, letter, entity.FieldWantResponse, options, value)
		def := defaultNone
		if ff.Required {
			def = defaultFirstWithValue
		}
		return e.selectOption(doc, ff.CSSSelector, value, def)

	case kindCheckbox, kindRadio:
		return e.check(doc, ff.CSSSelector, defaultNone, false)

	default:
		return e.fillIn(doc, ff.CSSSelector, "Yes")
	}
}

// fillTitle matches the sender's title against select options, falling back
// to a random non-empty option when unmatched.
func (e *Engine) fillTitle(ctx context.Context, doc *goquery.Document, ff *entity.FormField, letter *entity.Letter) error {
	ctrl, err := resolveControl(doc, ff.CSSSelector)
	if err != nil {
		return err
	}

	value, err := letter.ValueFor(ff.Value)
	if err != nil {
		return err
	}

	if ctrl.kind == kindSelect {
		options := selectOptionValues(ctrl)
		if m := matchIgnoreCase(options, value); m != "" {
			value = m
		}
		value = e.delegateChoice(ctx, letter, entity.FieldTitle, options, value)
		return e.selectOption(doc, ff.CSSSelector, value, defaultRandom)
	}
	return e.fillIn(doc, ff.CSSSelector, value)
}

// fillIssueArea handles issue_area on selects and radio groups: a blank
// letter value falls back to a "general"/"other" option, and anything still
// unresolved gets the random default.
func (e *Engine) fillIssueArea(ctx context.Context, doc *goquery.Document, ff *entity.FormField, letter *entity.Letter) error {
	ctrl, err := resolveControl(doc, ff.CSSSelector)
	if err != nil {
		return err
	}

	value, err := letter.ValueFor(ff.Value)
	if err != nil {
		return err
	}

	switch ctrl.kind {
	case kindSelect:
		options := selectOptionValues(ctrl)
		value = e.delegateChoice(ctx, letter, entity.FieldIssueArea, options, value)
		if value == "" {
			value = firstMatch(options, genericAreaRe)
		}
		return e.selectOption(doc, ff.CSSSelector, value, defaultRandom)

	case kindRadio:
		name, group := radioGroup(doc, ctrl)
		options := radioValues(group)
		value = e.delegateChoice(ctx, letter, entity.FieldIssueArea, options, value)
		if value == "" {
			value = firstMatch(options, genericAreaRe)
		}
		selector := fmt.Sprintf("input[name=%q][value=%q]", name, value)
		return e.check(doc, selector, defaultRandom, false)

	default:
		return e.fillIn(doc, ff.CSSSelector, value)
	}
}

// fillStateHouse writes the legacy abbreviation+name concatenation expected
// by old house contact forms.
func (e *Engine) fillStateHouse(doc *goquery.Document, ff *entity.FormField, letter *entity.Letter) error {
	abbr, err := letter.ValueFor("state")
	if err != nil {
		return err
	}
	value, ok := entity.StateHouseValue(abbr)
	if !ok {
		return fmt.Errorf("fill state_house: unknown state %q: %w", abbr, entity.ErrUnknownField)
	}
	return e.fillIn(doc, ff.CSSSelector, value)
}

func matchIgnoreCase(options []string, value string) string {
	re, err := regexp.Compile(`(?i)^` + regexp.QuoteMeta(value) + `$`)
	if err != nil || value == "" {
		return ""
	}
	for _, o := range options {
		if re.MatchString(o) {
			return o
		}
	}
	return ""
}

func firstMatch(options []string, re *regexp.Regexp) string {
	for _, o := range options {
		if re.MatchString(o) {
			return o
		}
	}
	return ""
}
