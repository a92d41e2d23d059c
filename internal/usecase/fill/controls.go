package fill

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"formageddon/internal/domain/entity"
)

// controlKind is the closed set of control shapes the engine fills. Resolved
// once per field lookup from tag and type inspection.
type controlKind int

const (
	kindText controlKind = iota
	kindTextarea
	kindSelect
	kindCheckbox
	kindRadio
)

// control is one resolved form control.
type control struct {
	kind controlKind
	sel  *goquery.Selection
}

// resolveControl locates the control for a selector and classifies it.
func resolveControl(doc *goquery.Document, selector string) (*control, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", entity.ErrFieldNotFound, selector)
	}

	switch goquery.NodeName(sel) {
	case "textarea":
		return &control{kind: kindTextarea, sel: sel}, nil
	case "select":
		return &control{kind: kindSelect, sel: sel}, nil
	case "input":
		switch strings.ToLower(sel.AttrOr("type", "text")) {
		case "checkbox":
			return &control{kind: kindCheckbox, sel: sel}, nil
		case "radio":
			return &control{kind: kindRadio, sel: sel}, nil
		}
		return &control{kind: kindText, sel: sel}, nil
	default:
		return &control{kind: kindText, sel: sel}, nil
	}
}

// defaultPolicy decides what a select gets when no option matches the value.
type defaultPolicy int

const (
	defaultNone defaultPolicy = iota
	defaultFirst
	defaultFirstWithValue
	defaultRandom
)

// fillIn writes a value into a text-like control: textareas get it as inner
// content, inputs as a value attribute.
func (e *Engine) fillIn(doc *goquery.Document, selector, value string) error {
	ctrl, err := resolveControl(doc, selector)
	if err != nil {
		return err
	}
	if ctrl.kind == kindTextarea {
		ctrl.sel.SetText(value)
	} else {
		ctrl.sel.SetAttr("value", value)
	}
	return nil
}

// selectOption marks the option matching value as selected, clearing every
// sibling first. When nothing matches, the default policy picks a fallback;
// defaultNone leaves the select untouched.
func (e *Engine) selectOption(doc *goquery.Document, selector, value string, def defaultPolicy) error {
	ctrl, err := resolveControl(doc, selector)
	if err != nil {
		return err
	}
	if ctrl.kind != kindSelect {
		return fmt.Errorf("%w: %q is not a select", entity.ErrFieldNotFound, selector)
	}

	options := ctrl.sel.Find("option")
	var chosen *goquery.Selection
	options.Each(func(_ int, opt *goquery.Selection) {
		opt.RemoveAttr("selected")
		if chosen == nil {
			if v, ok := opt.Attr("value"); ok && v == value {
				chosen = opt
			}
		}
	})

	if chosen == nil {
		valued := options.FilterFunction(func(_ int, opt *goquery.Selection) bool {
			return strings.TrimSpace(opt.AttrOr("value", "")) != ""
		})
		switch def {
		case defaultRandom:
			if valued.Length() > 0 {
				chosen = valued.Eq(e.intn(valued.Length()))
			}
		case defaultFirstWithValue:
			if valued.Length() > 0 {
				chosen = valued.First()
			}
		case defaultFirst:
			if options.Length() > 0 {
				chosen = options.First()
			}
		case defaultNone:
			// leave unmatched, caller decides
		}
	}

	if chosen != nil {
		chosen.SetAttr("selected", "selected")
	}
	return nil
}

var valuePredicateRe = regexp.MustCompile(`\[value=[^\]]+\]`)

// check sets the checked state on the control matching selector, clearing any
// sibling sharing its name inside the enclosing form first. If a
// value-qualified selector matches nothing, it retries once against the
// de-qualified selector, picking a sibling per the default policy; a second
// failure is fatal for the field.
func (e *Engine) check(doc *goquery.Document, selector string, def defaultPolicy, retried bool) error {
	el := doc.Find(selector).First()
	if el.Length() > 0 {
		scope := el.Closest("form")
		if scope.Length() == 0 {
			scope = doc.Selection
		}
		if name := el.AttrOr("name", ""); name != "" {
			scope.Find(fmt.Sprintf("[name=%q]", name)).RemoveAttr("checked")
		}
		el.SetAttr("checked", "checked")
		return nil
	}

	if retried {
		return fmt.Errorf("%w: no appropriate element for %q, giving up", entity.ErrFieldNotFound, selector)
	}

	base := valuePredicateRe.ReplaceAllString(selector, "")
	choices := doc.Find(base)
	if choices.Length() == 0 {
		return fmt.Errorf("%w: %q", entity.ErrFieldNotFound, base)
	}

	idx := 0
	if def == defaultRandom {
		idx = e.intn(choices.Length())
	}
	qualified := fmt.Sprintf("%s[value=%q]", base, choices.Eq(idx).AttrOr("value", ""))
	return e.check(doc, qualified, def, true)
}

// uncheck clears the checked state; missing elements are ignored.
func (e *Engine) uncheck(doc *goquery.Document, selector string) {
	doc.Find(selector).RemoveAttr("checked")
}

// selectOptionValues lists the option values of a select control, using the
// option text when the value attribute is absent.
func selectOptionValues(ctrl *control) []string {
	var out []string
	ctrl.sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		if v, ok := opt.Attr("value"); ok {
			out = append(out, v)
		} else {
			out = append(out, strings.TrimSpace(opt.Text()))
		}
	})
	return out
}

// radioGroup re-resolves a radio control to its full sibling group: a
// selector addressing a single radio stands for every input sharing the
// name within the enclosing form.
func radioGroup(doc *goquery.Document, ctrl *control) (name string, group *goquery.Selection) {
	name = ctrl.sel.AttrOr("name", "")
	if name == "" {
		return "", ctrl.sel
	}

	scope := ctrl.sel.Closest("form")
	if scope.Length() == 0 {
		scope = doc.Selection
	}
	return name, scope.Find(fmt.Sprintf("input[type='radio'][name=%q]", name))
}

// radioValues lists the values of a radio group.
func radioValues(group *goquery.Selection) []string {
	var out []string
	group.Each(func(_ int, r *goquery.Selection) {
		out = append(out, r.AttrOr("value", ""))
	})
	return out
}
