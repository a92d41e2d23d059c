package mechanize

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// submission is a form flattened into what goes over the wire.
type submission struct {
	method string
	action string
	values url.Values
}

// buildSubmission locates the submit control, walks up to its enclosing
// form and serializes the form's successful controls from the live document.
func (s *Session) buildSubmission(submitSelector string) (*submission, error) {
	control := s.doc.Find(submitSelector).First()
	if control.Length() == 0 {
		return nil, fmt.Errorf("submit control %q not found on %s", submitSelector, s.CurrentURI())
	}

	form := EnclosingForm(control)
	if form == nil {
		return nil, fmt.Errorf("submit control %q is not nested in a form", submitSelector)
	}

	method := http.MethodGet
	if m, ok := form.Attr("method"); ok && strings.EqualFold(m, "post") {
		method = http.MethodPost
	}

	action := s.CurrentURI()
	if a, ok := form.Attr("action"); ok && strings.TrimSpace(a) != "" {
		action = s.resolve(strings.TrimSpace(a))
	}

	return &submission{
		method: method,
		action: action,
		values: serializeForm(form, control),
	}, nil
}

// EnclosingForm walks up from a control to its form element, nil when the
// control is not inside one.
func EnclosingForm(control *goquery.Selection) *goquery.Selection {
	form := control.Closest("form")
	if form.Length() == 0 {
		return nil
	}
	return form
}

// serializeForm collects the form's successful controls. Only the clicked
// submit control contributes its value; unchecked boxes, disabled and
// unnamed controls are skipped, as a browser would.
func serializeForm(form, clicked *goquery.Selection) url.Values {
	values := url.Values{}
	clickedNode := clicked.Get(0)

	form.Find("input, textarea, select").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := sel.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(sel) {
		case "textarea":
			values.Add(name, sel.Text())

		case "select":
			selected := sel.Find("option[selected]").First()
			if selected.Length() == 0 {
				return
			}
			values.Add(name, optionValue(selected))

		case "input":
			typ, _ := sel.Attr("type")
			switch strings.ToLower(typ) {
			case "checkbox", "radio":
				if _, checked := sel.Attr("checked"); !checked {
					return
				}
				v, ok := sel.Attr("value")
				if !ok {
					v = "on"
				}
				values.Add(name, v)
			case "submit", "image", "button":
				if sel.Get(0) != clickedNode {
					return
				}
				v, _ := sel.Attr("value")
				values.Add(name, v)
			case "file":
				// file uploads are outside what contact forms need
			default:
				v, _ := sel.Attr("value")
				values.Add(name, v)
			}
		}
	})

	return values
}

// optionValue is the wire value of an option: its value attribute, or its
// text when the attribute is absent.
func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}
