package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Command prefixes for contact steps.
const (
	CommandVisitPrefix = "visit::"
	CommandSubmitForm  = "submit_form"
)

// Semantic field values with engine-level policy attached.
const (
	FieldEmail           = "email"
	FieldWantResponse    = "want_response"
	FieldTitle           = "title"
	FieldIssueArea       = "issue_area"
	FieldStateHouse      = "state_house"
	FieldLeaveBlank      = "leave_blank"
	FieldSubmitButton    = "submit_button"
	FieldCaptchaSolution = "captcha_solution"
)

// Recipient is the read-only delivery configuration for one destination:
// an ordered sequence of contact steps.
type Recipient struct {
	ID    string
	Name  string
	Steps []*ContactStep
}

// Configured reports whether the recipient can receive deliveries at all.
func (r *Recipient) Configured() bool {
	return r != nil && len(r.Steps) > 0
}

// StepsFrom returns the steps whose number is >= start, in order.
func (r *Recipient) StepsFrom(start int) []*ContactStep {
	var out []*ContactStep
	for _, s := range r.Steps {
		if s.StepNumber >= start {
			out = append(out, s)
		}
	}
	return out
}

// EnsureStepNumbers assigns step numbers by position to any step that does
// not carry one yet, mirroring the auto-index-on-save behavior of the
// configuration layer.
func (r *Recipient) EnsureStepNumbers() {
	for i, s := range r.Steps {
		if s.StepNumber == 0 {
			s.StepNumber = i + 1
		}
	}
	sort.SliceStable(r.Steps, func(i, j int) bool {
		return r.Steps[i].StepNumber < r.Steps[j].StepNumber
	})
}

// ContactStep is one ordered unit of recipient automation: either a page
// visit or a configured form submission.
type ContactStep struct {
	StepNumber int
	Command    string
	Form       *Form
}

// IsVisit reports whether the step is a page visit, returning the target URL.
func (s *ContactStep) IsVisit() (string, bool) {
	if strings.HasPrefix(s.Command, CommandVisitPrefix) {
		return strings.TrimPrefix(s.Command, CommandVisitPrefix), true
	}
	return "", false
}

// IsSubmit reports whether the step submits its configured form.
func (s *ContactStep) IsSubmit() bool {
	return strings.HasPrefix(s.Command, CommandSubmitForm)
}

// HasCaptcha reports whether executing this step requires a captcha solution.
func (s *ContactStep) HasCaptcha() bool {
	return s.IsSubmit() && s.Form != nil && s.Form.HasCaptcha()
}

func (s *ContactStep) String() string {
	return fmt.Sprintf("step %d (%s)", s.StepNumber, s.Command)
}

// Form describes the shape of a recipient's contact form for one step.
type Form struct {
	Fields            []*FormField
	SubmitCSSSelector string
	SuccessString     string

	// UseRealEmail forces the sender's actual address even when a reply
	// domain is configured (some forms reject plus-addressed mailboxes).
	UseRealEmail bool

	CaptchaImage       *CaptchaImageSpec
	SecondaryChallenge *SecondaryChallengeSpec
}

// HasCaptcha reports whether any field expects a captcha solution or a
// secondary challenge is configured.
func (f *Form) HasCaptcha() bool {
	for _, ff := range f.Fields {
		if ff.Value == FieldCaptchaSolution {
			return true
		}
	}
	return f.SecondaryChallenge != nil
}

// OrderedFields returns the fields sorted by field number, assigning
// positional numbers to any field missing one first.
func (f *Form) OrderedFields() []*FormField {
	for i, ff := range f.Fields {
		if ff.FieldNumber == 0 {
			ff.FieldNumber = i + 1
		}
	}
	out := make([]*FormField, len(f.Fields))
	copy(out, f.Fields)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FieldNumber < out[j].FieldNumber
	})
	return out
}

// FormField maps one semantic value onto one concrete form control.
type FormField struct {
	CSSSelector string
	Value       string
	Required    bool
	FieldNumber int
}

// NotChangeable reports whether the engine must never write to this control.
func (ff *FormField) NotChangeable() bool {
	return ff.Value == FieldSubmitButton || ff.Value == FieldLeaveBlank
}

// CaptchaImageSpec locates a rendered challenge image on the primary document.
type CaptchaImageSpec struct {
	CSSSelector string
}

// SecondaryChallengeSpec describes a challenge hosted on a separate endpoint:
// the page carrying the challenge, the sub-form that redeems a solution, and
// where the redemption token surfaces afterwards.
type SecondaryChallengeSpec struct {
	// URL of the separate challenge page.
	URL string
	// ImageCSSSelector locates the challenge image on that page.
	ImageCSSSelector string
	// Form is the redemption sub-form; its captcha_solution field receives
	// the supplied solution.
	Form *Form
	// TokenCSSSelector locates the element carrying the redemption token in
	// the redemption response.
	TokenCSSSelector string
	// TokenAttr names the attribute holding the token; empty means the
	// element's text content.
	TokenAttr string
	// TokenFieldCSSSelector locates the control in the primary form that the
	// token is injected into before submission.
	TokenFieldCSSSelector string
}
