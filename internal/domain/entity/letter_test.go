package entity

import (
	"errors"
	"strings"
	"testing"
)

func testThread() *Thread {
	return &Thread{
		ID:              42,
		SenderTitle:     "Ms.",
		SenderFirstName: "Jane",
		SenderLastName:  "Doe",
		SenderEmail:     "jane@example.com",
		SenderPhone:     "555-0100",
		SenderAddress1:  "1 Main St",
		SenderCity:      "Springfield",
		SenderState:     "CA",
		SenderZip5:      "90210",
	}
}

func TestNewLetterValidation(t *testing.T) {
	thread := testThread()

	if _, err := NewLetter("l1", thread, "", "body"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty subject: got %v, want ErrInvalidInput", err)
	}
	if _, err := NewLetter("l1", thread, "subject", "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank message: got %v, want ErrInvalidInput", err)
	}
	if _, err := NewLetter("l1", thread, strings.Repeat("s", MaxSubjectLen+1), "body"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("oversized subject: got %v, want ErrInvalidInput", err)
	}
	if _, err := NewLetter("l1", thread, "subject", strings.Repeat("m", MaxMessageLen+1)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("oversized message: got %v, want ErrInvalidInput", err)
	}

	letter, err := NewLetter("l1", thread, "subject", "body")
	if err != nil {
		t.Fatalf("valid letter: %v", err)
	}
	if letter.Status != StatusStart {
		t.Errorf("new letter status = %q, want %q", letter.Status, StatusStart)
	}
}

func TestNewLetterTruncatesLongSubject(t *testing.T) {
	subject := strings.Repeat("x", 400)
	letter, err := NewLetter("l1", testThread(), subject, "body")
	if err != nil {
		t.Fatal(err)
	}
	if len(letter.Subject) != 255 {
		t.Errorf("stored subject length = %d, want 255", len(letter.Subject))
	}
	if !strings.HasSuffix(letter.Subject, "...") {
		t.Errorf("truncated subject should end with ellipsis, got %q", letter.Subject[240:])
	}
}

func TestValueFor(t *testing.T) {
	letter, err := NewLetter("l1", testThread(), "the subject", "the body")
	if err != nil {
		t.Fatal(err)
	}
	letter.IssueArea = "Housing"
	letter.CaptchaSolution = "xkcd"

	cases := map[string]string{
		"message":          "the body",
		"subject":          "the subject",
		"issue_area":       "Housing",
		"full_name":        "Jane Doe",
		"captcha_solution": "xkcd",
		"first_name":       "Jane",
		"email":            "jane@example.com",
		"state":            "CA",
		"zip5":             "90210",
	}
	for field, want := range cases {
		got, err := letter.ValueFor(field)
		if err != nil {
			t.Errorf("ValueFor(%q): %v", field, err)
			continue
		}
		if got != want {
			t.Errorf("ValueFor(%q) = %q, want %q", field, got, want)
		}
	}

	if _, err := letter.ValueFor("shoe_size"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field: got %v, want ErrUnknownField", err)
	}
}

func TestStateHouseValue(t *testing.T) {
	got, ok := StateHouseValue("CA")
	if !ok || got != "CACalifornia" {
		t.Errorf("StateHouseValue(CA) = %q, %v, want CACalifornia", got, ok)
	}
	if _, ok := StateHouseValue("XX"); ok {
		t.Errorf("unknown abbreviation should not resolve")
	}
}

func TestResumeStatePicksCheckpointByResult(t *testing.T) {
	before := &BrowserState{URI: "http://example.com/form"}
	after := &BrowserState{URI: "http://example.com/submitted"}

	attempt := &DeliveryAttempt{BeforeState: before, AfterState: after}

	attempt.Result = ResultCaptchaRequired
	if got, kind := attempt.ResumeState(); got != before || kind != StateBefore {
		t.Errorf("CAPTCHA_REQUIRED should resume from the before checkpoint")
	}

	attempt.Result = ResultCaptchaWrong
	if got, kind := attempt.ResumeState(); got != after || kind != StateAfter {
		t.Errorf("CAPTCHA_WRONG should resume from the after checkpoint")
	}
}

func TestHasCaptchaOutcome(t *testing.T) {
	attempt := &DeliveryAttempt{Result: "WARNING: Confirmation message not found."}
	if attempt.HasCaptchaOutcome() {
		t.Errorf("warning result is not a captcha outcome")
	}
	for _, result := range []string{ResultCaptchaRequired, ResultCaptchaWrong} {
		attempt.Result = result
		if !attempt.HasCaptchaOutcome() {
			t.Errorf("%s should be a captcha outcome", result)
		}
	}
}
