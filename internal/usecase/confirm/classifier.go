// Package confirm classifies post-submission documents.
package confirm

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"formageddon/internal/domain/entity"
)

// Result of classifying a post-submission document.
type Result int

const (
	// Success: the recipient-specific pattern or the generic heuristic
	// matched.
	Success Result = iota
	// Ambiguous: no pattern is configured and the heuristic found nothing;
	// delivery cannot be disproved.
	Ambiguous
	// Failure: a configured pattern did not match.
	Failure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case Ambiguous:
		return "AMBIGUOUS"
	default:
		return "FAILURE"
	}
}

var genericRe = regexp.MustCompile(`(?i)(thank you|message sent)`)

// Classify inspects the document against the form's success pattern with the
// generic confirmation heuristic as fallback.
func Classify(doc *goquery.Document, form *entity.Form) Result {
	var text string
	if doc != nil {
		if html, err := doc.Html(); err == nil {
			text = html
		}
	}

	if form.SuccessString != "" && matchPattern(form.SuccessString, text) {
		return Success
	}
	if genericRe.MatchString(text) {
		return Success
	}
	if form.SuccessString == "" {
		return Ambiguous
	}
	return Failure
}

// matchPattern treats the configured success string as a regular expression,
// degrading to a substring match when it does not compile.
func matchPattern(pattern, text string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return strings.Contains(text, pattern)
	}
	return re.MatchString(text)
}
