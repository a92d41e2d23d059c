package confirm

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"formageddon/internal/domain/entity"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		html    string
		pattern string
		want    Result
	}{
		{
			name:    "configured pattern matches",
			html:    `<html><body>Your message has been received.</body></html>`,
			pattern: "has been received",
			want:    Success,
		},
		{
			name:    "pattern is a regular expression",
			html:    `<html><body>Received 3 messages today
</body></html>`,
			pattern: `Received \d+ messages`,
			want:    Success,
		},
		{
			name:    "metacharacters in a compiling pattern miss literal text",
			html:    `<html><body>Done (probably)</body></html>`,
			pattern: `Done (probably)`, // the group swallows the parens
			want:    Failure,
		},
		{
			name:    "broken regexp degrades to substring match",
			html:    `<html><body>status [ok</body></html>`,
			pattern: `status [ok`,
			want:    Success,
		},
		{
			name:    "generic heuristic catches thank you",
			html:    `<html><body>THANK YOU for writing</body></html>`,
			pattern: "",
			want:    Success,
		},
		{
			name:    "generic heuristic rescues a missed pattern",
			html:    `<html><body>Message sent.</body></html>`,
			pattern: "you will hear from us",
			want:    Success,
		},
		{
			name:    "no pattern and no heuristic match",
			html:    `<html><body>Please try again later</body></html>`,
			pattern: "",
			want:    Ambiguous,
		},
		{
			name:    "configured pattern misses",
			html:    `<html><body>Error: required field missing</body></html>`,
			pattern: "Your message was delivered",
			want:    Failure,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := &entity.Form{SuccessString: tc.pattern}
			if got := Classify(docFrom(t, tc.html), form); got != tc.want {
				t.Errorf("Classify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyNilDocument(t *testing.T) {
	if got := Classify(nil, &entity.Form{}); got != Ambiguous {
		t.Errorf("nil document without pattern = %v, want Ambiguous", got)
	}
	if got := Classify(nil, &entity.Form{SuccessString: "ok"}); got != Failure {
		t.Errorf("nil document with pattern = %v, want Failure", got)
	}
}
