package mechanize

import "strings"

// Некоторые формы отдают битую разметку, которая ломает парсер: пустой
// self-closing div сразу за ним закрытый. Вырезаем известные фрагменты до
// парсинга.
var brokenFragments = []string{
	`<div class="clear"/> </div>`,
	`<div class="clear"/></div>`,
}

// CleanBody strips known malformed markup fragments from a raw page body
// before it is parsed.
func CleanBody(raw string) string {
	for _, frag := range brokenFragments {
		raw = strings.ReplaceAll(raw, frag, "")
	}
	return raw
}
