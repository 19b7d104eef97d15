package sanitize

import (
	"regexp"
	"strings"
)

// Rule is one ordered pattern in the chain. Rules identify text that looks
// like internal deliberation rather than customer-facing prose.
type Rule struct {
	Name    string
	Locale  string // "en" | "ar" | "" for locale-agnostic
	Pattern *regexp.Regexp
}

// When one rule's matches cover more than this fraction of the trimmed
// chunk, the whole chunk is treated as internal monologue and dropped.
const discardNumerator, discardDenominator = 1, 2

type Sanitizer struct {
	rules []Rule
}

func New(rules ...Rule) *Sanitizer {
	return &Sanitizer{rules: rules}
}

func Default() *Sanitizer {
	return New(DefaultRules()...)
}

// Filter applies the rules for the given locale, in order, to one streamed
// fragment; locale-agnostic rules always run, and an empty locale runs the
// whole chain. A rule whose matches cover more than half of the trimmed
// text discards the entire chunk; otherwise only the matched spans are
// stripped. Afterwards runs of 3+ newlines collapse to 2 and the result is
// trimmed. Idempotent on text that is already clean.
func (s *Sanitizer) Filter(chunk, locale string) string {
	text := chunk
	for _, r := range s.rules {
		if r.Locale != "" && locale != "" && r.Locale != locale {
			continue
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return ""
		}

		locs := r.Pattern.FindAllStringIndex(text, -1)
		if locs == nil {
			continue
		}

		matched := 0
		for _, l := range locs {
			matched += l[1] - l[0]
		}
		if matched*discardDenominator > len(trimmed)*discardNumerator {
			return ""
		}

		text = r.Pattern.ReplaceAllString(text, "")
	}

	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var newlineRuns = regexp.MustCompile(`\n{3,}`)
