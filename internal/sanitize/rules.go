package sanitize

import "regexp"

// DefaultRules covers English and Arabic. Order matters: opener rules run
// before the tool-mention rules so a hedging prefix is stripped before the
// coverage of the remaining text is judged. New rules slot in here without
// touching any call site.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "en-hedging-opener",
			Locale:  "en",
			Pattern: regexp.MustCompile(`(?i)^\s*(let me|i will|i'll|first,? i|okay,? i|alright,? i|now i|i need to|i should)\b[^.!?\n]*[.!?]\s*`),
		},
		{
			Name:    "en-tool-mention",
			Locale:  "en",
			Pattern: regexp.MustCompile(`(?i)[^.!?\n]*\b(function|tool)\s+(call|result|response)s?\b[^.!?\n]*[.!?]?\s*`),
		},
		{
			Name:    "ar-hedging-opener",
			Locale:  "ar",
			Pattern: regexp.MustCompile(`^\s*(دعني|دعنى|سأقوم|سوف أقوم|حسنًا، سأ|الآن سأ)[^.!؟\n]*[.!؟]\s*`),
		},
		{
			Name:    "ar-tool-mention",
			Locale:  "ar",
			Pattern: regexp.MustCompile(`[^.!؟\n]*(نتيجة الدالة|نتيجة الأداة|استدعاء الدالة)[^.!؟\n]*[.!؟]?\s*`),
		},
	}
}
