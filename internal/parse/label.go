package parse

import (
	"regexp"
	"strings"
)

// abbreviationRule maps a step name pattern to its short label.
type abbreviationRule struct {
	re    *regexp.Regexp
	label string
}

// Rules are tried top to bottom; the first match wins.
var abbreviationRules = []abbreviationRule{
	{regexp.MustCompile(`(?i)hot\s*pack|핫팩`), "HP"},
	{regexp.MustCompile(`(?i)ICT`), "ICT"},
	{regexp.MustCompile(`(?i)magnetic|자기장`), "Mg"},
	{regexp.MustCompile(`(?i)traction|견인`), "견인"},
	{regexp.MustCompile(`(?i)IR|적외선`), "IR"},
	{regexp.MustCompile(`(?i)TENS`), "TENS"},
	{regexp.MustCompile(`(?i)laser|레이저`), "La"},
	{regexp.MustCompile(`(?i)shockwave|충격파`), "ESWT"},
	{regexp.MustCompile(`(?i)exercise|운동`), "운동"},
	{regexp.MustCompile(`(?i)ION|이온`), "ION"},
	{regexp.MustCompile(`(?i)cold|콜드|ICE`), "Ice"},
	{regexp.MustCompile(`(?i)micro|마이크로|MW`), "MW"},
	{regexp.MustCompile(`(?i)cryo|크라이오`), "Cryo"},
}

const fallbackLabelLen = 3

// StepLabel derives the short display label for a treatment step name.
// Known modalities map to their clinic abbreviation; anything else is cut to
// its first three characters, ignoring a parenthesised suffix.
func StepLabel(name string) string {
	for _, rule := range abbreviationRules {
		if rule.re.MatchString(name) {
			return rule.label
		}
	}

	s := name
	if i := strings.Index(s, "("); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	r := []rune(s)
	if len(r) > fallbackLabelLen {
		r = r[:fallbackLabelLen]
	}
	return string(r)
}
