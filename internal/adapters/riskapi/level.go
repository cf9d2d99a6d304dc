package riskapi

import (
	"regexp"
	"strings"

	"github.com/georisk/georisk/internal/core/domain"
)

type levelPattern struct {
	re    *regexp.Regexp
	level domain.RiskLevel
}

// Level phrases are scanned before bare words so that place names such as
// "Alto da Glória" or "nível médio do rio" never outrank an actual risk
// phrase. Word boundaries keep "planalto" from reading as "alto".
var phraseLevels = []levelPattern{
	{regexp.MustCompile(`(?i)\brisco\s+(muito\s+)?alto\b`), domain.RiskHigh},
	{regexp.MustCompile(`(?i)\balto\s+risco\b`), domain.RiskHigh},
	{regexp.MustCompile(`(?i)\brisco\s+elevado\b`), domain.RiskHigh},
	{regexp.MustCompile(`(?i)\brisco\s+m[eé]dio\b`), domain.RiskMedium},
	{regexp.MustCompile(`(?i)\bm[eé]dio\s+risco\b`), domain.RiskMedium},
	{regexp.MustCompile(`(?i)\brisco\s+moderado\b`), domain.RiskMedium},
	{regexp.MustCompile(`(?i)\brisco\s+baixo\b`), domain.RiskLow},
	{regexp.MustCompile(`(?i)\bbaixo\s+risco\b`), domain.RiskLow},
}

var wordLevels = []levelPattern{
	{regexp.MustCompile(`(?i)\balto\b`), domain.RiskHigh},
	{regexp.MustCompile(`(?i)\bm[eé]dio\b`), domain.RiskMedium},
	{regexp.MustCompile(`(?i)\bmoderado\b`), domain.RiskMedium},
	{regexp.MustCompile(`(?i)\bbaixo\b`), domain.RiskLow},
}

// deriveLevel resolves the risk level of a response. A recognised explicit
// value wins. Otherwise the earliest level phrase in the narrative decides,
// and only without any phrase does the earliest bare level word.
func deriveLevel(explicit *string, narrative string) (domain.RiskLevel, bool) {
	if explicit != nil {
		if l, ok := domain.ParseRiskLevel(*explicit); ok {
			return l, true
		}
	}
	text := strings.ToLower(narrative)
	if l, ok := earliestMatch(phraseLevels, text); ok {
		return l, true
	}
	return earliestMatch(wordLevels, text)
}

func earliestMatch(patterns []levelPattern, text string) (domain.RiskLevel, bool) {
	best, found := -1, domain.RiskLevel("")
	for _, p := range patterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best, found = loc[0], p.level
		}
	}
	return found, best != -1
}
