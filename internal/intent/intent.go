// Package intent maps free-text questions to a closed set of analysis intents.
package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Intent is the classified analytical purpose of a question.
type Intent string

const (
	Comprehensive  Intent = "comprehensive"
	RiskAssessment Intent = "risk_assessment"
	Performance    Intent = "performance"
	Trend          Intent = "trend"
	Recommendation Intent = "recommendation"
	Ranking        Intent = "ranking"
	Distribution   Intent = "distribution"
	Generic        Intent = "generic"
)

type rule struct {
	intent   Intent
	keywords []string
	patterns []*regexp.Regexp
}

// rules are evaluated in order; the first group with any match wins.
var rules = []rule{
	{intent: Comprehensive, keywords: []string{"comprehensive", "overview", "full analysis", "everything about", "summary", "summarize"}},
	{intent: RiskAssessment, keywords: []string{"risk", "issue", "problem", "concern", "alert"}},
	{
		intent:   Performance,
		keywords: []string{"performance", "performing", "executive"},
		patterns: []*regexp.Regexp{regexp.MustCompile(`\bhow (is|are)\b.*\bdoing\b`)},
	},
	{intent: Trend, keywords: []string{"trend", "over time", "pattern", "history", "historical"}},
	{intent: Recommendation, keywords: []string{"recommend", "suggest", "should", "improve", "action"}},
	{intent: Ranking, keywords: []string{"top", "best", "worst", "rank", "highest", "lowest"}},
	{
		intent:   Distribution,
		keywords: []string{"distribution", "breakdown"},
		patterns: []*regexp.Regexp{regexp.MustCompile(`\bhow many\b.*\bby\b`)},
	},
}

var keywordRes = compileKeywords()

// compileKeywords anchors each keyword at a word start so "risk" matches "risks"
// but "top" does not match "stop".
func compileKeywords() map[string]*regexp.Regexp {
	out := map[string]*regexp.Regexp{}
	for _, r := range rules {
		for _, kw := range r.keywords {
			out[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw))
		}
	}
	return out
}

// Classify returns the first intent whose rule group matches the question.
func Classify(question string) Intent {
	q := strings.ToLower(strings.Join(strings.Fields(question), " "))
	if q == "" {
		return Generic
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if keywordRes[kw].MatchString(q) {
				return r.intent
			}
		}
		for _, re := range r.patterns {
			if re.MatchString(q) {
				return r.intent
			}
		}
	}
	return Generic
}

// All lists intents in classification priority order, generic last.
func All() []Intent {
	out := make([]Intent, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.intent)
	}
	return append(out, Generic)
}

// Parse validates an intent tag.
func Parse(s string) (Intent, error) {
	tag := Intent(strings.ToLower(strings.TrimSpace(s)))
	for _, in := range All() {
		if in == tag {
			return in, nil
		}
	}
	return "", fmt.Errorf("unknown intent %q", s)
}
