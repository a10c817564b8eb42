package analysis

import (
	"fmt"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

// MaxSuggestions caps the suggestion list.
const MaxSuggestions = 6

// tailored suggestions are checked in this order; each names the matched column.
var tailored = []struct {
	role     Role
	template string
}{
	{RoleRevenue, "Analyze %s performance and identify key trends"},
	{RoleStatus, "What's the distribution of %s and what insights can you provide?"},
	{RoleGeography, "How does performance compare across %s?"},
	{RoleExecutive, "How is each %s performing and what do you recommend?"},
	{RoleCustomer, "Which entries in %s need attention and why?"},
}

var genericSuggestions = []string{
	"Give me a comprehensive analysis of this dataset",
	"What are the biggest risks or issues I should be aware of?",
	"What opportunities for improvement do you see?",
	"What actions should I take based on this data?",
}

var noDataSuggestions = []string{
	"What kind of data analysis can you help me with?",
	"How can AI enhance my data analytics?",
	"What insights can you provide once I load data?",
	"Try the free AI backend, no setup required",
	"What features are available in this analytics tool?",
}

// Suggest proposes follow-up questions tailored to the profile's columns.
func Suggest(p *dataset.Profile) []string {
	if p.Empty() {
		return append([]string(nil), noDataSuggestions...)
	}
	out := make([]string, 0, MaxSuggestions)
	seen := map[string]struct{}{}
	push := func(s string) {
		if _, dup := seen[s]; dup || len(out) == MaxSuggestions {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, t := range tailored {
		if col := profileColumnFor(p, t.role); col != "" {
			push(fmt.Sprintf(t.template, col))
		}
	}
	for _, s := range genericSuggestions {
		push(s)
	}
	return out
}
