// Package analysis derives data-grounded answers, chart choices and question
// suggestions from a Dataset without any external service.
package analysis

import (
	"strings"
	"time"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/intent"
)

// now is the clock used for overdue checks; tests replace it.
var now = time.Now

// Analyze answers question for the given intent using only the profile and the dataset.
// It fails only with *dataset.EmptyDatasetError. A nil profile is computed from ds.
func Analyze(in intent.Intent, question string, p *dataset.Profile, ds *dataset.Dataset) (*Result, error) {
	if ds == nil || ds.Len() == 0 || len(ds.Columns) == 0 {
		name := ""
		if ds != nil {
			name = ds.Name
		}
		return nil, &dataset.EmptyDatasetError{Name: name}
	}
	if p == nil {
		var err error
		if p, err = dataset.NewProfile(ds); err != nil {
			return nil, err
		}
	}
	r := &Result{Intent: in, Metrics: map[string]any{}}
	switch in {
	case intent.Comprehensive:
		comprehensive(r, p, ds)
	case intent.RiskAssessment:
		riskAssessment(r, ds)
	case intent.Performance:
		performance(r, ds)
	case intent.Trend:
		trend(r, ds)
	case intent.Recommendation:
		recommendation(r, ds)
	case intent.Ranking:
		ranking(r, question, ds)
	case intent.Distribution:
		distribution(r, question, ds)
	default:
		r.Intent = intent.Generic
		generic(r, p, ds)
	}
	r.Chart = SelectChart(r.Intent, ds, r.Metrics)
	return r, nil
}

// valueCounts tallies non-missing trimmed values of a column.
func valueCounts(ds *dataset.Dataset, col int) []dataset.ValueCount {
	m := map[string]int{}
	for i := range ds.Rows {
		if ds.Missing(i, col) {
			continue
		}
		m[ds.Cell(i, col)]++
	}
	return dataset.SortCounts(m)
}

// namedColumn returns the column of one of kinds whose name appears in the question
// as whole words; the final word may carry a plural "s" or "es". The longest name wins
// so "Net Revenue" beats "Revenue"; ties keep dataset order.
func namedColumn(ds *dataset.Dataset, question string, kinds ...dataset.Kind) int {
	q := splitWords(strings.ToLower(question))
	best := -1
	for _, j := range ds.ColumnsOfKind(kinds...) {
		name := splitWords(strings.ToLower(ds.Columns[j].Name))
		if len(name) == 0 || !containsPhrase(q, name) {
			continue
		}
		if best < 0 || len(ds.Columns[j].Name) > len(ds.Columns[best].Name) {
			best = j
		}
	}
	return best
}

func containsPhrase(words, phrase []string) bool {
	last := len(phrase) - 1
outer:
	for i := 0; i+last < len(words); i++ {
		for k, p := range phrase {
			w := words[i+k]
			if w == p || (k == last && (w == p+"s" || w == p+"es")) {
				continue
			}
			continue outer
		}
		return true
	}
	return false
}

func firstOfKind(ds *dataset.Dataset, kinds ...dataset.Kind) int {
	if cols := ds.ColumnsOfKind(kinds...); len(cols) > 0 {
		return cols[0]
	}
	return -1
}

func columnName(ds *dataset.Dataset, col int) string {
	if col < 0 {
		return ""
	}
	return ds.Columns[col].Name
}

func bullets(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "- " + strings.Join(lines, "\n- ")
}
