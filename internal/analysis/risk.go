package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

// adverseValues are the categorical values read as a negative signal in a risk column.
var adverseValues = map[string]struct{}{
	"red": {}, "at risk": {}, "churned": {}, "critical": {}, "high": {},
}

// IsAdverse reports whether a risk-column value signals a problem.
func IsAdverse(v string) bool {
	_, ok := adverseValues[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

const concentrationThreshold = 30.0

type riskSummary struct {
	columns       []string
	flags         []RiskFlag
	total         int
	concentration *Concentration
	overdue       *Overdue
}

func assessRisk(ds *dataset.Dataset) riskSummary {
	s := riskSummary{columns: []string{}, flags: []RiskFlag{}}
	rows := ds.Len()
	for _, j := range ColumnsFor(ds, RoleRisk) {
		if ds.Columns[j].Kind != dataset.KindText {
			continue
		}
		s.columns = append(s.columns, ds.Columns[j].Name)
		counts := map[string]int{}
		labels := map[string]string{}
		adverse := 0
		for i := 0; i < rows; i++ {
			if ds.Missing(i, j) {
				continue
			}
			v := ds.Cell(i, j)
			if !IsAdverse(v) {
				continue
			}
			key := strings.ToLower(v)
			if _, seen := labels[key]; !seen {
				labels[key] = v
			}
			counts[labels[key]]++
			adverse++
		}
		if adverse == 0 {
			continue
		}
		s.flags = append(s.flags, RiskFlag{
			Column:     ds.Columns[j].Name,
			Adverse:    adverse,
			Percent:    percent(adverse, rows),
			Categories: dataset.SortCounts(counts),
		})
		s.total += adverse
	}

	for _, j := range ColumnsFor(ds, RoleCustomer) {
		if ds.Columns[j].Kind != dataset.KindText {
			continue
		}
		if counts := valueCounts(ds, j); len(counts) > 0 {
			if pct := percent(counts[0].Count, rows); pct > concentrationThreshold {
				s.concentration = &Concentration{Column: ds.Columns[j].Name, Value: counts[0].Value, Count: counts[0].Count, Percent: pct}
			}
		}
		break
	}

	if j := ColumnFor(ds, RoleEndDate); j >= 0 {
		today := now()
		n := 0
		for i := 0; i < rows; i++ {
			if t, ok := ds.Time(i, j); ok && t.Before(today) {
				n++
			}
		}
		if n > 0 {
			s.overdue = &Overdue{Column: ds.Columns[j].Name, Count: n}
		}
	}
	return s
}

func (s riskSummary) record(m map[string]any) {
	m["risk_flags"] = s.flags
	m["risk_columns"] = s.columns
	m["adverse_total"] = s.total
	if s.concentration != nil {
		m["concentration"] = *s.concentration
	}
	if s.overdue != nil {
		m["overdue"] = *s.overdue
	}
}

func riskAssessment(r *Result, ds *dataset.Dataset) {
	s := assessRisk(ds)
	s.record(r.Metrics)

	switch {
	case len(s.columns) == 0:
		r.add("Risk indicators", "No risk indicators were found. No text column name mentions health, status, risk or churn.")
	case len(s.flags) == 0:
		r.add("Risk indicators", fmt.Sprintf("Checked %s; no adverse values (red, at risk, churned, critical, high) were found.",
			strings.Join(s.columns, ", ")))
	default:
		lines := make([]string, 0, len(s.flags))
		for _, f := range s.flags {
			lines = append(lines, fmt.Sprintf("%s: %d of %d rows (%.1f%%) are adverse (%s)",
				f.Column, f.Adverse, ds.Len(), f.Percent, joinCounts(f.Categories)))
		}
		r.add("Risk indicators", bullets(lines))
	}
	if c := s.concentration; c != nil {
		r.add("Customer concentration", fmt.Sprintf("%s accounts for %d of %d rows (%.1f%%) in %s.",
			c.Value, c.Count, ds.Len(), c.Percent, c.Column))
	}
	if o := s.overdue; o != nil {
		r.add("Overdue items", fmt.Sprintf("%d rows have a %s in the past.", o.Count, o.Column))
	}
}

func joinCounts(vcs []dataset.ValueCount) string {
	parts := make([]string, 0, len(vcs))
	for _, vc := range vcs {
		parts = append(parts, fmt.Sprintf("%s: %d", vc.Value, vc.Count))
	}
	return strings.Join(parts, ", ")
}
