package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

const podium = 3

type perfSummary struct {
	groupCol string
	valueCol string
	groups   []GroupTotal
}

// assessPerformance sums the outcome column per owner group. Without a numeric
// column the groups are ranked by row count. ok is false when no owner column exists.
func assessPerformance(ds *dataset.Dataset) (perfSummary, bool) {
	g := ColumnFor(ds, RoleOwner)
	if g < 0 {
		return perfSummary{}, false
	}
	v := ColumnFor(ds, RoleOutcome)
	if v < 0 {
		v = firstOfKind(ds, dataset.KindNumeric)
	}
	totals := map[string]*GroupTotal{}
	var order []string
	for i := range ds.Rows {
		if ds.Missing(i, g) {
			continue
		}
		name := ds.Cell(i, g)
		t, ok := totals[name]
		if !ok {
			t = &GroupTotal{Group: name}
			totals[name] = t
			order = append(order, name)
		}
		t.Rows++
		if v < 0 {
			t.Value++
			continue
		}
		if x, ok := ds.Float(i, v); ok {
			t.Value = dataset.Finite(t.Value + x)
		}
	}
	s := perfSummary{groupCol: ds.Columns[g].Name, valueCol: columnName(ds, v), groups: make([]GroupTotal, 0, len(order))}
	for _, name := range order {
		t := *totals[name]
		t.Value = round2(t.Value)
		s.groups = append(s.groups, t)
	}
	sort.Slice(s.groups, func(i, j int) bool {
		if s.groups[i].Value == s.groups[j].Value {
			return s.groups[i].Group < s.groups[j].Group
		}
		return s.groups[i].Value > s.groups[j].Value
	})
	return s, true
}

func (s perfSummary) record(m map[string]any) {
	m["group_column"] = s.groupCol
	m["value_column"] = s.valueCol
	m["groups"] = s.groups
	m["group_count"] = len(s.groups)
}

func (s perfSummary) measure() string {
	if s.valueCol == "" {
		return "row count"
	}
	return s.valueCol
}

func performance(r *Result, ds *dataset.Dataset) {
	s, ok := assessPerformance(ds)
	if !ok {
		r.add("Performance", "No executive, owner or rep column was found to group performance by.")
		r.Metrics["group_count"] = 0
		return
	}
	s.record(r.Metrics)
	if len(s.groups) == 0 {
		r.add("Performance", fmt.Sprintf("%s has no values to group by.", s.groupCol))
		return
	}

	top := s.groups
	if len(top) > podium {
		top = top[:podium]
	}
	r.add(fmt.Sprintf("Top performers by %s", s.measure()), rankLines(top, 1))

	if len(s.groups) > podium {
		start := len(s.groups) - podium
		if start < podium {
			start = podium
		}
		r.add(fmt.Sprintf("Bottom performers by %s", s.measure()), rankLines(s.groups[start:], start+1))
	}
	r.add("Coverage", fmt.Sprintf("%d groups in %s.", len(s.groups), s.groupCol))
}

func rankLines(groups []GroupTotal, first int) string {
	lines := make([]string, 0, len(groups))
	for i, g := range groups {
		lines = append(lines, fmt.Sprintf("%d. %s: %s (%d rows)", first+i, g.Group, FormatNumber(g.Value), g.Rows))
	}
	return strings.Join(lines, "\n")
}
