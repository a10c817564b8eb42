package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

var kindOrder = []dataset.Kind{dataset.KindNumeric, dataset.KindText, dataset.KindDate, dataset.KindBoolean}

func comprehensive(r *Result, p *dataset.Profile, ds *dataset.Dataset) {
	r.add("Overview", fmt.Sprintf("The dataset %shas %s rows and %d columns.",
		quotedName(p.Name), FormatNumber(float64(p.RowCount)), p.ColumnCount))

	cols := make([]string, 0, len(p.ColumnNames))
	for _, name := range p.ColumnNames {
		cols = append(cols, fmt.Sprintf("%s (%s)", name, p.Dtypes[name]))
	}
	r.add("Columns", bullets(cols))

	type miss struct {
		name  string
		count int
		order int
	}
	var missing []miss
	for i, name := range p.ColumnNames {
		if n := p.NullCounts[name]; n > 0 {
			missing = append(missing, miss{name, n, i})
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		if missing[i].count == missing[j].count {
			return missing[i].order < missing[j].order
		}
		return missing[i].count > missing[j].count
	})
	if len(missing) == 0 {
		r.add("Missing data", "No missing values.")
	} else {
		lines := make([]string, 0, len(missing))
		for _, m := range missing {
			lines = append(lines, fmt.Sprintf("%s: %d missing (%.1f%%)", m.name, m.count, percent(m.count, p.RowCount)))
		}
		r.add("Missing data", bullets(lines))
	}

	var kinds []string
	for _, k := range kindOrder {
		if n := len(p.ColumnsOfKind(k)); n > 0 {
			kinds = append(kinds, fmt.Sprintf("%s: %d", k, n))
		}
	}
	r.add("Column types", bullets(kinds))

	if insights := keyInsights(p, ds); len(insights) > 0 {
		r.add("Key insights", bullets(insights))
	}

	r.Metrics["row_count"] = p.RowCount
	r.Metrics["column_count"] = p.ColumnCount
	r.Metrics["total_nulls"] = p.TotalNulls()
}

// keyInsights lists the most common value of the first text columns, the range of the
// first numeric columns and the status split when a status column exists.
func keyInsights(p *dataset.Profile, ds *dataset.Dataset) []string {
	var out []string
	for i, name := range p.ColumnsOfKind(dataset.KindText) {
		if i == 3 {
			break
		}
		if tops := p.TopValues[name]; len(tops) > 0 {
			out = append(out, fmt.Sprintf("Most common %s: %s (%d rows)", name, tops[0].Value, tops[0].Count))
		}
	}
	for i, name := range p.ColumnsOfKind(dataset.KindNumeric) {
		if i == 3 {
			break
		}
		s := p.NumericSummary[name]
		if s.Count == 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%s ranges from %s to %s (average %s)",
			name, FormatNumber(round2(s.Min)), FormatNumber(round2(s.Max)), FormatNumber(round2(s.Mean))))
	}
	if line := statusSplit(ds); line != "" {
		out = append(out, line)
	}
	return out
}

func statusSplit(ds *dataset.Dataset) string {
	col := ColumnFor(ds, RoleStatus)
	if col < 0 || ds.Columns[col].Kind != dataset.KindText {
		return ""
	}
	counts := valueCounts(ds, col)
	if len(counts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(counts))
	for _, vc := range counts {
		parts = append(parts, fmt.Sprintf("%s %d", vc.Value, vc.Count))
	}
	return fmt.Sprintf("%s split: %s", ds.Columns[col].Name, strings.Join(parts, ", "))
}

func quotedName(name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf("%q ", name)
}

func generic(r *Result, p *dataset.Profile, ds *dataset.Dataset) {
	r.add("Note", "Your question did not match a specific analysis pattern, so here is a general overview of the data.")
	comprehensive(r, p, ds)
	r.add("Try asking", bullets(Suggest(p)))
}
