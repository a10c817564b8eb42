package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

// RankLimit caps the number of ranked rows returned.
const RankLimit = 10

func ranking(r *Result, question string, ds *dataset.Dataset) {
	v := namedColumn(ds, question, dataset.KindNumeric)
	if v < 0 {
		v = firstOfKind(ds, dataset.KindNumeric)
	}
	if v < 0 {
		r.add("Ranking", "No numeric column was found to rank by.")
		r.Metrics["ranking"] = []RankedRow{}
		return
	}
	label := firstOfKind(ds, dataset.KindText)

	rows := make([]RankedRow, 0, ds.Len())
	for i := range ds.Rows {
		x, ok := ds.Float(i, v)
		if !ok {
			continue
		}
		name := fmt.Sprintf("row %d", i+1)
		if label >= 0 && !ds.Missing(i, label) {
			name = ds.Cell(i, label)
		}
		rows = append(rows, RankedRow{Label: name, Value: x, Row: i + 1})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })
	if len(rows) > RankLimit {
		rows = rows[:RankLimit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}

	r.Metrics["value_column"] = ds.Columns[v].Name
	r.Metrics["label_column"] = columnName(ds, label)
	r.Metrics["ranking"] = rows

	if len(rows) == 0 {
		r.add("Ranking", fmt.Sprintf("%s has no numeric values to rank.", ds.Columns[v].Name))
		return
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%d. %s: %s", row.Rank, row.Label, FormatNumber(row.Value)))
	}
	r.add(fmt.Sprintf("Top %d by %s", len(rows), ds.Columns[v].Name), strings.Join(lines, "\n"))
}
