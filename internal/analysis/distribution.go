package analysis

import (
	"fmt"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

// distributionListLimit caps the values listed in the narrative; metrics keep all of them.
const distributionListLimit = 15

func distribution(r *Result, question string, ds *dataset.Dataset) {
	col := namedColumn(ds, question, dataset.KindText, dataset.KindBoolean)
	if col < 0 {
		col = firstOfKind(ds, dataset.KindText, dataset.KindBoolean)
	}
	if col < 0 {
		col = 0
	}
	counts := valueCounts(ds, col)
	missing := 0
	for i := range ds.Rows {
		if ds.Missing(i, col) {
			missing++
		}
	}

	name := ds.Columns[col].Name
	r.Metrics["column"] = name
	r.Metrics["value_counts"] = counts
	r.Metrics["distinct"] = len(counts)
	r.Metrics["missing"] = missing

	if len(counts) == 0 {
		r.add(fmt.Sprintf("Distribution of %s", name), "All values are missing.")
		return
	}
	lines := make([]string, 0, len(counts))
	for i, vc := range counts {
		if i == distributionListLimit {
			lines = append(lines, fmt.Sprintf("... and %d more values", len(counts)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %d (%.1f%%)", vc.Value, vc.Count, percent(vc.Count, ds.Len())))
	}
	body := bullets(lines)
	if missing > 0 {
		body += fmt.Sprintf("\n\n%d rows have no %s.", missing, name)
	}
	r.add(fmt.Sprintf("Distribution of %s", name), body)
}
