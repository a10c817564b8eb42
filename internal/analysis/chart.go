package analysis

import (
	"fmt"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/intent"
)

// pieMaxSlices is the largest category count drawn as a pie; more becomes a donut.
const pieMaxSlices = 6

// SelectChart picks a chart for the intent from the derived metrics. It returns nil
// when nothing is plottable. ds is consulted for risk flags when the metrics lack them.
func SelectChart(in intent.Intent, ds *dataset.Dataset, metrics map[string]any) *ChartSpec {
	switch in {
	case intent.Distribution:
		counts, _ := metrics["value_counts"].([]dataset.ValueCount)
		col, _ := metrics["column"].(string)
		if len(counts) == 0 {
			return nil
		}
		kind := ChartPie
		if len(counts) > pieMaxSlices {
			kind = ChartDonut
		}
		pts := make([]Point, 0, len(counts))
		for _, vc := range counts {
			pts = append(pts, Point{Label: vc.Value, Value: float64(vc.Count)})
		}
		return &ChartSpec{Kind: kind, XField: col, YField: "count", ColorField: col, Title: fmt.Sprintf("Distribution of %s", col), Points: pts}

	case intent.Ranking:
		rows, _ := metrics["ranking"].([]RankedRow)
		if len(rows) == 0 {
			return nil
		}
		valueCol, _ := metrics["value_column"].(string)
		labelCol, _ := metrics["label_column"].(string)
		if labelCol == "" {
			labelCol = "row"
		}
		pts := make([]Point, 0, len(rows))
		for _, row := range rows {
			pts = append(pts, Point{Label: row.Label, Value: row.Value})
		}
		return &ChartSpec{Kind: ChartBar, XField: labelCol, YField: valueCol, Title: fmt.Sprintf("Top %s", valueCol), Points: pts}

	case intent.Performance:
		groups, _ := metrics["groups"].([]GroupTotal)
		if len(groups) == 0 {
			return nil
		}
		groupCol, _ := metrics["group_column"].(string)
		valueCol, _ := metrics["value_column"].(string)
		if valueCol == "" {
			valueCol = "rows"
		}
		pts := make([]Point, 0, len(groups))
		for _, g := range groups {
			pts = append(pts, Point{Label: g.Group, Value: g.Value})
		}
		return &ChartSpec{Kind: ChartBar, XField: groupCol, YField: valueCol, ColorField: groupCol, Title: fmt.Sprintf("%s by %s", valueCol, groupCol), Points: pts}

	case intent.Trend:
		buckets, _ := metrics["buckets"].([]Bucket)
		if len(buckets) == 0 {
			return nil
		}
		dateCol, _ := metrics["date_column"].(string)
		valueCol, _ := metrics["value_column"].(string)
		if valueCol == "" {
			valueCol = "rows"
		}
		pts := make([]Point, 0, len(buckets))
		for _, b := range buckets {
			pts = append(pts, Point{Label: b.Period, Value: b.Value})
		}
		return &ChartSpec{Kind: ChartLine, XField: dateCol, YField: valueCol, Title: fmt.Sprintf("%s per month", valueCol), Points: pts}
	}

	flags, ok := metrics["risk_flags"].([]RiskFlag)
	if !ok {
		if ds == nil || ds.Len() == 0 {
			return nil
		}
		flags = assessRisk(ds).flags
	}
	for _, f := range flags {
		if len(f.Categories) < 2 {
			continue
		}
		pts := make([]Point, 0, len(f.Categories))
		for _, vc := range f.Categories {
			pts = append(pts, Point{Label: vc.Value, Value: float64(vc.Count)})
		}
		return &ChartSpec{Kind: ChartBar, XField: f.Column, YField: "count", ColorField: f.Column, Title: fmt.Sprintf("Adverse values in %s", f.Column), Points: pts}
	}
	return nil
}
