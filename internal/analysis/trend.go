package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

// flatBand is the relative change between half averages still reported as flat.
const flatBand = 0.02

const (
	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionFlat = "flat"
)

func trend(r *Result, ds *dataset.Dataset) {
	d := firstOfKind(ds, dataset.KindDate)
	if d < 0 {
		r.add("Trend", "No date column was found, so there is no timeline to analyze.")
		r.Metrics["direction"] = DirectionFlat
		r.Metrics["buckets"] = []Bucket{}
		return
	}
	v := firstOfKind(ds, dataset.KindNumeric)
	buckets := monthlyBuckets(ds, d, v)
	dir, firstAvg, secondAvg := direction(buckets)

	r.Metrics["date_column"] = ds.Columns[d].Name
	r.Metrics["value_column"] = columnName(ds, v)
	r.Metrics["buckets"] = buckets
	r.Metrics["direction"] = dir
	r.Metrics["first_half_avg"] = firstAvg
	r.Metrics["second_half_avg"] = secondAvg

	measure := columnName(ds, v)
	if measure == "" {
		measure = "row count"
	}
	if len(buckets) == 0 {
		r.add("Trend", fmt.Sprintf("%s has no parsable dates.", ds.Columns[d].Name))
		return
	}
	lines := make([]string, 0, len(buckets))
	for _, b := range buckets {
		lines = append(lines, fmt.Sprintf("%s: %s", b.Period, FormatNumber(b.Value)))
	}
	r.add(fmt.Sprintf("Monthly %s by %s", measure, ds.Columns[d].Name), bullets(lines))

	summary := fmt.Sprintf("%s is trending %s: first-half monthly average %s, second-half %s.",
		measure, dir, FormatNumber(firstAvg), FormatNumber(secondAvg))
	if len(buckets) < 2 {
		summary = fmt.Sprintf("Only one month of data (%s); %s is reported as flat.", buckets[0].Period, measure)
	}
	if mom, ok := monthOverMonth(buckets); ok {
		r.Metrics["month_over_month"] = mom
		summary += fmt.Sprintf(" Latest month changed %+.1f%% versus the previous one.", mom)
	}
	r.add("Direction", summary)
}

// monthlyBuckets sums v per calendar month of d in chronological order.
// A negative v counts rows instead.
func monthlyBuckets(ds *dataset.Dataset, d, v int) []Bucket {
	acc := map[string]*Bucket{}
	for i := range ds.Rows {
		t, ok := ds.Time(i, d)
		if !ok {
			continue
		}
		key := t.Format("2006-01")
		b, ok := acc[key]
		if !ok {
			b = &Bucket{Period: key}
			acc[key] = b
		}
		b.Rows++
		if v < 0 {
			b.Value++
			continue
		}
		if x, ok := ds.Float(i, v); ok {
			b.Value = dataset.Finite(b.Value + x)
		}
	}
	out := make([]Bucket, 0, len(acc))
	for _, b := range acc {
		b.Value = round2(b.Value)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// direction compares first-half and second-half bucket averages. The middle bucket
// of an odd count belongs to neither half.
func direction(buckets []Bucket) (string, float64, float64) {
	n := len(buckets)
	if n < 2 {
		if n == 1 {
			return DirectionFlat, buckets[0].Value, buckets[0].Value
		}
		return DirectionFlat, 0, 0
	}
	half := n / 2
	first := avg(buckets[:half])
	second := avg(buckets[n-half:])
	switch {
	case first == second:
		return DirectionFlat, first, second
	case first == 0:
		if second > 0 {
			return DirectionUp, first, second
		}
		return DirectionDown, first, second
	}
	change := (second - first) / math.Abs(first)
	switch {
	case math.Abs(change) <= flatBand:
		return DirectionFlat, first, second
	case change > 0:
		return DirectionUp, first, second
	default:
		return DirectionDown, first, second
	}
}

func avg(bs []Bucket) float64 {
	var sum float64
	for _, b := range bs {
		sum = dataset.Finite(sum + b.Value)
	}
	return round2(sum / float64(len(bs)))
}

func monthOverMonth(buckets []Bucket) (float64, bool) {
	n := len(buckets)
	if n < 2 || buckets[n-2].Value == 0 {
		return 0, false
	}
	prev, last := buckets[n-2].Value, buckets[n-1].Value
	return round1((last - prev) * 100 / math.Abs(prev)), true
}
