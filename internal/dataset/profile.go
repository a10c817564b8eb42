package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// SampleSize is the number of leading rows kept verbatim in a Profile.
const SampleSize = 3

// NumericSummary holds descriptive statistics of a numeric column.
type NumericSummary struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

// ValueCount is a categorical value with its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Profile is an immutable structural summary of a Dataset.
type Profile struct {
	Name           string                    `json:"name,omitempty"`
	RowCount       int                       `json:"row_count"`
	ColumnCount    int                       `json:"column_count"`
	ColumnNames    []string                  `json:"column_names"`
	Dtypes         map[string]Kind           `json:"dtypes"`
	NullCounts     map[string]int            `json:"null_counts"`
	NumericSummary map[string]NumericSummary `json:"numeric_summary"`
	SampleRows     []map[string]string       `json:"sample_rows"`
	// Unique counts distinct non-missing values of non-numeric columns.
	Unique map[string]int `json:"unique,omitempty"`
	// TopValues keeps the three most frequent values of text columns.
	TopValues map[string][]ValueCount `json:"top_values,omitempty"`
	Warnings  []string                `json:"warnings,omitempty"`
}

// NewProfile computes a Profile. It fails only when ds is nil.
func NewProfile(ds *Dataset) (*Profile, error) {
	if ds == nil {
		return nil, &EmptyDatasetError{}
	}
	p := &Profile{
		Name:           ds.Name,
		RowCount:       len(ds.Rows),
		ColumnCount:    len(ds.Columns),
		ColumnNames:    ds.ColumnNames(),
		Dtypes:         make(map[string]Kind, len(ds.Columns)),
		NullCounts:     make(map[string]int, len(ds.Columns)),
		NumericSummary: map[string]NumericSummary{},
		SampleRows:     []map[string]string{},
		Unique:         map[string]int{},
		TopValues:      map[string][]ValueCount{},
		Warnings:       append([]string(nil), ds.Warnings...),
	}
	for j, c := range ds.Columns {
		p.Dtypes[c.Name] = c.Kind
		var miss, n int
		var mean, m2 float64
		lo, hi := math.Inf(1), math.Inf(-1)
		cats := map[string]int{}
		numeric := c.Kind == KindNumeric
		for i := range ds.Rows {
			if ds.Missing(i, j) {
				miss++
				continue
			}
			if !numeric {
				cats[ds.Cell(i, j)]++
				continue
			}
			x, ok := ds.Float(i, j)
			if !ok {
				continue
			}
			// Welford update
			n++
			if x < lo {
				lo = x
			}
			if x > hi {
				hi = x
			}
			delta := Finite(x - mean)
			mean = Finite(mean + delta/float64(n))
			m2 = Finite(m2 + Finite(delta*(x-mean)))
		}
		p.NullCounts[c.Name] = miss
		if numeric {
			s := NumericSummary{Count: n}
			if n > 0 {
				s.Min, s.Max, s.Mean = lo, hi, mean
			}
			if n > 1 {
				s.Std = math.Sqrt(m2 / float64(n-1))
			}
			p.NumericSummary[c.Name] = s
			continue
		}
		p.Unique[c.Name] = len(cats)
		if c.Kind == KindText && len(cats) > 0 {
			tops := SortCounts(cats)
			if len(tops) > 3 {
				tops = tops[:3]
			}
			p.TopValues[c.Name] = tops
		}
	}
	for i := 0; i < len(ds.Rows) && i < SampleSize; i++ {
		row := make(map[string]string, len(ds.Columns))
		for j, c := range ds.Columns {
			row[c.Name] = ds.Rows[i][j]
		}
		p.SampleRows = append(p.SampleRows, row)
	}
	return p, nil
}

// SortCounts orders value counts by count descending, ties by value ascending.
func SortCounts(m map[string]int) []ValueCount {
	out := make([]ValueCount, 0, len(m))
	for k, v := range m {
		out = append(out, ValueCount{Value: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// Empty reports whether there is nothing to analyze.
func (p *Profile) Empty() bool {
	return p == nil || p.RowCount == 0 || p.ColumnCount == 0
}

// TotalNulls sums NullCounts.
func (p *Profile) TotalNulls() int {
	total := 0
	for _, n := range p.NullCounts {
		total += n
	}
	return total
}

// ColumnsOfKind returns column names with the given kind, in column order.
func (p *Profile) ColumnsOfKind(k Kind) []string {
	var out []string
	for _, name := range p.ColumnNames {
		if p.Dtypes[name] == k {
			out = append(out, name)
		}
	}
	return out
}

// Markdown renders a compact summary suitable as model context.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.RowCount))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", p.ColumnCount))

	b.WriteString("[SCHEMA]\n")
	for _, name := range p.ColumnNames {
		kind := p.Dtypes[name]
		nonNull := p.RowCount - p.NullCounts[name]
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d", safeName(name), kind, nonNull))
		if miss := p.NullCounts[name]; miss > 0 && p.RowCount > 0 {
			b.WriteString(fmt.Sprintf(", missing %.1f%%", float64(miss)*100/float64(p.RowCount)))
		}
		b.WriteString(")")
		switch kind {
		case KindNumeric:
			s := p.NumericSummary[name]
			if s.Count > 0 {
				b.WriteString(fmt.Sprintf(": range %.4g to %.4g, mean %.4g, std %.4g", s.Min, s.Max, s.Mean, s.Std))
			}
		default:
			if tops := p.TopValues[name]; len(tops) > 0 {
				b.WriteString(": top ")
				for i, kv := range tops {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
			}
			if u := p.Unique[name]; u > 0 {
				b.WriteString(fmt.Sprintf("; unique=%d", u))
			}
		}
		b.WriteString("\n")
	}
	if len(p.SampleRows) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n| ")
		b.WriteString(strings.Join(mapSlice(p.ColumnNames, safeName), " | "))
		b.WriteString(" |\n|")
		b.WriteString(strings.Repeat(" --- |", len(p.ColumnNames)))
		b.WriteString("\n")
		for _, row := range p.SampleRows {
			vals := make([]string, len(p.ColumnNames))
			for i, name := range p.ColumnNames {
				vals[i] = safeVal(clip(row[name], 80))
			}
			b.WriteString("| " + strings.Join(vals, " | ") + " |\n")
		}
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range p.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

func mapSlice(in []string, f func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = f(s)
	}
	return out
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
