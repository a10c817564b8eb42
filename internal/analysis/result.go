package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/intent"
)

// Section is one titled block of narrative.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Result is the structured answer to one question.
type Result struct {
	Intent    intent.Intent  `json:"intent"`
	Narrative []Section      `json:"narrative"`
	Metrics   map[string]any `json:"metrics"`
	Chart     *ChartSpec     `json:"chart,omitempty"`
}

// ChartKind names a chart family.
type ChartKind string

const (
	ChartPie   ChartKind = "pie"
	ChartDonut ChartKind = "donut"
	ChartBar   ChartKind = "bar"
	ChartLine  ChartKind = "line"
)

// Point is one aggregated value to plot.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSpec is a declarative chart description. Rendering is left to the caller.
type ChartSpec struct {
	Kind       ChartKind `json:"kind"`
	XField     string    `json:"x_field"`
	YField     string    `json:"y_field"`
	ColorField string    `json:"color_field,omitempty"`
	Title      string    `json:"title"`
	Points     []Point   `json:"points"`
}

// RiskFlag summarizes adverse values found in one risk column.
type RiskFlag struct {
	Column     string               `json:"column"`
	Adverse    int                  `json:"adverse"`
	Percent    float64              `json:"percent"`
	Categories []dataset.ValueCount `json:"categories"`
}

// Concentration reports a single value dominating a customer column.
type Concentration struct {
	Column  string  `json:"column"`
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Overdue counts end dates that already passed.
type Overdue struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// GroupTotal is the aggregate of one group in a performance breakdown.
type GroupTotal struct {
	Group string  `json:"group"`
	Value float64 `json:"value"`
	Rows  int     `json:"rows"`
}

// Bucket is one calendar month of a trend.
type Bucket struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
	Rows   int     `json:"rows"`
}

// RankedRow is one row of a ranking.
type RankedRow struct {
	Rank  int     `json:"rank"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Row   int     `json:"row"`
}

func (r *Result) add(title, body string) {
	r.Narrative = append(r.Narrative, Section{Title: title, Body: strings.TrimRight(body, "\n")})
}

// Markdown renders the narrative for a terminal or a markdown file.
func (r *Result) Markdown() string {
	var b strings.Builder
	for i, s := range r.Narrative {
		if i > 0 {
			b.WriteString("\n")
		}
		if s.Title != "" {
			b.WriteString("## " + s.Title + "\n\n")
		}
		b.WriteString(s.Body)
		b.WriteString("\n")
	}
	if r.Chart != nil {
		b.WriteString(fmt.Sprintf("\n_Suggested chart: %s of %s_\n", r.Chart.Kind, r.Chart.Title))
	}
	return b.String()
}

func round1(x float64) float64 { return roundTo(x, 10) }

func round2(x float64) float64 { return roundTo(x, 100) }

// roundTo rounds to 1/scale; magnitudes past float precision are only clamped.
func roundTo(x, scale float64) float64 {
	x = dataset.Finite(x)
	if math.Abs(x) >= 1e15 {
		return x
	}
	return math.Round(x*scale) / scale
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(n) * 100 / float64(total))
}

// FormatNumber prints integers with thousands separators and other values with two decimals.
func FormatNumber(x float64) string {
	switch {
	case math.IsNaN(x):
		return "n/a"
	case math.IsInf(x, 1):
		return "∞"
	case math.IsInf(x, -1):
		return "-∞"
	}
	if x == math.Trunc(x) && math.Abs(x) < 1e15 {
		return withThousands(fmt.Sprintf("%.0f", x))
	}
	s := fmt.Sprintf("%.2f", x)
	dot := strings.IndexByte(s, '.')
	return withThousands(s[:dot]) + s[dot:]
}

func withThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
