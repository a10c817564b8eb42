package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/intent"
)

func analyze(t *testing.T, in intent.Intent, question string, ds *dataset.Dataset) *Result {
	t.Helper()
	res, err := Analyze(in, question, nil, ds)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func narrative(r *Result) string {
	var b strings.Builder
	for _, s := range r.Narrative {
		b.WriteString(s.Title + "\n" + s.Body + "\n")
	}
	return b.String()
}

func TestAnalyzeEmptyDataset(t *testing.T) {
	for _, ds := range []*dataset.Dataset{
		nil,
		dataset.New("none", []string{"A"}, nil),
		dataset.New("nocols", nil, [][]string{{}}),
	} {
		_, err := Analyze(intent.Comprehensive, "overview", nil, ds)
		var empty *dataset.EmptyDatasetError
		require.True(t, errors.As(err, &empty), "got %v", err)
	}
}

func TestRankingSortsDescending(t *testing.T) {
	ds := dataset.New("scores", []string{"Rep", "Score"}, [][]string{
		{"a", "10"}, {"b", "50"}, {"c", "30"}, {"d", "5"}, {"e", "90"},
	})
	res := analyze(t, intent.Ranking, "show top scores", ds)

	rows := res.Metrics["ranking"].([]RankedRow)
	var values []float64
	var labels []string
	for _, r := range rows {
		values = append(values, r.Value)
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []float64{90, 50, 30, 10, 5}, values)
	assert.Equal(t, []string{"e", "b", "c", "a", "d"}, labels)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 5, rows[0].Row)

	require.NotNil(t, res.Chart)
	assert.Equal(t, ChartBar, res.Chart.Kind)
	assert.Equal(t, "Rep", res.Chart.XField)
	assert.Equal(t, "Score", res.Chart.YField)
	assert.Len(t, res.Chart.Points, 5)
}

func TestRankingUsesColumnNamedInQuestion(t *testing.T) {
	ds := dataset.New("sales", []string{"Name", "Revenue", "Units"}, [][]string{
		{"a", "100", "3"}, {"b", "50", "9"},
	})
	res := analyze(t, intent.Ranking, "Which names have the highest units?", ds)
	assert.Equal(t, "Units", res.Metrics["value_column"])
	rows := res.Metrics["ranking"].([]RankedRow)
	assert.Equal(t, "b", rows[0].Label)
}

func TestRankingIgnoresColumnNamesInsideOtherWords(t *testing.T) {
	cases := []struct {
		header   []string
		question string
	}{
		{[]string{"Manager", "Revenue", "Age"}, "show the top managers"},
		{[]string{"Region", "Revenue", "ID"}, "which regions lead? identify them"},
	}
	for _, tc := range cases {
		ds := dataset.New("people", tc.header, [][]string{
			{"x", "100", "30"}, {"y", "500", "20"},
		})
		res := analyze(t, intent.Ranking, tc.question, ds)
		assert.Equal(t, "Revenue", res.Metrics["value_column"], tc.question)
		rows := res.Metrics["ranking"].([]RankedRow)
		assert.Equal(t, "y", rows[0].Label, tc.question)
	}

	ds := dataset.New("sales", []string{"Rep", "Revenue", "Net Revenue"}, [][]string{{"a", "1", "2"}})
	res := analyze(t, intent.Ranking, "rank reps by net revenue", ds)
	assert.Equal(t, "Net Revenue", res.Metrics["value_column"])
}

func TestRankingLabelsRowsWithoutTextColumn(t *testing.T) {
	ds := dataset.New("nums", []string{"Value"}, [][]string{{"1"}, {"3"}, {"2"}})
	res := analyze(t, intent.Ranking, "rank", ds)
	rows := res.Metrics["ranking"].([]RankedRow)
	assert.Equal(t, "row 2", rows[0].Label)
	assert.Equal(t, "", res.Metrics["label_column"])
}

func TestRankingCapsAtTen(t *testing.T) {
	rows := make([][]string, 25)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("n%d", i), fmt.Sprint(i)}
	}
	res := analyze(t, intent.Ranking, "top", dataset.New("many", []string{"Name", "Value"}, rows))
	assert.Len(t, res.Metrics["ranking"], RankLimit)
}

func healthDataset() *dataset.Dataset {
	rows := [][]string{
		{"1", "Red"}, {"2", "Red"}, {"3", "red "},
		{"4", ""}, {"5", "NaN"}, {"6", "N/A"},
		{"7", "Green"}, {"8", "Green"}, {"9", "Yellow"}, {"10", "Green"},
	}
	return dataset.New("health", []string{"ID", "Health"}, rows)
}

func TestRiskPercentOverTotalRowsWithNulls(t *testing.T) {
	ds := healthDataset()
	p, err := dataset.NewProfile(ds)
	require.NoError(t, err)
	assert.Equal(t, 3, p.NullCounts["Health"])

	res := analyze(t, intent.RiskAssessment, "what are the risks", ds)
	flags := res.Metrics["risk_flags"].([]RiskFlag)
	require.Len(t, flags, 1)
	assert.Equal(t, "Health", flags[0].Column)
	assert.Equal(t, 3, flags[0].Adverse)
	assert.Equal(t, 30.0, flags[0].Percent)
	assert.Equal(t, 3, res.Metrics["adverse_total"])
	assert.Contains(t, narrative(res), "3 of 10 rows (30.0%)")
	// only one adverse category
	assert.Nil(t, res.Chart)
}

func TestRiskChartWithSeveralAdverseCategories(t *testing.T) {
	ds := dataset.New("status", []string{"Customer", "Status"}, [][]string{
		{"a", "Red"}, {"b", "At Risk"}, {"c", "Red"}, {"d", "Green"},
	})
	res := analyze(t, intent.RiskAssessment, "any risks?", ds)
	require.NotNil(t, res.Chart)
	assert.Equal(t, ChartBar, res.Chart.Kind)
	assert.Equal(t, "Status", res.Chart.XField)
	assert.Equal(t, []Point{{Label: "Red", Value: 2}, {Label: "At Risk", Value: 1}}, res.Chart.Points)

	// comprehensive answers pick up the same chart
	res = analyze(t, intent.Comprehensive, "overview", ds)
	require.NotNil(t, res.Chart)
	assert.Equal(t, "Adverse values in Status", res.Chart.Title)
}

func TestRiskWithoutIndicatorColumns(t *testing.T) {
	ds := dataset.New("plain", []string{"Name", "Amount"}, [][]string{{"a", "1"}})
	res := analyze(t, intent.RiskAssessment, "risks", ds)
	assert.Contains(t, narrative(res), "No risk indicators were found")
	assert.Empty(t, res.Metrics["risk_flags"])
	assert.Nil(t, res.Chart)
}

func TestRiskConcentrationAndOverdue(t *testing.T) {
	prev := now
	now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })

	ds := dataset.New("contracts", []string{"Customer", "Contract End Date"}, [][]string{
		{"Acme", "2024-01-15"}, {"Acme", "2024-02-10"}, {"Globex", "2024-05-20"},
	})
	res := analyze(t, intent.RiskAssessment, "risk", ds)

	c, ok := res.Metrics["concentration"].(Concentration)
	require.True(t, ok)
	assert.Equal(t, "Acme", c.Value)
	assert.Equal(t, 66.7, c.Percent)

	o, ok := res.Metrics["overdue"].(Overdue)
	require.True(t, ok)
	assert.Equal(t, 2, o.Count)
	assert.Contains(t, narrative(res), "Overdue items")
}

func TestComprehensiveWithoutRiskHasNoChart(t *testing.T) {
	ds := dataset.New("accounts", []string{"Customer", "Revenue", "Region"}, [][]string{
		{"Acme", "100", "EMEA"}, {"Globex", "", "APAC"}, {"Initech", "300", ""},
	})
	res := analyze(t, intent.Comprehensive, "give me an overview", ds)
	assert.Nil(t, res.Chart)
	assert.Equal(t, 3, res.Metrics["row_count"])
	assert.Equal(t, 3, res.Metrics["column_count"])
	assert.Equal(t, 2, res.Metrics["total_nulls"])

	var titles []string
	for _, s := range res.Narrative {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Overview", "Columns", "Missing data", "Column types", "Key insights"}, titles)
	assert.Contains(t, res.Narrative[2].Body, "Revenue: 1 missing (33.3%)")
}

func TestPerformanceSumsPerGroup(t *testing.T) {
	ds := dataset.New("perf", []string{"Executive", "Revenue"}, [][]string{
		{"Alice", "100"}, {"Bob", "50"}, {"Alice", "20"}, {"Carol", "70"}, {"Dan", "10"},
	})
	res := analyze(t, intent.Performance, "how are executives performing", ds)
	groups := res.Metrics["groups"].([]GroupTotal)
	assert.Equal(t, []GroupTotal{
		{Group: "Alice", Value: 120, Rows: 2},
		{Group: "Carol", Value: 70, Rows: 1},
		{Group: "Bob", Value: 50, Rows: 1},
		{Group: "Dan", Value: 10, Rows: 1},
	}, groups)
	assert.Equal(t, "Executive", res.Metrics["group_column"])
	assert.Equal(t, "Revenue", res.Metrics["value_column"])

	text := narrative(res)
	assert.Contains(t, text, "1. Alice: 120 (2 rows)")
	assert.Contains(t, text, "4. Dan: 10 (1 rows)")

	require.NotNil(t, res.Chart)
	assert.Equal(t, ChartBar, res.Chart.Kind)
	assert.Equal(t, "Executive", res.Chart.XField)
}

func TestPerformanceCountsRowsWithoutNumericColumn(t *testing.T) {
	ds := dataset.New("owners", []string{"Owner", "Status"}, [][]string{
		{"Zed", "Green"}, {"Amy", "Red"}, {"Zed", "Green"},
	})
	res := analyze(t, intent.Performance, "performance", ds)
	groups := res.Metrics["groups"].([]GroupTotal)
	assert.Equal(t, "Zed", groups[0].Group)
	assert.Equal(t, 2.0, groups[0].Value)
	assert.Equal(t, "rows", res.Chart.YField)
}

func TestPerformanceWithoutOwnerColumn(t *testing.T) {
	ds := dataset.New("plain", []string{"Name", "Amount"}, [][]string{{"a", "1"}})
	res := analyze(t, intent.Performance, "performance", ds)
	assert.Contains(t, narrative(res), "No executive, owner or rep column")
	assert.Nil(t, res.Chart)
}

func TestTrendExcludesMiddleBucket(t *testing.T) {
	ds := dataset.New("monthly", []string{"Close Date", "Revenue"}, [][]string{
		{"2024-03-02", "500"},
		{"2024-01-05", "60"}, {"2024-01-20", "40"},
		{"2024-02-11", "110"},
		{"2024-04-01", "200"},
		{"2024-05-09", "220"},
	})
	res := analyze(t, intent.Trend, "revenue trend over time", ds)

	buckets := res.Metrics["buckets"].([]Bucket)
	var periods []string
	for _, b := range buckets {
		periods = append(periods, b.Period)
	}
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03", "2024-04", "2024-05"}, periods)
	assert.Equal(t, 100.0, buckets[0].Value)
	assert.Equal(t, 2, buckets[0].Rows)

	assert.Equal(t, DirectionUp, res.Metrics["direction"])
	assert.Equal(t, 105.0, res.Metrics["first_half_avg"])
	assert.Equal(t, 210.0, res.Metrics["second_half_avg"])
	assert.Equal(t, 10.0, res.Metrics["month_over_month"])

	require.NotNil(t, res.Chart)
	assert.Equal(t, ChartLine, res.Chart.Kind)
	assert.Equal(t, "Close Date", res.Chart.XField)
}

func TestTrendFlatBand(t *testing.T) {
	ds := dataset.New("flat", []string{"Date", "Value"}, [][]string{
		{"2024-01-01", "100"}, {"2024-02-01", "101"},
	})
	res := analyze(t, intent.Trend, "trend", ds)
	assert.Equal(t, DirectionFlat, res.Metrics["direction"])

	single := dataset.New("one", []string{"Date", "Value"}, [][]string{{"2024-01-01", "5"}, {"2024-01-09", "7"}})
	res = analyze(t, intent.Trend, "trend", single)
	assert.Equal(t, DirectionFlat, res.Metrics["direction"])
	assert.Len(t, res.Metrics["buckets"], 1)
}

func TestTrendWithoutDateColumn(t *testing.T) {
	res := analyze(t, intent.Trend, "trend", dataset.New("x", []string{"A"}, [][]string{{"1"}}))
	assert.Contains(t, narrative(res), "No date column")
	assert.Nil(t, res.Chart)
}

func TestRecommendationThreshold(t *testing.T) {
	rows := make([][]string, 10)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("c%d", i), "Green"}
	}
	rows[0][1], rows[1][1], rows[2][1] = "Red", "Red", "Red"
	res := analyze(t, intent.Recommendation, "what should we do", dataset.New("r", []string{"Name", "Status"}, rows))
	text := narrative(res)
	assert.Contains(t, text, "30.0% of rows are adverse in Status")
	assert.NotContains(t, text, "appears healthy")

	rows[1][1], rows[2][1] = "Green", "Green"
	res = analyze(t, intent.Recommendation, "what should we do", dataset.New("r", []string{"Name", "Status"}, rows))
	assert.Contains(t, narrative(res), "The dataset appears healthy")
	assert.Equal(t, 1, res.Metrics["recommendation_count"])
}

func TestRecommendationWorkloadImbalance(t *testing.T) {
	ds := dataset.New("load", []string{"Owner", "Amount"}, [][]string{
		{"Alice", "1"}, {"Alice", "1"}, {"Alice", "1"}, {"Alice", "1"}, {"Alice", "1"},
		{"Bob", "1"}, {"Bob", "1"},
	})
	res := analyze(t, intent.Recommendation, "recommend", ds)
	assert.Contains(t, narrative(res), "Rebalance workload in Owner: Alice handles 5 rows while Bob handles 2.")
	assert.Equal(t, 2, res.Metrics["recommendation_count"])
}

func TestDistributionPieOrderAndDonut(t *testing.T) {
	ds := dataset.New("d", []string{"Status"}, [][]string{
		{"Green"}, {"Red"}, {"Green"}, {"Amber"}, {"Red"}, {"Green"}, {"Amber"}, {"Blue"}, {""},
	})
	res := analyze(t, intent.Distribution, "what's the distribution", ds)
	counts := res.Metrics["value_counts"].([]dataset.ValueCount)
	assert.Equal(t, []dataset.ValueCount{
		{Value: "Green", Count: 3}, {Value: "Amber", Count: 2}, {Value: "Red", Count: 2}, {Value: "Blue", Count: 1},
	}, counts)
	assert.Equal(t, 1, res.Metrics["missing"])
	require.NotNil(t, res.Chart)
	assert.Equal(t, ChartPie, res.Chart.Kind)

	var rows [][]string
	for i := 0; i < 7; i++ {
		rows = append(rows, []string{fmt.Sprintf("v%d", i)})
	}
	res = analyze(t, intent.Distribution, "breakdown", dataset.New("d", []string{"Category"}, rows))
	assert.Equal(t, ChartDonut, res.Chart.Kind)
}

func TestDistributionNamedColumn(t *testing.T) {
	ds := dataset.New("d", []string{"Status", "Region", "Amount"}, [][]string{
		{"Green", "EMEA", "1"}, {"Red", "APAC", "2"},
	})
	res := analyze(t, intent.Distribution, "how many deals by region", ds)
	assert.Equal(t, "Region", res.Metrics["column"])

	numeric := dataset.New("n", []string{"Amount"}, [][]string{{"1"}, {"1"}, {"2"}})
	res = analyze(t, intent.Distribution, "distribution", numeric)
	assert.Equal(t, "Amount", res.Metrics["column"])
}

func TestGenericAddsNoteAndHints(t *testing.T) {
	ds := dataset.New("d", []string{"Revenue"}, [][]string{{"1"}})
	res := analyze(t, intent.Generic, "hello", ds)
	assert.Equal(t, intent.Generic, res.Intent)
	assert.Equal(t, "Note", res.Narrative[0].Title)
	assert.Equal(t, "Try asking", res.Narrative[len(res.Narrative)-1].Title)
	assert.Contains(t, res.Narrative[len(res.Narrative)-1].Body, "Analyze Revenue performance")
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	ds := dataset.New("accounts", []string{"Customer", "Executive", "Revenue", "Status", "Close Date"}, [][]string{
		{"Acme", "Alice", "100", "Red", "2024-01-01"},
		{"Globex", "Bob", "200", "At Risk", "2024-02-01"},
		{"Initech", "Alice", "50", "Green", "2024-03-01"},
	})
	for _, in := range intent.All() {
		a, err := Analyze(in, "question", nil, ds)
		require.NoError(t, err)
		b, err := Analyze(in, "question", nil, ds)
		require.NoError(t, err)
		ja, err := json.Marshal(a)
		require.NoError(t, err)
		jb, err := json.Marshal(b)
		require.NoError(t, err)
		assert.Equal(t, string(ja), string(jb), "intent %s", in)
	}
}

func TestSelectChartNeverPanics(t *testing.T) {
	for _, in := range append(intent.All(), intent.Intent("bogus")) {
		assert.NotPanics(t, func() {
			assert.Nil(t, SelectChart(in, nil, nil))
			assert.Nil(t, SelectChart(in, nil, map[string]any{"ranking": "wrong type"}))
		})
	}
}

func TestResultMarkdown(t *testing.T) {
	res := analyze(t, intent.Ranking, "top", dataset.New("s", []string{"Name", "Score"}, [][]string{{"a", "1"}}))
	md := res.Markdown()
	assert.Contains(t, md, "## Top 1 by Score")
	assert.Contains(t, md, "1. a: 1")
	assert.Contains(t, md, "_Suggested chart: bar of Top Score_")
}

func TestAnalyzeSurvivesInfiniteAndOverflowingValues(t *testing.T) {
	ds := dataset.New("extreme", []string{"Customer", "Executive", "Status", "Revenue", "Close Date"}, [][]string{
		{"Acme", "Alice", "Red", "1e308", "2024-01-05"},
		{"Globex", "Alice", "Green", "1.5e308", "2024-01-20"},
		{"Initech", "Bob", "Red", "inf", "2024-02-01"},
		{"Umbrella", "Bob", "Yellow", "-1.7e308", "2024-03-01"},
		{"Hooli", "Alice", "Green", "1e308", "2024-03-09"},
	})
	require.Equal(t, dataset.KindNumeric, ds.Columns[3].Kind)
	for _, in := range intent.All() {
		var res *Result
		require.NotPanics(t, func() { res = analyze(t, in, "show top revenue by executive", ds) }, "intent %s", in)
		_, err := json.Marshal(res)
		require.NoError(t, err, "intent %s", in)
		assert.NotPanics(t, func() { _ = res.Markdown() })
	}
}

func TestFormatNumberNonFinite(t *testing.T) {
	assert.Equal(t, "∞", FormatNumber(math.Inf(1)))
	assert.Equal(t, "-∞", FormatNumber(math.Inf(-1)))
	assert.Equal(t, "n/a", FormatNumber(math.NaN()))
	assert.NotPanics(t, func() { _ = FormatNumber(math.MaxFloat64) })
	assert.Equal(t, "1,234.50", FormatNumber(1234.5))
}
