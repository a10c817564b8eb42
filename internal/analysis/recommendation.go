package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

// riskRecommendThreshold is the adverse percentage above which a risk column gets a recommendation.
const riskRecommendThreshold = 20.0

func recommendation(r *Result, ds *dataset.Dataset) {
	risk := assessRisk(ds)
	risk.record(r.Metrics)

	var recs []string
	for _, f := range risk.flags {
		if f.Percent > riskRecommendThreshold {
			recs = append(recs, fmt.Sprintf("%.1f%% of rows are adverse in %s. Review those %d entries first and agree a recovery plan with their owners.",
				f.Percent, f.Column, f.Adverse))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, fmt.Sprintf("The dataset appears healthy: no risk column has more than %.0f%% adverse values.", riskRecommendThreshold))
	}
	if c := risk.concentration; c != nil {
		recs = append(recs, fmt.Sprintf("%s represents %.1f%% of rows in %s. Diversify to reduce dependence on a single customer.",
			c.Value, c.Percent, c.Column))
	}
	if o := risk.overdue; o != nil {
		recs = append(recs, fmt.Sprintf("Follow up on the %d rows whose %s has passed.", o.Count, o.Column))
	}

	if perf, ok := assessPerformance(ds); ok && len(perf.groups) > 1 {
		perf.record(r.Metrics)
		busiest, lightest := perf.groups[0], perf.groups[0]
		for _, g := range perf.groups[1:] {
			if g.Rows > busiest.Rows || (g.Rows == busiest.Rows && g.Group < busiest.Group) {
				busiest = g
			}
			if g.Rows < lightest.Rows || (g.Rows == lightest.Rows && g.Group < lightest.Group) {
				lightest = g
			}
		}
		if busiest.Rows > 2*lightest.Rows {
			recs = append(recs, fmt.Sprintf("Rebalance workload in %s: %s handles %d rows while %s handles %d.",
				perf.groupCol, busiest.Group, busiest.Rows, lightest.Group, lightest.Rows))
		}
	}

	lines := make([]string, 0, len(recs))
	for i, rec := range recs {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, rec))
	}
	r.add("Recommendations", strings.Join(lines, "\n"))
	r.Metrics["recommendation_count"] = len(recs)
	r.Metrics["recommendations"] = recs
}
