package dispatch

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/KaramelBytes/tabletalk/internal/ai"
	"github.com/KaramelBytes/tabletalk/internal/analysis"
	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/utils"
)

// minContextTokens keeps some dataset context even for tiny model windows.
const minContextTokens = 128

const analystRole = `Your role is to:
1. Provide insightful analysis based on the data
2. Identify trends, patterns, and anomalies
3. Give actionable recommendations
4. Suggest specific visualizations when relevant
5. Be concise but comprehensive

When suggesting visualizations, use this format:
VISUALIZATION: [chart_type]|[x_column]|[y_column]|[color_column]|[title]

Available chart types: bar, pie, line, scatter, box, histogram`

const userAsk = `Please analyze this question in the context of the provided dataset and give me:
1. Direct answer to the question
2. Key insights and patterns
3. Actionable recommendations
4. Suggested visualization if relevant

Be specific and reference actual data points when possible.`

const freeAsk = `Please provide:
1. Direct answer to the question
2. Key insights from the data
3. Actionable recommendations
4. If relevant, suggest a visualization format: VISUALIZATION: [chart_type]|[x_column]|[y_column]|[color_column]|[title]

Available chart types: bar, pie, line, scatter, box, histogram

Answer:`

var visualizationLine = regexp.MustCompile(`(?i)VISUALIZATION:[^\n]*\n?`)

// dataContext renders the profile and a few headline figures for a prompt.
// The rows themselves are never included beyond the profile's samples.
func dataContext(p *dataset.Profile, ds *dataset.Dataset) string {
	var b strings.Builder
	b.WriteString(p.Markdown())
	if lines := keyInsights(ds); len(lines) > 0 {
		b.WriteString("\n### Key insights\n")
		for _, l := range lines {
			b.WriteString("- " + l + "\n")
		}
	}
	return b.String()
}

func keyInsights(ds *dataset.Dataset) []string {
	var out []string
	if j := analysis.ColumnFor(ds, analysis.RoleStatus); j >= 0 {
		counts := map[string]int{}
		for i := range ds.Rows {
			if !ds.Missing(i, j) {
				counts[strings.TrimSpace(ds.Cell(i, j))]++
			}
		}
		top := dataset.SortCounts(counts)
		if len(top) > 3 {
			top = top[:3]
		}
		if len(top) > 0 {
			parts := make([]string, len(top))
			for k, vc := range top {
				parts[k] = fmt.Sprintf("%s: %d", vc.Value, vc.Count)
			}
			out = append(out, fmt.Sprintf("Status distribution (%s): %s", ds.Columns[j].Name, strings.Join(parts, ", ")))
		}
	}
	if j := analysis.ColumnFor(ds, analysis.RoleRevenue); j >= 0 && ds.Columns[j].Kind == dataset.KindNumeric {
		var total float64
		for i := range ds.Rows {
			if x, ok := ds.Float(i, j); ok {
				total = dataset.Finite(total + x)
			}
		}
		out = append(out, fmt.Sprintf("Total revenue (%s): $%s", ds.Columns[j].Name, analysis.FormatNumber(math.Round(total))))
	}
	return out
}

// buildRequest assembles the backend request. The dataset context is cut to
// fit the model's window after the fixed instructions are accounted for.
func buildRequest(backend, model, question string, p *dataset.Profile, ds *dataset.Dataset, maxTokens int, temperature float64) ai.GenerateRequest {
	question = strings.TrimSpace(question)
	overhead := utils.CountTokens(analystRole) + utils.CountTokens(userAsk) + utils.CountTokens(question)
	budget := ai.ContextLimit(model)*3/4 - overhead
	if backend != ai.ProviderFreeLLM {
		budget -= maxTokens
	}
	if budget < minContextTokens {
		budget = minContextTokens
	}
	summary := utils.TruncateToTokenLimit(dataContext(p, ds), budget)

	req := ai.GenerateRequest{Model: model, MaxTokens: maxTokens, Temperature: temperature}
	if backend == ai.ProviderFreeLLM {
		prompt := "You are a data analyst. Analyze this dataset and answer the question.\n\n" +
			"Dataset Information:\n" + summary + "\n\nQuestion: " + question + "\n\n" + freeAsk
		req.Messages = []ai.Message{{Role: "user", Content: prompt}}
		req.RetryPrompt = "Analyze this data question: " + question
		return req
	}
	system := "You are an expert data analyst helping analyze business data. " +
		"You have access to a dataset with the following structure:\n\n" + summary + "\n\n" + analystRole
	req.Messages = []ai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: "Question: " + question + "\n\n" + userAsk},
	}
	return req
}

// stripVisualization drops chart directives; charts are always chosen locally.
func stripVisualization(text string) string {
	return strings.TrimSpace(visualizationLine.ReplaceAllString(text, ""))
}

func attribution(backend string, resp *ai.GenerateResponse) string {
	switch backend {
	case ai.ProviderFreeLLM:
		if resp.Simplified {
			return "Free AI Analysis (Simple)"
		}
		model := resp.Model
		if i := strings.LastIndex(model, "/"); i >= 0 {
			model = model[i+1:]
		}
		return fmt.Sprintf("Free AI Analysis (Model: %s)", model)
	case ai.ProviderAnthropic:
		return "Claude AI Analysis"
	default:
		return "AI Analysis"
	}
}
