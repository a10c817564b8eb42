package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/dispatch"
	"github.com/KaramelBytes/tabletalk/internal/intent"
	"github.com/KaramelBytes/tabletalk/internal/utils"
)

var (
	askBackend   string
	askModel     string
	askJSON      bool
	askOutput    string
	askMaxRows   int
	askDelimiter string
	askIntent    string
)

var askCmd = &cobra.Command{
	Use:   "ask <file.csv> <question>",
	Short: "Answer one question about a CSV",
	Example: `  tabletalk ask accounts.csv "which customers are at risk?"
  tabletalk ask accounts.csv "top 10 by revenue" --backend openai --json
  tabletalk ask pipeline.tsv "status breakdown" -o answer.md`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd.ErrOrStderr(), args[0], askMaxRows, askDelimiter)
		if err != nil {
			return err
		}
		question := strings.Join(args[1:], " ")
		var in intent.Intent
		if askIntent != "" {
			if in, err = intent.Parse(askIntent); err != nil {
				return err
			}
		}
		pc := providerConfig(cfg, askBackend, askModel)
		log.Debug().Stringer("provider", pc).Str("dataset", ds.Name).Msg("asking")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ans, err := newDispatcher(cfg).AnswerAs(ctx, in, question, ds, pc)
		if err != nil {
			return explain(err)
		}
		return writeAnswer(cmd.OutOrStdout(), cmd.ErrOrStderr(), ans, askJSON, askOutput)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	addAnswerFlags(askCmd, &askBackend, &askModel)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", "", "optional path to write the answer")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", -1, "maximum rows to load (0 = unlimited)")
	askCmd.Flags().StringVar(&askDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab'")
	askCmd.Flags().StringVar(&askIntent, "intent", "", "skip classification and answer as this intent")
}

func addAnswerFlags(c *cobra.Command, backend, model *string) {
	c.Flags().StringVarP(backend, "backend", "b", "", "backend: free_llm | openai | anthropic | local (default from config)")
	c.Flags().StringVarP(model, "model", "m", "", "model name for the backend (default from config)")
}

// openDataset loads a CSV and reports ingestion warnings on w.
func openDataset(w io.Writer, path string, maxRows int, delimiter string) (*dataset.Dataset, error) {
	opt, err := loadOptions(maxRows, delimiter)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.LoadCSV(path, opt)
	if err != nil {
		return nil, err
	}
	for _, warn := range ds.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warn)
	}
	return ds, nil
}

// explain rewrites errors the user can act on.
func explain(err error) error {
	var empty *dataset.EmptyDatasetError
	if errors.As(err, &empty) {
		return fmt.Errorf("nothing to analyze: %w", err)
	}
	return err
}

func writeAnswer(out, errOut io.Writer, ans *dispatch.Answer, asJSON bool, path string) error {
	var body string
	if asJSON {
		b, err := utils.PrettyJSON(ans)
		if err != nil {
			return fmt.Errorf("marshal answer: %w", err)
		}
		body = string(b)
	} else {
		body = ans.Result.Markdown()
	}
	if ans.Notice != "" && !asJSON {
		fmt.Fprintf(errOut, "⚠ %s\n", ans.Notice)
	}
	if ans.Usage != nil && !asJSON {
		fmt.Fprintf(errOut, "Tokens: %d in, %d out (~$%.4f)\n", ans.Usage.PromptTokens, ans.Usage.CompletionTokens, ans.EstimatedCostUSD)
	}
	if path != "" {
		if err := utils.SafeWriteFile(path, []byte(body)); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(out, "✓ Wrote answer to %s\n", path)
		return nil
	}
	fmt.Fprintln(out, body)
	return nil
}
