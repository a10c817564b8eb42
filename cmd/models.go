package cmd

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk/internal/ai"
)

var modelsCmd = &cobra.Command{
	Use:   "models [backend]",
	Short: "List known models, their context windows and pricing",
	Example: `  tabletalk models
  tabletalk models anthropic`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backends := ai.Providers()
		if len(args) == 1 {
			b := ai.NormalizeProvider(args[0])
			if !slices.Contains(backends, b) {
				return fmt.Errorf("unknown backend: %s (use free_llm, openai or anthropic)", args[0])
			}
			backends = []string{b}
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BACKEND\tMODEL\tCONTEXT\t$/1K IN\t$/1K OUT\tDEFAULT")
		for _, b := range backends {
			def := ai.DefaultModel(b)
			for _, m := range ai.ModelsFor(b) {
				mark := ""
				if m.Name == def {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.4f\t%.4f\t%s\n", b, m.Name, m.ContextTokens, m.InputPerK, m.OutputPerK, mark)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
