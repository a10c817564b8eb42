package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk/internal/analysis"
	"github.com/KaramelBytes/tabletalk/internal/dataset"
)

var (
	sugMaxRows   int
	sugDelimiter string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <file.csv>",
	Short: "Suggest questions tailored to a CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd.ErrOrStderr(), args[0], sugMaxRows, sugDelimiter)
		if err != nil {
			return err
		}
		p, err := dataset.NewProfile(ds)
		if err != nil {
			return explain(err)
		}
		for i, q := range analysis.Suggest(p) {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().IntVar(&sugMaxRows, "max-rows", -1, "maximum rows to load (0 = unlimited)")
	suggestCmd.Flags().StringVar(&sugDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab'")
}
