package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/utils"
)

var (
	proSampleRows int
	proMaxRows    int
	proDelimiter  string
	proJSON       bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <file.csv>",
	Short: "Profile a CSV: schema, nulls, numeric summary and sample rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd.ErrOrStderr(), args[0], proMaxRows, proDelimiter)
		if err != nil {
			return err
		}
		p, err := dataset.NewProfile(ds)
		if err != nil {
			return explain(err)
		}
		if proSampleRows >= 0 && proSampleRows < len(p.SampleRows) {
			p.SampleRows = p.SampleRows[:proSampleRows]
		}
		out := cmd.OutOrStdout()
		if proJSON {
			b, err := utils.PrettyJSON(p)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		md := p.Markdown()
		fmt.Fprintln(out, md)
		fmt.Fprintf(out, "\nContext size: ~%d tokens\n", utils.CountTokens(md))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().IntVar(&proSampleRows, "sample-rows", dataset.SampleSize, fmt.Sprintf("sample rows to show (at most %d)", dataset.SampleSize))
	profileCmd.Flags().IntVar(&proMaxRows, "max-rows", -1, "maximum rows to load (0 = unlimited)")
	profileCmd.Flags().StringVar(&proDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab'")
	profileCmd.Flags().BoolVar(&proJSON, "json", false, "print the profile as JSON")
}
