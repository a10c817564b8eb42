package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabletalk/internal/session"
)

var (
	chatBackend   string
	chatModel     string
	chatMaxRows   int
	chatDelimiter string
)

var chatCmd = &cobra.Command{
	Use:   "chat <file.csv>",
	Short: "Start an interactive question session over a CSV",
	Long: `chat keeps one session open over the dataset. Type a question, or one of:
  /suggest   list suggested questions
  /history   list previous questions and the backend that answered
  /quit      leave the session`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd.ErrOrStderr(), args[0], chatMaxRows, chatDelimiter)
		if err != nil {
			return err
		}
		s := session.New(providerConfig(cfg, chatBackend, chatModel))
		defer s.Close()
		s.LoadDataset(ds)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), s, session.Answerer(newDispatcher(cfg)))
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	addAnswerFlags(chatCmd, &chatBackend, &chatModel)
	chatCmd.Flags().IntVar(&chatMaxRows, "max-rows", -1, "maximum rows to load (0 = unlimited)")
	chatCmd.Flags().StringVar(&chatDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab'")
}

func runChat(ctx context.Context, in io.Reader, out, errOut io.Writer, s *session.Session, a session.Answerer) error {
	backend, model := s.Backend()
	if p := s.Profile(); p != nil {
		fmt.Fprintf(out, "Loaded %s: %d rows, %d columns. Backend: %s", p.Name, p.RowCount, p.ColumnCount, backend)
		if model != "" {
			fmt.Fprintf(out, " (%s)", model)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "Type a question, /suggest, /history or /quit.")

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/suggest":
			for i, q := range s.Suggestions() {
				fmt.Fprintf(out, "  %d. %s\n", i+1, q)
			}
			continue
		case line == "/history":
			turns := s.Turns()
			if len(turns) == 0 {
				fmt.Fprintln(out, "  (no questions yet)")
			}
			for i, t := range turns {
				fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, t.BackendUsed, t.Question)
			}
			continue
		case strings.HasPrefix(line, "/"):
			fmt.Fprintf(errOut, "⚠ unknown command %s\n", line)
			continue
		}

		ans, err := s.Ask(ctx, a, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return explain(err)
		}
		if ans.Notice != "" {
			fmt.Fprintf(errOut, "⚠ %s\n", ans.Notice)
		}
		fmt.Fprintln(out, ans.Result.Markdown())
	}
}
