package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dwizi/chat-runtime/internal/config"
	"github.com/dwizi/chat-runtime/internal/store"
)

func newRunsCommand() *cobra.Command {
	var (
		dbPath string
		input  store.ListPipelineRunsInput
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(dbPath) == "" {
				dbPath = config.FromEnv().DBPath
			}
			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			sqlStore, err := store.New(dbPath)
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			runs, err := sqlStore.ListPipelineRuns(cmd.Context(), input)
			if err != nil {
				return err
			}
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(runs)
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "CREATED\tCHAT\tAUTHOR\tKIND\tCOMMAND\tOUTCOME\tREASON")
			for _, run := range runs {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
					run.ChatID,
					dashIfEmpty(run.Author),
					run.Kind,
					dashIfEmpty(run.Command),
					run.Outcome,
					dashIfEmpty(run.Reason),
				)
			}
			return writer.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "journal path (defaults to CHAT_RUNTIME_DB_PATH)")
	cmd.Flags().StringVar(&input.ChatID, "chat", "", "filter by chat id")
	cmd.Flags().StringVar(&input.Author, "author", "", "filter by author")
	cmd.Flags().StringVar(&input.Command, "command", "", "filter by command name")
	cmd.Flags().StringVar(&input.Outcome, "outcome", "", "filter by outcome")
	cmd.Flags().IntVar(&input.Limit, "limit", 50, "maximum rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
