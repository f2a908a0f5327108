package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uhppoted/uhppoted-app-report/history"
)

var HistoryCmd = History{
	limit: 10,
}

// History lists the most recent report attempts.
type History struct {
	limit int
}

func (cmd *History) Name() string {
	return "history"
}

func (cmd *History) Description() string {
	return "Lists the most recent report attempts"
}

func (cmd *History) Command(options *Options) *cobra.Command {
	c := &cobra.Command{
		Use:     cmd.Name(),
		Short:   cmd.Description(),
		Example: fmt.Sprintf(`  %s history --limit 20`, APP),
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Execute(c.Context(), options)
		},
	}

	c.Flags().IntVar(&cmd.limit, "limit", cmd.limit, "Maximum number of attempts to list")

	return c
}

func (cmd *History) Execute(ctx context.Context, options *Options) error {
	cfg, err := configure(options)
	if err != nil {
		return err
	}

	if cfg.History == "" {
		return fmt.Errorf("attempt history is disabled (HISTORY_DB=off)")
	}

	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		return err
	}

	defer store.Close()

	attempts, err := store.List(ctx, cmd.limit)
	if err != nil {
		return err
	}

	list(os.Stdout, attempts)

	return nil
}

func list(w io.Writer, attempts []history.Attempt) {
	table := [][]string{
		{"STARTED", "RUN", "ATTEMPT", "STATUS", "AREA", "REVISION", "MESSAGE", "ERROR"},
	}

	for _, a := range attempts {
		run := a.RunID
		if len(run) > 8 {
			run = run[:8]
		}

		table = append(table, []string{
			a.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run,
			fmt.Sprintf("%v", a.Attempt),
			string(a.Status),
			a.PrintArea,
			a.Revision,
			a.MessageID,
			a.Error,
		})
	}

	widths := make([]int, len(table[0]))
	for _, row := range table {
		for i, v := range row {
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	for _, row := range table {
		line := []string{}
		for i, v := range row {
			line = append(line, fmt.Sprintf("%-*v", widths[i], v))
		}

		fmt.Fprintln(w, strings.TrimRight(strings.Join(line, "  "), " "))
	}
}
