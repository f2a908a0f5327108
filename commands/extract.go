package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uhppoted/uhppoted-app-report/log"
	"github.com/uhppoted/uhppoted-app-report/report"
)

var ExtractCmd = Extract{
	file: "",
	date: "",
	tsv:  "",
}

// Extract writes the displayed values of the report block for a date as a TSV file.
type Extract struct {
	file string
	date string
	tsv  string
}

func (cmd *Extract) Name() string {
	return "extract"
}

func (cmd *Extract) Description() string {
	return "Extracts the report block for a date to a TSV file"
}

func (cmd *Extract) Command(options *Options) *cobra.Command {
	c := &cobra.Command{
		Use:     cmd.Name(),
		Short:   cmd.Description(),
		Example: fmt.Sprintf(`  %s extract --date 2026-10-18 --tsv "2026-10-18.tsv"`, APP),
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Execute(c.Context(), options)
		},
	}

	c.Flags().StringVar(&cmd.file, "file", cmd.file, "Local xlsx workbook. Defaults to downloading DRIVE_PATH from the shared drive")
	c.Flags().StringVar(&cmd.date, "date", cmd.date, "Report date (YYYY-MM-DD). Defaults to today")
	c.Flags().StringVar(&cmd.tsv, "tsv", cmd.tsv, "TSV file. Defaults to stdout")

	return c
}

func (cmd *Extract) Execute(ctx context.Context, options *Options) error {
	cfg, err := configure(options)
	if err != nil {
		return err
	}

	date, err := reportDate(cfg, cmd.date)
	if err != nil {
		return err
	}

	b, err := workbook(ctx, cfg, cmd.file)
	if err != nil {
		return err
	}

	rpt, err := report.Open(b, layout(cfg))
	if err != nil {
		return err
	}

	defer rpt.Close()

	area, err := rpt.PrintArea(date)
	if err != nil {
		return err
	}

	if strings.TrimSpace(cmd.tsv) == "" {
		return rpt.WriteTSV(os.Stdout, area)
	}

	return cmd.write(rpt, area)
}

func (cmd *Extract) write(rpt *report.Report, area report.PrintArea) error {
	dir := filepath.Dir(cmd.tsv)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".report-*.tsv")
	if err != nil {
		return err
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := rpt.WriteTSV(tmp, area); err != nil {
		return fmt.Errorf("error creating TSV file (%w)", err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), cmd.tsv); err != nil {
		return err
	}

	log.Successf("extracted %v!%v to %v", area.Sheet, area, cmd.tsv)

	return nil
}
