package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uhppoted/uhppoted-app-report/log"
	"github.com/uhppoted/uhppoted-app-report/report"
)

var RenderCmd = Render{
	file:  "",
	date:  "",
	image: "",
}

// Render renders the report block for a date to an image without sending it.
type Render struct {
	file  string
	date  string
	image string
}

func (cmd *Render) Name() string {
	return "render"
}

func (cmd *Render) Description() string {
	return "Renders the report block for a date to a PNG image"
}

func (cmd *Render) Command(options *Options) *cobra.Command {
	c := &cobra.Command{
		Use:   cmd.Name(),
		Short: cmd.Description(),
		Example: fmt.Sprintf(`  %s render --date 2026-10-18 --image "report.png"
  %s render --file "daily.xlsx" --date 2026-10-18`, APP, APP),
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Execute(c.Context(), options)
		},
	}

	c.Flags().StringVar(&cmd.file, "file", cmd.file, "Local xlsx workbook. Defaults to downloading DRIVE_PATH from the shared drive")
	c.Flags().StringVar(&cmd.date, "date", cmd.date, "Report date (YYYY-MM-DD). Defaults to today")
	c.Flags().StringVar(&cmd.image, "image", cmd.image, "PNG image file. Defaults to IMAGE_FILE")

	return c
}

func (cmd *Render) Execute(ctx context.Context, options *Options) error {
	cfg, err := configure(options)
	if err != nil {
		return err
	}

	image := cfg.Image
	if strings.TrimSpace(cmd.image) != "" {
		image = cmd.image
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

	path, err := rpt.Render(area, image)
	if err != nil {
		return err
	}

	log.Successf("rendered %v!%v to %v", area.Sheet, area, path)

	return nil
}
