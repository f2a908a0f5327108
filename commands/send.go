package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uhppoted/uhppoted-app-report/config"
	"github.com/uhppoted/uhppoted-app-report/log"
	"github.com/uhppoted/uhppoted-app-report/notify"
)

var SendCmd = Send{
	image: "",
	date:  "",
}

// Send emails an already rendered report image.
type Send struct {
	image string
	date  string
}

func (cmd *Send) Name() string {
	return "send"
}

func (cmd *Send) Description() string {
	return "Emails a rendered report image to the configured recipients"
}

func (cmd *Send) Command(options *Options) *cobra.Command {
	c := &cobra.Command{
		Use:     cmd.Name(),
		Short:   cmd.Description(),
		Example: fmt.Sprintf(`  %s send --image "report.png" --date 2026-10-18`, APP),
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Execute(c.Context(), options)
		},
	}

	c.Flags().StringVar(&cmd.image, "image", cmd.image, "PNG image file. Defaults to IMAGE_FILE")
	c.Flags().StringVar(&cmd.date, "date", cmd.date, "Report date (YYYY-MM-DD). Defaults to today")

	return c
}

func (cmd *Send) Execute(ctx context.Context, options *Options) error {
	cfg, err := configure(options)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration\n%w", err)
	}

	image := cfg.Image
	if strings.TrimSpace(cmd.image) != "" {
		image = cmd.image
	}

	if !config.Exists(image) {
		return fmt.Errorf("missing report image %v", image)
	}

	date, err := reportDate(cfg, cmd.date)
	if err != nil {
		return err
	}

	message, err := notify.Compose(envelope(cfg), image, date)
	if err != nil {
		return err
	}

	client, err := authorised(ctx, cfg)
	if err != nil {
		return err
	}

	sender, err := newSender(ctx, cfg, client)
	if err != nil {
		return err
	}

	id, err := sender.Send(ctx, message)
	if err != nil {
		return err
	}

	log.Successf("sent '%v' to %v (%v)", message.Subject, message.Recipients, id)

	return nil
}
