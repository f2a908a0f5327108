package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/uhppoted/uhppoted-app-report/auth"
	"github.com/uhppoted/uhppoted-app-report/config"
	"github.com/uhppoted/uhppoted-app-report/gdrive"
	"github.com/uhppoted/uhppoted-app-report/log"
	"github.com/uhppoted/uhppoted-app-report/notify"
	"github.com/uhppoted/uhppoted-app-report/render"
	"github.com/uhppoted/uhppoted-app-report/report"
)

const APP = "uhppoted-app-report"

// Options holds the global command line options.
type Options struct {
	Debug bool
	Env   string
}

// Command is implemented by every CLI command.
type Command interface {
	Name() string
	Description() string
	Command(options *Options) *cobra.Command
}

// Root returns the top level command. Invoked without a subcommand it executes the
// default command (the first in the list).
func Root(options *Options, cli ...Command) *cobra.Command {
	root := &cobra.Command{
		Use:           APP,
		Short:         "Emails a daily snapshot of a monthly report workbook stored in a Google shared drive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&options.Debug, "debug", options.Debug, "Enable debugging information")
	root.PersistentFlags().StringVar(&options.Env, "env", options.Env, "Path to a .env file with the configuration. Defaults to ./.env if it exists")

	for i, c := range cli {
		cmd := c.Command(options)
		root.AddCommand(cmd)

		if i == 0 {
			root.RunE = cmd.RunE
			root.Flags().AddFlagSet(cmd.Flags())
		}
	}

	return root
}

// configure loads the configuration and applies the --debug option.
func configure(options *Options) (*config.Config, error) {
	cfg, err := config.Load(options.Env)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration (%w)", err)
	}

	if options.Debug {
		cfg.Debug = true
	}

	log.SetDebug(cfg.Debug)

	return cfg, nil
}

func authorised(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	if !config.Exists(cfg.Google.Credentials) {
		return nil, fmt.Errorf("missing Google credentials file %v", cfg.Google.Credentials)
	}

	manager := auth.NewManager(cfg.Google.Credentials, cfg.Google.Tokens, cfg.Google.Interactive)

	return manager.Client(ctx)
}

func newDrive(ctx context.Context, cfg *config.Config, client *http.Client) (*gdrive.Drive, error) {
	if strings.TrimSpace(cfg.Drive.ID) == "" {
		return nil, fmt.Errorf("DRIVE_ID is required")
	}

	return gdrive.NewDrive(ctx, cfg.Drive.ID, option.WithHTTPClient(client))
}

func newSender(ctx context.Context, cfg *config.Config, client *http.Client) (notify.Sender, error) {
	switch cfg.Mail.Transport {
	case config.TransportSMTP:
		return &notify.SMTPSender{
			Address:  cfg.SMTP.Address,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Security: cfg.SMTP.Security,
		}, nil

	default:
		return notify.NewGmailSender(ctx, option.WithHTTPClient(client))
	}
}

func layout(cfg *config.Config) report.Options {
	return report.Options{
		SheetFormat: cfg.SheetFormat,
		DateFormat:  cfg.DateFormat,
		Column:      cfg.Scan.Column,
		FirstRow:    cfg.Scan.FirstRow,
		Step:        cfg.Scan.Step,
		MaxRow:      cfg.Scan.MaxRow,
		FirstColumn: cfg.Area.FirstColumn,
		LastColumn:  cfg.Area.LastColumn,
		Offset:      cfg.Area.Offset,
		Rows:        cfg.Area.Rows,
		Render: render.Options{
			DPI:       cfg.Render.DPI,
			Gridlines: cfg.Render.Gridlines,
		},
	}
}

func envelope(cfg *config.Config) notify.Envelope {
	return notify.Envelope{
		From:             cfg.Mail.From,
		To:               cfg.Mail.To,
		Cc:               cfg.Mail.Cc,
		Subject:          cfg.Mail.Subject,
		Signature:        cfg.Mail.Signature,
		Link:             cfg.Mail.Link,
		DateFormat:       cfg.DateFormat,
		AttachmentFormat: cfg.AttachmentFormat,
	}
}

// reportDate returns the --date option as a date in the configured time zone, or today
// if the option is blank.
func reportDate(cfg *config.Config, date string) (time.Time, error) {
	location, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}

	if strings.TrimSpace(date) == "" {
		return time.Now().In(location), nil
	}

	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date '%v' - expected YYYY-MM-DD (%w)", date, err)
	}

	return d, nil
}

// workbook returns the report workbook content, either from a local file or downloaded
// from the shared drive.
func workbook(ctx context.Context, cfg *config.Config, file string) ([]byte, error) {
	if file != "" {
		return os.ReadFile(file)
	}

	client, err := authorised(ctx, cfg)
	if err != nil {
		return nil, err
	}

	drive, err := newDrive(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	id, err := drive.Locate(ctx, cfg.Drive.Path)
	if err != nil {
		return nil, err
	}

	return drive.Download(ctx, id)
}
