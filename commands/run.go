package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	lib "github.com/uhppoted/uhppoted-lib/config"
	"github.com/uhppoted/uhppoted-lib/lockfile"

	"github.com/uhppoted/uhppoted-app-report/auth"
	"github.com/uhppoted/uhppoted-app-report/config"
	"github.com/uhppoted/uhppoted-app-report/history"
	"github.com/uhppoted/uhppoted-app-report/log"
	"github.com/uhppoted/uhppoted-app-report/notify"
	"github.com/uhppoted/uhppoted-app-report/retry"
)

var RunCmd = Run{
	dryRun: false,
	strict: false,
}

// Run is the cron entry point: it runs the report pipeline with retries. Failures are
// logged but, unless --strict is set, do not affect the exit code.
type Run struct {
	dryRun bool
	strict bool
}

func (cmd *Run) Name() string {
	return "run"
}

func (cmd *Run) Description() string {
	return "Renders today's report block and emails it to the configured recipients"
}

func (cmd *Run) Command(options *Options) *cobra.Command {
	c := &cobra.Command{
		Use:   cmd.Name(),
		Short: cmd.Description(),
		Long: `Locates the report workbook in the shared drive, renders the block of cells for today's
date to an image and emails it, retrying the whole sequence on failure.`,
		Example: fmt.Sprintf("  %s --env /usr/local/etc/uhppoted/report/.env run", APP),
		Args:    cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Execute(c.Context(), options)
		},
	}

	c.Flags().BoolVar(&cmd.dryRun, "dry-run", cmd.dryRun, "Renders the report image but does not send it")
	c.Flags().BoolVar(&cmd.strict, "strict", cmd.strict, "Exits with an error if the report could not be sent")

	return c
}

func (cmd *Run) Execute(ctx context.Context, options *Options) error {
	cfg, err := configure(options)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration\n%w", err)
	}

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	if cfg.Lockfile != "" {
		guard, err := lock(cfg.Lockfile)
		if err != nil {
			return cmd.fail(err)
		}

		defer guard.Release()
	}

	runID := uuid.NewString()

	log.SetTag(runID[:8])
	defer log.SetTag("")

	log.Infof("run %v", runID)

	var store *history.Store
	if cfg.History != "" {
		if store, err = history.Open(ctx, cfg.History); err != nil {
			log.Warnf("attempt history disabled (%v)", err)
		} else {
			defer store.Close()
		}
	}

	pipeline := Pipeline{
		Connect: func(ctx context.Context) (Remote, notify.Sender, error) {
			return connect(ctx, cfg)
		},
		History:            store,
		Path:               cfg.Drive.Path,
		Image:              cfg.Image,
		Layout:             layout(cfg),
		Envelope:           envelope(cfg),
		Location:           location,
		RunID:              runID,
		DryRun:             cmd.dryRun,
		RetryOnSendFailure: cfg.Retry.OnSendFailure,
	}

	driver := retry.Driver{
		Attempts:  cfg.Retry.Attempts,
		Wait:      cfg.Retry.Wait,
		Retryable: retryable,
	}

	if err := driver.Run(ctx, pipeline.Execute); err != nil {
		return cmd.fail(err)
	}

	log.Successf("done")

	return nil
}

func (cmd *Run) fail(err error) error {
	log.Errorf("%v", err)

	if cmd.strict {
		return err
	}

	return nil
}

// lock takes a non-blocking flock on the lock file, failing if another run holds it.
func lock(file string) (lockfile.Lockfile, error) {
	return lockfile.MakeLockFile(lib.Lockfile{
		File:   file,
		Remove: lockfile.RemoveLockfile,
	})
}

// retryable excludes the errors that need user action to fix.
func retryable(err error) bool {
	return !errors.Is(err, auth.ErrNotAuthorised)
}

func connect(ctx context.Context, cfg *config.Config) (Remote, notify.Sender, error) {
	client, err := authorised(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	drive, err := newDrive(ctx, cfg, client)
	if err != nil {
		return nil, nil, err
	}

	sender, err := newSender(ctx, cfg, client)
	if err != nil {
		return nil, nil, err
	}

	return drive, sender, nil
}
