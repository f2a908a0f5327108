package commands

import (
	"context"
	"time"

	"github.com/uhppoted/uhppoted-app-report/gdrive"
	"github.com/uhppoted/uhppoted-app-report/history"
	"github.com/uhppoted/uhppoted-app-report/log"
	"github.com/uhppoted/uhppoted-app-report/notify"
	"github.com/uhppoted/uhppoted-app-report/report"
)

// Remote is the subset of the shared drive operations used by the pipeline.
type Remote interface {
	Locate(ctx context.Context, path string) (string, error)
	Stat(ctx context.Context, fileID string) (*gdrive.File, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Pipeline locates and downloads the report workbook, renders the block for the report
// date and emails it. Connect is invoked at the start of every attempt so that an
// authorisation failure is retried along with everything else.
type Pipeline struct {
	Connect  func(ctx context.Context) (Remote, notify.Sender, error)
	History  *history.Store
	Path     string
	Image    string
	Layout   report.Options
	Envelope notify.Envelope
	Location *time.Location
	RunID    string
	DryRun   bool

	// RetryOnSendFailure returns send errors to the caller. If false a failed send is
	// logged and recorded but the attempt is treated as complete.
	RetryOnSendFailure bool

	Now func() time.Time
}

// Execute runs a single attempt and records the outcome in the history store.
func (p *Pipeline) Execute(ctx context.Context, attempt int) error {
	record := history.Attempt{
		RunID:     p.RunID,
		Attempt:   attempt,
		StartedAt: p.now(),
		Status:    history.StatusFailed,
	}

	log.Infof("attempt %v", attempt)

	err := p.execute(ctx, &record)
	if err != nil {
		record.Error = err.Error()
	}

	record.FinishedAt = p.now()

	if p.History != nil {
		if err := p.History.Record(context.WithoutCancel(ctx), record); err != nil {
			log.Warnf("unable to record attempt (%v)", err)
		}
	}

	return err
}

func (p *Pipeline) execute(ctx context.Context, record *history.Attempt) error {
	date := p.now()
	if p.Location != nil {
		date = date.In(p.Location)
	}

	remote, sender, err := p.Connect(ctx)
	if err != nil {
		return err
	}

	// ... locate
	id, err := remote.Locate(ctx, p.Path)
	if err != nil {
		return err
	}

	record.FileID = id
	log.Successf("located %v (%v)", p.Path, id)

	if file, err := remote.Stat(ctx, id); err != nil {
		log.Warnf("%v", err)
	} else {
		record.Revision = file.Revision
		log.Infof("%v  revision:%v  modified:%v", file.Name, file.Revision, file.ModifiedTime.Format(time.RFC3339))
	}

	// ... render
	b, err := remote.Download(ctx, id)
	if err != nil {
		return err
	}

	log.Successf("downloaded %v (%v bytes)", p.Path, len(b))

	rpt, err := report.Open(b, p.Layout)
	if err != nil {
		return err
	}

	defer rpt.Close()

	area, err := rpt.PrintArea(date)
	if err != nil {
		return err
	}

	record.PrintArea = area.String()

	image, err := rpt.Render(area, p.Image)
	if err != nil {
		return err
	}

	record.Image = image
	record.Status = history.StatusRendered
	log.Successf("rendered %v!%v to %v", area.Sheet, area, image)

	if p.DryRun {
		log.Infof("dry run - report not sent")
		return nil
	}

	// ... notify
	message, err := notify.Compose(p.Envelope, image, date)
	if err != nil {
		return err
	}

	messageID, err := sender.Send(ctx, message)
	if err != nil && !p.RetryOnSendFailure {
		log.Warnf("report not sent - not retrying")
		record.Error = err.Error()
		return nil
	} else if err != nil {
		return err
	}

	record.MessageID = messageID
	record.Status = history.StatusSent
	log.Successf("sent '%v' to %v", message.Subject, message.Recipients)

	return nil
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}

	return time.Now()
}
