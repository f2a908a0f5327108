package gdrive

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/drive/v3"
)

type version struct {
	revision string
	modified time.Time
}

// latest pages through the file revisions and returns the most recently modified one.
func (d *Drive) latest(ctx context.Context, fileID string) (*version, error) {
	page := ""
	latest := version{
		revision: "",
		modified: time.Time{},
	}

	for {
		call := drive.NewRevisionsService(d.service).List(fileID).Fields("nextPageToken,revisions(id,modifiedTime)")
		if page != "" {
			call.PageToken(page)
		}

		revisions, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list revisions for file ID %s (%w)", fileID, err)
		}

		for _, revision := range revisions.Revisions {
			datetime, err := time.Parse(time.RFC3339, revision.ModifiedTime)
			if err != nil {
				return nil, err
			}

			if latest.modified.Before(datetime) {
				latest.revision = revision.Id
				latest.modified = datetime
			}
		}

		if page = revisions.NextPageToken; page == "" {
			break
		}
	}

	if latest.modified.IsZero() {
		return nil, fmt.Errorf("unable to identify latest revision for file ID %s", fileID)
	}

	return &latest, nil
}
