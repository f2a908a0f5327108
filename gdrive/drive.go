// Package gdrive resolves and downloads files held in a Google shared drive.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/uhppoted/uhppoted-app-report/log"
)

const (
	FolderMimeType = "application/vnd.google-apps.folder"

	// ChunkSize is the default download chunk size.
	ChunkSize = 1024 * 1024
)

var ErrEmptyPath = errors.New("empty file path")
var ErrNotFound = errors.New("not found")

// NotFoundError reports a path segment with no match under its parent folder.
type NotFoundError struct {
	Name   string
	Parent string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("'%v' not found in folder %v", e.Name, e.Parent)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// File is the subset of the Drive file metadata used by the report.
type File struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime time.Time
	Revision     string
	Size         int64
}

type Drive struct {
	service   *drive.Service
	driveID   string
	chunkSize int64
}

// NewDrive returns a Drive for the shared drive 'driveID'. The client options are passed
// through to the Drive service, typically option.WithHTTPClient with an authorised client.
func NewDrive(ctx context.Context, driveID string, options ...option.ClientOption) (*Drive, error) {
	service, err := drive.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to create new Drive client (%w)", err)
	}

	return &Drive{
		service:   service,
		driveID:   driveID,
		chunkSize: ChunkSize,
	}, nil
}

// WithChunkSize sets the download chunk size.
func (d *Drive) WithChunkSize(size int64) *Drive {
	if size > 0 {
		d.chunkSize = size
	}

	return d
}

// Locate walks the slash separated path from the root of the shared drive one folder at a
// time and returns the ID of the file named by the last segment. The first match is taken
// at every level.
func (d *Drive) Locate(ctx context.Context, path string) (string, error) {
	segments := split(path)
	if len(segments) == 0 {
		log.Errorf("failed to get file ID from Google Drive (%v)", ErrEmptyPath)
		return "", ErrEmptyPath
	}

	parent := d.driveID
	folders := segments[:len(segments)-1]
	filename := segments[len(segments)-1]

	for _, folder := range folders {
		id, err := d.find(ctx, folder, parent, true)
		if err != nil {
			log.Errorf("failed to get file ID from Google Drive (%v)", err)
			return "", err
		}

		log.Debugf("folder %-20v %v", folder, id)

		parent = id
	}

	id, err := d.find(ctx, filename, parent, false)
	if err != nil {
		log.Errorf("failed to get file ID from Google Drive (%v)", err)
		return "", err
	}

	log.Debugf("file   %-20v %v", filename, id)

	return id, nil
}

// Stat retrieves the file metadata. The revision falls back to the latest entry in the
// revisions list for files without a head revision.
func (d *Drive) Stat(ctx context.Context, fileID string) (*File, error) {
	f, err := d.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Fields("id,name,mimeType,modifiedTime,headRevisionId,size").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve metadata for file ID %v (%w)", fileID, err)
	}

	file := File{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Revision: f.HeadRevisionId,
		Size:     f.Size,
	}

	if f.ModifiedTime != "" {
		if modified, err := time.Parse(time.RFC3339, f.ModifiedTime); err != nil {
			log.Warnf("invalid modified time '%v' for file ID %v (%v)", f.ModifiedTime, fileID, err)
		} else {
			file.ModifiedTime = modified
		}
	}

	if file.Revision == "" {
		if v, err := d.latest(ctx, fileID); err != nil {
			log.Warnf("%v", err)
		} else {
			file.Revision = v.revision
		}
	}

	return &file, nil
}

// Download retrieves the file content, reading the response in fixed size chunks and
// logging the progress after each chunk.
func (d *Drive) Download(ctx context.Context, fileID string) ([]byte, error) {
	b, err := d.download(ctx, fileID)
	if err != nil {
		log.Errorf("failed to download file from Google Drive (%v)", err)
		return nil, err
	}

	return b, nil
}

func (d *Drive) download(ctx context.Context, fileID string) ([]byte, error) {
	response, err := d.service.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("unable to download file ID %v (%w)", fileID, err)
	}

	defer response.Body.Close()

	total := response.ContentLength
	var buffer bytes.Buffer
	var received int64

	if total > 0 {
		buffer.Grow(int(total))
	}

	for {
		N, err := io.CopyN(&buffer, response.Body, d.chunkSize)
		received += N

		if total > 0 {
			log.Infof("download progress: %d%%", 100*received/total)
		} else {
			log.Infof("download progress: %d bytes", received)
		}

		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("error downloading file ID %v (%w)", fileID, err)
		}
	}

	if total > 0 && received != total {
		return nil, fmt.Errorf("incomplete download of file ID %v (%d of %d bytes)", fileID, received, total)
	}

	return buffer.Bytes(), nil
}

func (d *Drive) find(ctx context.Context, name, parent string, folder bool) (string, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", escape(name), escape(parent))
	if folder {
		q = fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false", escape(name), escape(parent), FolderMimeType)
	}

	files, err := d.service.Files.List().
		Q(q).
		DriveId(d.driveID).
		Corpora("drive").
		IncludeItemsFromAllDrives(true).
		SupportsAllDrives(true).
		Fields("files(id,name,mimeType)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("error searching for '%v' in folder %v (%w)", name, parent, err)
	}

	if len(files.Files) == 0 {
		return "", &NotFoundError{Name: name, Parent: parent}
	}

	return files.Files[0].Id, nil
}

// split returns the non-empty path segments.
func split(path string) []string {
	segments := []string{}
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	return segments
}

// escape quotes a value for use in a Drive query string literal.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
