package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
)

const driveID = "0AF3xxLmz9QdUk9PVA"

type entry struct {
	id     string
	name   string
	parent string
	folder bool
}

type query struct {
	name   string
	parent string
	folder bool
}

type fake struct {
	sync.Mutex
	entries []entry
	content map[string][]byte
	queries []query
	fail    bool
}

var queryRE = regexp.MustCompile(`^name = '((?:[^'\\]|\\.)*)' and '([^']*)' in parents(?: and mimeType = '([^']*)')? and trashed = false$`)

func (f *fake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	defer f.Unlock()

	if f.fail {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/files"):
		f.list(w, r)

	case strings.Contains(r.URL.Path, "/files/") && r.URL.Query().Get("alt") == "media":
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if b, ok := f.content[id]; ok {
			w.Header().Set("Content-Length", fmt.Sprintf("%v", len(b)))
			w.Write(b)
		} else {
			http.Error(w, `{"error":{"code":404,"message":"File not found"}}`, http.StatusNotFound)
		}

	case strings.HasSuffix(r.URL.Path, "/revisions"):
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"revisions":[{"id":"r1","modifiedTime":"2026-10-01T08:00:00.000Z"},{"id":"r3","modifiedTime":"2026-10-17T08:00:00.000Z"},{"id":"r2","modifiedTime":"2026-10-09T08:00:00.000Z"}]}`)

	case strings.Contains(r.URL.Path, "/files/"):
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"F3","name":"daily.xlsx","mimeType":"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet","modifiedTime":"2026-10-17T08:30:00.000Z","size":"1234"}`)

	default:
		http.NotFound(w, r)
	}
}

func (f *fake) list(w http.ResponseWriter, r *http.Request) {
	match := queryRE.FindStringSubmatch(r.URL.Query().Get("q"))
	if match == nil {
		http.Error(w, `{"error":{"code":400,"message":"invalid query"}}`, http.StatusBadRequest)
		return
	}

	name := strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(match[1])
	q := query{name: name, parent: match[2], folder: match[3] != ""}

	f.queries = append(f.queries, q)

	files := []map[string]string{}
	for _, e := range f.entries {
		if e.name == q.name && e.parent == q.parent && (!q.folder || e.folder) {
			files = append(files, map[string]string{"id": e.id, "name": e.name})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"files": files})
}

func setup(t *testing.T, f *fake) *Drive {
	t.Helper()

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	d, err := NewDrive(context.Background(), driveID, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("error creating Drive client (%v)", err)
	}

	return d
}

func tree() *fake {
	return &fake{
		entries: []entry{
			{"F1", "Reports", driveID, true},
			{"F1b", "Reports", driveID, true},
			{"F2", "2026", "F1", true},
			{"F3", "daily.xlsx", "F2", false},
			{"F4", "daily.xlsx", "F1b", false},
			{"F5", "O'Brien's", driveID, true},
			{"F6", "notes.txt", "F5", false},
		},
		content: map[string][]byte{},
	}
}

func TestLocate(t *testing.T) {
	f := tree()
	d := setup(t, f)

	id, err := d.Locate(context.Background(), "Reports/2026/daily.xlsx")
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if id != "F3" {
		t.Errorf("incorrect file ID - expected:%v, got:%v", "F3", id)
	}

	expected := []query{
		{name: "Reports", parent: driveID, folder: true},
		{name: "2026", parent: "F1", folder: true},
		{name: "daily.xlsx", parent: "F2", folder: false},
	}

	if !reflect.DeepEqual(f.queries, expected) {
		t.Errorf("incorrect queries\n   expected:%v\n   got:     %v", expected, f.queries)
	}
}

func TestLocateTopLevelFile(t *testing.T) {
	f := tree()
	f.entries = append(f.entries, entry{"F7", "summary.xlsx", driveID, false})

	d := setup(t, f)

	id, err := d.Locate(context.Background(), "/summary.xlsx")
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if id != "F7" {
		t.Errorf("incorrect file ID - expected:%v, got:%v", "F7", id)
	}

	if len(f.queries) != 1 {
		t.Errorf("expected 1 query, got %v", len(f.queries))
	}
}

func TestLocateEscapesQuotes(t *testing.T) {
	f := tree()
	d := setup(t, f)

	id, err := d.Locate(context.Background(), "O'Brien's/notes.txt")
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if id != "F6" {
		t.Errorf("incorrect file ID - expected:%v, got:%v", "F6", id)
	}
}

func TestLocateEmptyPath(t *testing.T) {
	f := tree()
	d := setup(t, f)

	for _, path := range []string{"", "/", "//"} {
		id, err := d.Locate(context.Background(), path)
		if !errors.Is(err, ErrEmptyPath) {
			t.Errorf("'%v': expected ErrEmptyPath, got %v", path, err)
		}

		if id != "" {
			t.Errorf("'%v': expected empty ID, got %v", path, id)
		}
	}

	if len(f.queries) != 0 {
		t.Errorf("expected no queries, got %v", f.queries)
	}
}

func TestLocateNotFound(t *testing.T) {
	tests := []struct {
		path     string
		expected NotFoundError
		queries  int
	}{
		{"Reports/2025/daily.xlsx", NotFoundError{Name: "2025", Parent: "F1"}, 2},
		{"Reports/2026/weekly.xlsx", NotFoundError{Name: "weekly.xlsx", Parent: "F2"}, 3},
		{"Archive/daily.xlsx", NotFoundError{Name: "Archive", Parent: driveID}, 1},
	}

	for _, test := range tests {
		f := tree()
		d := setup(t, f)

		id, err := d.Locate(context.Background(), test.path)

		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("%v: expected NotFoundError, got %v", test.path, err)
		}

		if *nf != test.expected {
			t.Errorf("%v: incorrect error - expected:%v, got:%v", test.path, test.expected, *nf)
		}

		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%v: expected error to wrap ErrNotFound", test.path)
		}

		if id != "" {
			t.Errorf("%v: expected empty ID, got %v", test.path, id)
		}

		if len(f.queries) != test.queries {
			t.Errorf("%v: expected %v queries, got %v", test.path, test.queries, len(f.queries))
		}
	}
}

func TestLocateRemoteError(t *testing.T) {
	f := tree()
	f.fail = true

	d := setup(t, f)

	id, err := d.Locate(context.Background(), "Reports/2026/daily.xlsx")
	if err == nil {
		t.Fatalf("expected error, got %v", err)
	}

	if errors.Is(err, ErrNotFound) {
		t.Errorf("expected remote error, got %v", err)
	}

	if id != "" {
		t.Errorf("expected empty ID, got %v", id)
	}
}

func TestDownload(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789abcdef"), 1000)

	f := tree()
	f.content["F3"] = content

	d := setup(t, f).WithChunkSize(1024)

	b, err := d.Download(context.Background(), "F3")
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	if !bytes.Equal(b, content) {
		t.Errorf("incorrect content - expected %v bytes, got %v bytes", len(content), len(b))
	}
}

func TestDownloadNotFound(t *testing.T) {
	f := tree()
	d := setup(t, f)

	if _, err := d.Download(context.Background(), "F99"); err == nil {
		t.Errorf("expected error, got %v", err)
	}
}

func TestStat(t *testing.T) {
	f := tree()
	d := setup(t, f)

	file, err := d.Stat(context.Background(), "F3")
	if err != nil {
		t.Fatalf("unexpected error (%v)", err)
	}

	expected := File{
		ID:           "F3",
		Name:         "daily.xlsx",
		MimeType:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		ModifiedTime: time.Date(2026, time.October, 17, 8, 30, 0, 0, time.UTC),
		Revision:     "r3",
		Size:         1234,
	}

	if !reflect.DeepEqual(*file, expected) {
		t.Errorf("incorrect file metadata\n   expected:%+v\n   got:     %+v", expected, *file)
	}
}

func TestEscape(t *testing.T) {
	tests := map[string]string{
		"daily.xlsx": "daily.xlsx",
		"O'Brien":    `O\'Brien`,
		`a\b`:        `a\\b`,
		`a\'b`:       `a\\\'b`,
	}

	for s, expected := range tests {
		if got := escape(s); got != expected {
			t.Errorf("escape(%v) - expected:%v, got:%v", s, expected, got)
		}
	}
}
