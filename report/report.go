// Package report locates the daily block of a monthly report workbook and renders it
// to an image.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/uhppoted/uhppoted-app-report/log"
	"github.com/uhppoted/uhppoted-app-report/render"
)

// Options defines the workbook layout: the sheet name and date formats (as Go time
// layouts), the column scanned for the date and the block of cells around the date row
// that is rendered.
type Options struct {
	SheetFormat string
	DateFormat  string

	Column   string
	FirstRow int
	Step     int
	MaxRow   int

	FirstColumn string
	LastColumn  string
	Offset      int
	Rows        int

	Render render.Options
}

var ErrEmptyWorkbook = errors.New("empty workbook")
var ErrSheetNotFound = errors.New("worksheet not found")
var ErrDateNotFound = errors.New("date row not found")

type SheetNotFoundError struct {
	Sheet string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("worksheet '%v' not found", e.Sheet)
}

func (e *SheetNotFoundError) Unwrap() error {
	return ErrSheetNotFound
}

type DateNotFoundError struct {
	Sheet   string
	Date    string
	LastRow int
}

func (e *DateNotFoundError) Error() string {
	return fmt.Sprintf("'%v' not found in worksheet '%v' (scanned to row %v)", e.Date, e.Sheet, e.LastRow)
}

func (e *DateNotFoundError) Unwrap() error {
	return ErrDateNotFound
}

type Report struct {
	file    *excelize.File
	options Options
}

// DefaultOptions returns the layout of the standard monthly report: one worksheet per
// month named YYYYMM, a date heading every 10 rows in column D starting at row 2 and a
// 10 row block of columns A to D starting one row above the date.
func DefaultOptions() Options {
	return Options{
		SheetFormat: "200601",
		DateFormat:  "January 2, 2006",
		Column:      "D",
		FirstRow:    2,
		Step:        10,
		MaxRow:      1000,
		FirstColumn: "A",
		LastColumn:  "D",
		Offset:      -1,
		Rows:        10,
		Render: render.Options{
			DPI: render.DefaultDPI,
		},
	}
}

// Open parses the xlsx workbook content.
func Open(b []byte, options Options) (*Report, error) {
	if len(b) == 0 {
		return nil, ErrEmptyWorkbook
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("invalid workbook (%w)", err)
	}

	return &Report{
		file:    f,
		options: options,
	}, nil
}

func (r *Report) Close() error {
	return r.file.Close()
}

// Sheet returns the name of the worksheet for the month of 'date'.
func (r *Report) Sheet(date time.Time) (string, error) {
	name := date.Format(r.options.SheetFormat)

	index, err := r.file.GetSheetIndex(name)
	if err != nil {
		return "", err
	} else if index < 0 {
		return "", &SheetNotFoundError{Sheet: name}
	}

	return r.file.GetSheetName(index), nil
}

// ZeroMargins sets the left, right, top and bottom page margins of the worksheet to 0.
func (r *Report) ZeroMargins(sheet string) error {
	zero := 0.0
	margins := excelize.PageLayoutMarginsOptions{
		Left:   &zero,
		Right:  &zero,
		Top:    &zero,
		Bottom: &zero,
	}

	return r.file.SetPageMargins(sheet, &margins)
}

// FindDate scans the date column from the first row in fixed steps for a cell that
// displays 'date' in the date format and returns the first matching row.
func (r *Report) FindDate(sheet string, date time.Time) (int, error) {
	if r.options.FirstRow < 1 || r.options.Step < 1 {
		return 0, fmt.Errorf("invalid scan first row/step (%v,%v)", r.options.FirstRow, r.options.Step)
	}

	expected := date.Format(r.options.DateFormat)
	last := r.options.FirstRow

	for row := r.options.FirstRow; row <= r.options.MaxRow; row += r.options.Step {
		cell := fmt.Sprintf("%v%v", r.options.Column, row)

		value, err := r.file.GetCellValue(sheet, cell)
		if err != nil {
			return 0, err
		}

		if strings.TrimSpace(value) == expected {
			log.Debugf("found '%v' in %v!%v", expected, sheet, cell)
			return row, nil
		}

		last = row
	}

	return 0, &DateNotFoundError{
		Sheet:   sheet,
		Date:    expected,
		LastRow: last,
	}
}

// PrintArea selects the worksheet for 'date', zeroes the page margins and returns the
// block of cells anchored on the row matching the date. The area is also set as the
// print area of the worksheet, fitted to a single page.
func (r *Report) PrintArea(date time.Time) (PrintArea, error) {
	sheet, err := r.Sheet(date)
	if err != nil {
		return PrintArea{}, err
	}

	if err := r.ZeroMargins(sheet); err != nil {
		return PrintArea{}, err
	}

	row, err := r.FindDate(sheet, date)
	if err != nil {
		return PrintArea{}, err
	}

	left, err := excelize.ColumnNameToNumber(r.options.FirstColumn)
	if err != nil {
		return PrintArea{}, err
	}

	right, err := excelize.ColumnNameToNumber(r.options.LastColumn)
	if err != nil {
		return PrintArea{}, err
	}

	area := PrintArea{
		Sheet:  sheet,
		Left:   left,
		Top:    row + r.options.Offset,
		Right:  right,
		Bottom: row + r.options.Offset + r.options.Rows - 1,
	}

	if area.Top < 1 || area.Right < area.Left || area.Bottom < area.Top {
		return PrintArea{}, fmt.Errorf("invalid print area %v", area)
	}

	if err := r.setPrintArea(area); err != nil {
		return PrintArea{}, err
	}

	return area, nil
}

func (r *Report) setPrintArea(area PrintArea) error {
	name := excelize.DefinedName{
		Name:     "_xlnm.Print_Area",
		RefersTo: area.Ref(),
		Scope:    area.Sheet,
	}

	// replaces any existing print area, ErrDefinedNameScope if there isn't one yet
	if err := r.file.DeleteDefinedName(&name); err != nil && !errors.Is(err, excelize.ErrDefinedNameScope) {
		return err
	}

	if err := r.file.SetDefinedName(&name); err != nil {
		return err
	}

	one := 1
	layout := excelize.PageLayoutOptions{
		FitToHeight: &one,
		FitToWidth:  &one,
	}

	return r.file.SetPageLayout(area.Sheet, &layout)
}

// Render rasterises the print area to a PNG file, replacing any existing file.
func (r *Report) Render(area PrintArea, file string) (string, error) {
	img, err := render.Render(r.file, area.Sheet, area.Range(), r.options.Render)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".report-*.png")
	if err != nil {
		return "", err
	}

	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", err
	}

	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), file); err != nil {
		return "", err
	}

	return file, nil
}
