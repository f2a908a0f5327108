package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/uhppoted/uhppoted-app-report/render"
)

// PrintArea is a 1-based inclusive block of cells on a worksheet.
type PrintArea struct {
	Sheet  string
	Left   int
	Top    int
	Right  int
	Bottom int
}

// String returns the area as a cell range e.g. A11:D20.
func (a PrintArea) String() string {
	return a.Range().String()
}

// Ref returns the absolute reference used for a defined name e.g. '202610'!$A$11:$D$20.
func (a PrintArea) Ref() string {
	left, _ := excelize.ColumnNumberToName(a.Left)
	right, _ := excelize.ColumnNumberToName(a.Right)
	sheet := strings.ReplaceAll(a.Sheet, "'", "''")

	return fmt.Sprintf("'%v'!$%v$%v:$%v$%v", sheet, left, a.Top, right, a.Bottom)
}

func (a PrintArea) Range() render.Range {
	return render.Range{
		Left:   a.Left,
		Top:    a.Top,
		Right:  a.Right,
		Bottom: a.Bottom,
	}
}
