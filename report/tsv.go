package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table holds the displayed values of a print area, one record per row.
type Table struct {
	Records [][]string
}

// Table returns the displayed (formatted) cell values of the print area.
func (r *Report) Table(area PrintArea) (*Table, error) {
	records := [][]string{}

	for row := area.Top; row <= area.Bottom; row++ {
		record := []string{}

		for col := area.Left; col <= area.Right; col++ {
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return nil, err
			}

			v, err := r.file.GetCellValue(area.Sheet, cell)
			if err != nil {
				return nil, err
			}

			record = append(record, clean(v))
		}

		records = append(records, record)
	}

	return &Table{
		Records: records,
	}, nil
}

// WriteTSV writes the displayed values of the print area as tab separated values.
func (r *Report) WriteTSV(f io.Writer, area PrintArea) error {
	table, err := r.Table(area)
	if err != nil {
		return err
	}

	if len(table.Records) == 0 {
		return fmt.Errorf("empty print area")
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'

	for _, record := range table.Records {
		w.Write(record)
	}

	w.Flush()

	return w.Error()
}

func clean(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
