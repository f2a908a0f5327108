// Package render rasterises a rectangular cell range of an excelize worksheet to an image.
//
// The renderer draws what a printed page of the range would show: column widths and
// row heights, page margins, merged cells, solid fills, borders, fonts, alignment and
// (optionally) gridlines. Charts, images, conditional formats and rich text runs are not
// drawn.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/xuri/excelize/v2"
)

// Range is a 1-based inclusive cell range.
type Range struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

func (r Range) String() string {
	tl, _ := excelize.CoordinatesToCellName(r.Left, r.Top)
	br, _ := excelize.CoordinatesToCellName(r.Right, r.Bottom)

	return fmt.Sprintf("%v:%v", tl, br)
}

type Options struct {
	DPI       float64
	Gridlines bool
}

const (
	DefaultDPI = 96.0

	// maximum digit width of the default 11pt Calibri font at 96 DPI
	mdw = 7.0

	padding = 2
)

var (
	white    = color.RGBA{0xff, 0xff, 0xff, 0xff}
	black    = color.RGBA{0x00, 0x00, 0x00, 0xff}
	gridline = color.RGBA{0xd4, 0xd4, 0xd4, 0xff}
)

// region is the pixel rectangle of a cell or a merged cell.
type region struct {
	image.Rectangle
	cols [2]int
	rows [2]int
}

type renderer struct {
	f       *excelize.File
	sheet   string
	area    Range
	options Options
	faces   *faces

	img     *image.RGBA
	content image.Rectangle
	xs      []int
	ys      []int
	merged  map[[2]int]region
	covered map[[2]int][2]int
}

// Render draws the cell range 'r' of the worksheet, padded by the sheet page margins.
func Render(f *excelize.File, sheet string, r Range, options Options) (*image.RGBA, error) {
	if r.Left < 1 || r.Top < 1 || r.Right < r.Left || r.Bottom < r.Top {
		return nil, fmt.Errorf("invalid range %+v", r)
	}

	if index, err := f.GetSheetIndex(sheet); err != nil {
		return nil, err
	} else if index < 0 {
		return nil, fmt.Errorf("worksheet '%v' does not exist", sheet)
	}

	if options.DPI <= 0 {
		options.DPI = DefaultDPI
	}

	rr := renderer{
		f:       f,
		sheet:   sheet,
		area:    r,
		options: options,
		faces:   newFaces(options.DPI),
		merged:  map[[2]int]region{},
		covered: map[[2]int][2]int{},
	}

	defer rr.faces.Close()

	if err := rr.layout(); err != nil {
		return nil, err
	}

	if err := rr.merges(); err != nil {
		return nil, err
	}

	if options.Gridlines {
		rr.gridlines()
	}

	if err := rr.fills(); err != nil {
		return nil, err
	}

	if err := rr.borders(); err != nil {
		return nil, err
	}

	if err := rr.text(); err != nil {
		return nil, err
	}

	return rr.img, nil
}

// ColumnPixels converts an Excel column width (in characters of the default font) to
// pixels at the given DPI.
func ColumnPixels(width float64, dpi float64) int {
	px := math.Trunc(((256*width + math.Trunc(128/mdw)) / 256) * mdw)

	return int(math.Round(px * dpi / DefaultDPI))
}

// RowPixels converts a row height in points to pixels at the given DPI.
func RowPixels(height float64, dpi float64) int {
	return int(math.Round(height * dpi / 72))
}

func (r *renderer) layout() error {
	dpi := r.options.DPI

	margins, err := r.f.GetPageMargins(r.sheet)
	if err != nil {
		return err
	}

	inches := func(v *float64) int {
		if v == nil || *v < 0 {
			return 0
		}

		return int(math.Round(*v * dpi))
	}

	left, right := inches(margins.Left), inches(margins.Right)
	top, bottom := inches(margins.Top), inches(margins.Bottom)

	x := left
	for col := r.area.Left; col <= r.area.Right; col++ {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}

		r.xs = append(r.xs, x)

		if visible, err := r.f.GetColVisible(r.sheet, name); err != nil {
			return err
		} else if !visible {
			continue
		}

		width, err := r.f.GetColWidth(r.sheet, name)
		if err != nil {
			return err
		}

		x += ColumnPixels(width, dpi)
	}

	r.xs = append(r.xs, x)

	hidden, err := r.hidden()
	if err != nil {
		return err
	}

	y := top
	for row := r.area.Top; row <= r.area.Bottom; row++ {
		r.ys = append(r.ys, y)

		if hidden[row] {
			continue
		}

		height, err := r.f.GetRowHeight(r.sheet, row)
		if err != nil {
			return err
		}

		y += RowPixels(height, dpi)
	}

	r.ys = append(r.ys, y)

	r.content = image.Rect(left, top, x, y)
	r.img = image.NewRGBA(image.Rect(0, 0, x+right, y+bottom))

	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)

	return nil
}

// hidden returns the hidden rows up to the bottom of the range. GetRowVisible reports rows
// past the last row in the sheet data as hidden, so the row options are read instead.
func (r *renderer) hidden() (map[int]bool, error) {
	rows, err := r.f.Rows(r.sheet)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	hidden := map[int]bool{}
	for row := 1; row <= r.area.Bottom && rows.Next(); row++ {
		if rows.GetRowOpts().Hidden {
			hidden[row] = true
		}
	}

	return hidden, rows.Error()
}

// cell returns the pixel rectangle of a single cell in the range.
func (r *renderer) cell(col, row int) image.Rectangle {
	i := col - r.area.Left
	j := row - r.area.Top

	return image.Rect(r.xs[i], r.ys[j], r.xs[i+1], r.ys[j+1])
}

func (r *renderer) merges() error {
	merges, err := r.f.GetMergeCells(r.sheet)
	if err != nil {
		return err
	}

	for _, m := range merges {
		c0, r0, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			return err
		}

		c1, r1, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			return err
		}

		// ... clip to the rendered range
		left, top := max(c0, r.area.Left), max(r0, r.area.Top)
		right, bottom := min(c1, r.area.Right), min(r1, r.area.Bottom)

		if left > right || top > bottom {
			continue
		}

		rg := region{
			Rectangle: r.cell(left, top).Union(r.cell(right, bottom)),
			cols:      [2]int{left, right},
			rows:      [2]int{top, bottom},
		}

		r.merged[[2]int{left, top}] = rg

		for col := left; col <= right; col++ {
			for row := top; row <= bottom; row++ {
				if col != left || row != top {
					r.covered[[2]int{col, row}] = [2]int{left, top}
				}
			}
		}
	}

	return nil
}

// region returns the rectangle painted for the cell, i.e. the whole merged area for the
// top left cell of a merge. Cells hidden by a merge return false.
func (r *renderer) region(col, row int) (region, bool) {
	if _, ok := r.covered[[2]int{col, row}]; ok {
		return region{}, false
	}

	if rg, ok := r.merged[[2]int{col, row}]; ok {
		return rg, true
	}

	return region{
		Rectangle: r.cell(col, row),
		cols:      [2]int{col, col},
		rows:      [2]int{row, row},
	}, true
}

func (r *renderer) style(col, row int) (*excelize.Style, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}

	index, err := r.f.GetCellStyle(r.sheet, name)
	if err != nil {
		return nil, err
	}

	return r.f.GetStyle(index)
}

func (r *renderer) gridlines() {
	for row := r.area.Top; row <= r.area.Bottom; row++ {
		for col := r.area.Left; col <= r.area.Right; col++ {
			rg, ok := r.region(col, row)
			if !ok {
				continue
			}

			r.hline(rg.Min.X, rg.Max.X, rg.Min.Y, 1, gridline, nil)
			r.hline(rg.Min.X, rg.Max.X, rg.Max.Y, 1, gridline, nil)
			r.vline(rg.Min.X, rg.Min.Y, rg.Max.Y, 1, gridline, nil)
			r.vline(rg.Max.X, rg.Min.Y, rg.Max.Y, 1, gridline, nil)
		}
	}
}

func (r *renderer) fills() error {
	for row := r.area.Top; row <= r.area.Bottom; row++ {
		for col := r.area.Left; col <= r.area.Right; col++ {
			rg, ok := r.region(col, row)
			if !ok {
				continue
			}

			style, err := r.style(col, row)
			if err != nil {
				return err
			}

			if c, ok := fill(style); ok {
				draw.Draw(r.img, rg.Rectangle, image.NewUniform(c), image.Point{}, draw.Src)
			}
		}
	}

	return nil
}

// fill returns the background colour of a solid or gradient fill.
func fill(style *excelize.Style) (color.Color, bool) {
	if style == nil || len(style.Fill.Color) == 0 {
		return nil, false
	}

	switch {
	case style.Fill.Type == "pattern" && style.Fill.Pattern == 1:
		return parseColour(style.Fill.Color[0])

	case style.Fill.Type == "gradient":
		return parseColour(style.Fill.Color[0])
	}

	return nil, false
}

func (r *renderer) borders() error {
	for row := r.area.Top; row <= r.area.Bottom; row++ {
		for col := r.area.Left; col <= r.area.Right; col++ {
			style, err := r.style(col, row)
			if err != nil {
				return err
			}

			if style == nil || len(style.Border) == 0 {
				continue
			}

			// ... only the outer edges of a merged area are drawn
			rg := region{Rectangle: r.cell(col, row), cols: [2]int{col, col}, rows: [2]int{row, row}}
			if anchor, ok := r.covered[[2]int{col, row}]; ok {
				rg = r.merged[anchor]
			} else if m, ok := r.merged[[2]int{col, row}]; ok {
				rg = m
			}

			cell := r.cell(col, row)

			for _, b := range style.Border {
				if b.Style == 0 {
					continue
				}

				c := color.Color(black)
				if v, ok := parseColour(b.Color); ok {
					c = v
				}

				width, dash := lineStyle(b.Style)

				switch b.Type {
				case "left":
					if col == rg.cols[0] {
						r.vline(cell.Min.X, cell.Min.Y, cell.Max.Y, width, c, dash)
					}

				case "right":
					if col == rg.cols[1] {
						r.vline(cell.Max.X, cell.Min.Y, cell.Max.Y, width, c, dash)
					}

				case "top":
					if row == rg.rows[0] {
						r.hline(cell.Min.X, cell.Max.X, cell.Min.Y, width, c, dash)
					}

				case "bottom":
					if row == rg.rows[1] {
						r.hline(cell.Min.X, cell.Max.X, cell.Max.Y, width, c, dash)
					}
				}
			}
		}
	}

	return nil
}

// lineStyle maps the border style index to a line width and dash pattern.
func lineStyle(style int) (int, []int) {
	switch style {
	case 2: // medium
		return 2, nil
	case 3: // dashed
		return 1, []int{3, 1}
	case 4: // dotted
		return 1, []int{1, 1}
	case 5: // thick
		return 3, nil
	case 6: // double
		return 3, nil
	case 7: // hair
		return 1, []int{1, 1}
	case 8: // medium dashed
		return 2, []int{6, 2}
	case 9, 11: // dash-dot, dash-dot-dot
		return 1, []int{6, 2, 2, 2}
	case 10, 12, 13: // medium dash-dot, medium dash-dot-dot, slant dash-dot
		return 2, []int{6, 2, 2, 2}
	default:
		return 1, nil
	}
}

// hline draws a horizontal line of the given width centred on the edge at y, nudged
// inside the content area so that edges on the outline of the range remain visible.
func (r *renderer) hline(x0, x1, y, width int, c color.Color, dash []int) {
	y0 := clamp(y-(width+1)/2, width, r.content.Min.Y, r.content.Max.Y)

	for x := x0; x < x1; x++ {
		if on(x-x0, dash) {
			for dy := 0; dy < width; dy++ {
				r.img.Set(x, y0+dy, c)
			}
		}
	}
}

func (r *renderer) vline(x, y0, y1, width int, c color.Color, dash []int) {
	x0 := clamp(x-(width+1)/2, width, r.content.Min.X, r.content.Max.X)

	for y := y0; y < y1; y++ {
		if on(y-y0, dash) {
			for dx := 0; dx < width; dx++ {
				r.img.Set(x0+dx, y, c)
			}
		}
	}
}

func clamp(v, width, lower, upper int) int {
	if v+width > upper {
		v = upper - width
	}

	if v < lower {
		v = lower
	}

	return v
}

func on(offset int, dash []int) bool {
	if len(dash) == 0 {
		return true
	}

	period := 0
	for _, d := range dash {
		period += d
	}

	offset %= period
	for i, d := range dash {
		if offset < d {
			return i%2 == 0
		}

		offset -= d
	}

	return true
}
