package render

import (
	"image"
	"image/color"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

func (r *renderer) text() error {
	for row := r.area.Top; row <= r.area.Bottom; row++ {
		for col := r.area.Left; col <= r.area.Right; col++ {
			rg, ok := r.region(col, row)
			if !ok {
				continue
			}

			name, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return err
			}

			value, err := r.f.GetCellValue(r.sheet, name)
			if err != nil {
				return err
			} else if value == "" {
				continue
			}

			style, err := r.style(col, row)
			if err != nil {
				return err
			}

			kind, err := r.f.GetCellType(r.sheet, name)
			if err != nil {
				return err
			}

			if err := r.draw(col, row, rg, value, kind, style); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *renderer) draw(col, row int, rg region, value string, kind excelize.CellType, style *excelize.Style) error {
	t := typeface{size: DefaultFontSize}
	ink := color.Color(black)
	underline := false

	if style != nil && style.Font != nil {
		t.bold = style.Font.Bold
		t.italic = style.Font.Italic
		underline = style.Font.Underline != "" && style.Font.Underline != "none"

		if style.Font.Size > 0 {
			t.size = style.Font.Size
		}

		if c, ok := parseColour(style.Font.Color); ok {
			ink = c
		}
	}

	face, err := r.faces.get(t)
	if err != nil {
		return err
	}

	horizontal := ""
	vertical := "bottom"
	wrap := false

	if style != nil && style.Alignment != nil {
		horizontal = style.Alignment.Horizontal
		wrap = style.Alignment.WrapText

		if style.Alignment.Vertical != "" {
			vertical = style.Alignment.Vertical
		}
	}

	if horizontal == "" || horizontal == "general" {
		switch kind {
		case excelize.CellTypeNumber, excelize.CellTypeDate, excelize.CellTypeUnset:
			horizontal = "right"
		case excelize.CellTypeBool, excelize.CellTypeError:
			horizontal = "center"
		default:
			horizontal = "left"
		}
	}

	if horizontal == "centerContinuous" || horizontal == "distributed" {
		horizontal = "center"
	}

	// ... left aligned text overflows into empty cells on the right
	clip := rg.Rectangle
	if horizontal == "left" && !wrap && rg.cols[0] == rg.cols[1] && rg.rows[0] == rg.rows[1] {
		clip = r.overflow(col, row, clip)
	}

	box := rg.Rectangle.Inset(padding)
	if box.Empty() {
		return nil
	}

	var lines []string
	if wrap {
		lines = wrapText(face, value, box.Dx())
	} else {
		lines = strings.Split(value, "\n")[:1]
	}

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()
	height := metrics.Height.Ceil()
	block := height*(len(lines)-1) + ascent + descent

	var baseline int
	switch vertical {
	case "top":
		baseline = box.Min.Y + ascent
	case "center", "justify", "distributed":
		baseline = box.Min.Y + (box.Dy()-block)/2 + ascent
	default:
		baseline = box.Max.Y - block + ascent
	}

	dst, ok := r.img.SubImage(clip.Intersect(r.content)).(*image.RGBA)
	if !ok || dst.Bounds().Empty() {
		return nil
	}

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(ink),
		Face: face,
	}

	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		y := baseline + i*height

		x := box.Min.X
		switch horizontal {
		case "right":
			x = box.Max.X - width
		case "center":
			x = box.Min.X + (box.Dx()-width)/2
		}

		d.Dot = fixed.P(x, y)
		d.DrawString(line)

		if underline {
			for dx := 0; dx < width; dx++ {
				if p := image.Pt(x+dx, y+1); p.In(dst.Bounds()) {
					dst.Set(p.X, p.Y, ink)
				}
			}
		}
	}

	return nil
}

// overflow extends the clip rectangle across the adjacent empty unmerged cells.
func (r *renderer) overflow(col, row int, clip image.Rectangle) image.Rectangle {
	for c := col + 1; c <= r.area.Right; c++ {
		if _, ok := r.covered[[2]int{c, row}]; ok {
			break
		}

		if _, ok := r.merged[[2]int{c, row}]; ok {
			break
		}

		name, err := excelize.CoordinatesToCellName(c, row)
		if err != nil {
			break
		}

		if v, err := r.f.GetCellValue(r.sheet, name); err != nil || v != "" {
			break
		}

		clip = clip.Union(r.cell(c, row))
	}

	return clip
}

// wrapText breaks the text into lines no wider than 'width' pixels, on explicit line
// breaks and between words. Words wider than a line are not split.
func wrapText(face font.Face, text string, width int) []string {
	lines := []string{}

	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := words[0]
		for _, word := range words[1:] {
			if next := line + " " + word; font.MeasureString(face, next).Ceil() <= width {
				line = next
			} else {
				lines = append(lines, line)
				line = word
			}
		}

		lines = append(lines, line)
	}

	return lines
}
