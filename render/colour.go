package render

import (
	"image/color"
	"strconv"
	"strings"
)

// parseColour parses an RGB or ARGB hex colour, with or without a leading '#'. Theme
// and indexed colours are not resolved.
func parseColour(s string) (color.Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")

	switch len(s) {
	case 6:
	case 8:
		s = s[2:]
	default:
		return nil, false
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, false
	}

	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, true
}
