package render

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const DefaultFontSize = 11.0

type typeface struct {
	bold   bool
	italic bool
	size   float64
}

var fonts = struct {
	sync.Once
	regular    *opentype.Font
	bold       *opentype.Font
	italic     *opentype.Font
	bolditalic *opentype.Font
	err        error
}{}

func load() error {
	fonts.Do(func() {
		parse := func(ttf []byte) *opentype.Font {
			f, err := opentype.Parse(ttf)
			if err != nil && fonts.err == nil {
				fonts.err = err
			}

			return f
		}

		fonts.regular = parse(goregular.TTF)
		fonts.bold = parse(gobold.TTF)
		fonts.italic = parse(goitalic.TTF)
		fonts.bolditalic = parse(gobolditalic.TTF)
	})

	return fonts.err
}

// faces caches the font faces used for a single render.
type faces struct {
	dpi   float64
	cache map[typeface]font.Face
}

func newFaces(dpi float64) *faces {
	return &faces{
		dpi:   dpi,
		cache: map[typeface]font.Face{},
	}
}

func (f *faces) get(t typeface) (font.Face, error) {
	if t.size <= 0 {
		t.size = DefaultFontSize
	}

	if face, ok := f.cache[t]; ok {
		return face, nil
	}

	if err := load(); err != nil {
		return nil, err
	}

	ttf := fonts.regular
	switch {
	case t.bold && t.italic:
		ttf = fonts.bolditalic
	case t.bold:
		ttf = fonts.bold
	case t.italic:
		ttf = fonts.italic
	}

	face, err := opentype.NewFace(ttf, &opentype.FaceOptions{
		Size:    t.size,
		DPI:     f.dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}

	f.cache[t] = face

	return face, nil
}

func (f *faces) Close() {
	for _, face := range f.cache {
		face.Close()
	}
}
