// Package render draws network graphs as SVG or PNG diagrams.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/hailam/chessnet/internal/graph"
)

var regularFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// newFace returns a face of the Go regular font. Faces are not safe for
// concurrent use, so every image gets its own.
func newFace(size float64) (font.Face, error) {
	f, err := regularFont()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// PNG rasterizes the diagram of g and writes it to w.
func PNG(w io.Writer, g *graph.Graph) error {
	img, err := Image(g)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// Image rasterizes the diagram of g.
func Image(g *graph.Graph) (*image.RGBA, error) {
	l := newLayout(g)
	width, height := int(math.Ceil(l.width)), int(math.Ceil(l.height))

	// shapes go through the SVG rasterizer, labels through the font drawer
	icon, err := oksvg.ReadIconStream(bytes.NewReader(l.svg(false)))
	if err != nil {
		return nil, fmt.Errorf("render: parse diagram: %w", err)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(width, height, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(width, height, scanner)
	icon.Draw(raster, 1.0)

	nameFace, err := newFace(12)
	if err != nil {
		return nil, fmt.Errorf("render: font: %w", err)
	}
	defer nameFace.Close()
	detailFace, err := newFace(10)
	if err != nil {
		return nil, fmt.Errorf("render: font: %w", err)
	}
	defer detailFace.Close()

	limit := fixed.I(int(boxWidth) - 12)
	for _, bx := range l.boxes {
		d := font.Drawer{Dst: rgba, Src: image.Black, Face: nameFace}
		d.Dot = fixed.P(int(bx.x)+6, int(bx.y)+16)
		d.DrawString(fit(&d, bx.node.Name, limit))

		d.Face = detailFace
		d.Dot = fixed.P(int(bx.x)+6, int(bx.y)+32)
		d.DrawString(fit(&d, bx.detail, limit))
	}
	return rgba, nil
}

// fit shortens s with an ellipsis until it is at most limit wide.
func fit(d *font.Drawer, s string, limit fixed.Int26_6) string {
	if d.MeasureString(s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 {
		r = r[:len(r)-1]
		if t := string(r) + "…"; d.MeasureString(t) <= limit {
			return t
		}
	}
	return ""
}
