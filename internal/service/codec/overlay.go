package codec

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"hazardcam/internal/model"
)

const boxThickness = 2

var (
	// DangerColor outlines dangerous detections.
	DangerColor = color.NRGBA{R: 255, G: 55, B: 0, A: 255}
	// BenignColor outlines everything else.
	BenignColor = color.NRGBA{R: 0, G: 255, B: 55, A: 255}
)

// ColorFor returns the overlay color for a detection.
func ColorFor(d model.Detection) color.NRGBA {
	if d.Dangerous {
		return DangerColor
	}
	return BenignColor
}

// annotate returns a copy of frame with a rectangle and label per detection.
func annotate(frame image.Image, detections []model.Detection) *image.NRGBA {
	dst := imaging.Clone(frame)
	bounds := dst.Bounds()

	for _, d := range detections {
		col := ColorFor(d)
		rect := image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2).Add(bounds.Min).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		drawOutline(dst, rect, col)
		drawLabel(dst, rect, fmt.Sprintf("%s %d%%", d.Label, int(d.Confidence*100)), col)
	}
	return dst
}

func drawOutline(dst *image.NRGBA, r image.Rectangle, col color.NRGBA) {
	src := image.NewUniform(col)
	t := boxThickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// drawLabel puts the label above the box, or just inside it when there is no room above.
func drawLabel(dst *image.NRGBA, box image.Rectangle, label string, col color.NRGBA) {
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()

	y := box.Min.Y - 4
	if y-ascent < dst.Bounds().Min.Y {
		y = box.Min.Y + boxThickness + ascent
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(box.Min.X, y),
	}
	d.DrawString(label)
}
