// Package draw renders the labelled screenshot artifact: each extracted
// element's bounding box and tag label painted over the capture, colored by
// element category.
package draw

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/marqueewinq/shooter/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const boxThickness = 2

var (
	colorMagenta = color.RGBA{R: 255, A: 255, B: 255}
	colorRed     = color.RGBA{R: 255, A: 255}
	colorBlue    = color.RGBA{B: 255, A: 255}
	colorGreen   = color.RGBA{G: 200, A: 255}
	colorCyan    = color.RGBA{G: 200, B: 255, A: 255}
)

var textTags = map[string]bool{
	"p": true, "span": true, "a": true, "label": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// colorFor assigns the annotation color by element category: fixed-position
// elements stand out most, then text-like tags, images, containers, and
// everything else.
func colorFor(rec schemas.ElementRecord) color.RGBA {
	switch {
	case rec.Position == "fixed":
		return colorMagenta
	case textTags[rec.TagName]:
		return colorRed
	case rec.TagName == "img":
		return colorBlue
	case rec.TagName == "div":
		return colorGreen
	default:
		return colorCyan
	}
}

// Annotate paints every record's bounding box and label onto a copy of the
// screenshot and returns it.
func Annotate(img image.Image, records []schemas.ElementRecord) *image.RGBA {
	rgba := toRGBA(img)
	for _, rec := range records {
		c := colorFor(rec)
		drawBox(rgba, rec.BBox, c)
		drawLabel(rgba, rec.Label, rec.BBox[0], rec.BBox[1]-10, c)
	}
	return rgba
}

// AnnotateFile reads a PNG screenshot, paints the records onto it, and
// writes the result to outPath.
func AnnotateFile(screenshotPath, outPath string, records []schemas.ElementRecord) error {
	f, err := os.Open(screenshotPath)
	if err != nil {
		return fmt.Errorf("opening screenshot: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding screenshot: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating labelled screenshot: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, Annotate(img, records)); err != nil {
		return fmt.Errorf("encoding labelled screenshot: %w", err)
	}
	return nil
}

// FromFiles annotates a screenshot using an elements.json produced by a
// previous capture, for re-rendering artifacts offline.
func FromFiles(screenshotPath, elementsPath, outPath string) error {
	raw, err := os.ReadFile(elementsPath)
	if err != nil {
		return fmt.Errorf("reading elements file: %w", err)
	}
	var records []schemas.ElementRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("decoding elements file: %w", err)
	}
	return AnnotateFile(screenshotPath, outPath, records)
}

func toRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// drawBox paints a rectangle outline clamped to the image bounds.
func drawBox(img *image.RGBA, bbox [4]int, c color.Color) {
	x1, y1, x2, y2 := bbox[0], bbox[1], bbox[2], bbox[3]
	bounds := img.Bounds()
	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2 <= x1 || y2 <= y1 {
		return
	}

	for t := 0; t < boxThickness; t++ {
		for x := x1; x < x2; x++ {
			set(img, x, y1+t, c)
			set(img, x, y2-1-t, c)
		}
		for y := y1; y < y2; y++ {
			set(img, x1+t, y, c)
			set(img, x2-1-t, y, c)
		}
	}
}

func drawLabel(img *image.RGBA, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(y * 64),
		},
	}
	d.DrawString(text)
}

func set(img *image.RGBA, x, y int, c color.Color) {
	b := img.Bounds()
	if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
		img.Set(x, y, c)
	}
}
