package draw_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueewinq/shooter/api/schemas"
	"github.com/marqueewinq/shooter/internal/draw"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func blankImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func record(tag string, bbox [4]int) schemas.ElementRecord {
	return schemas.ElementRecord{
		ID:        tag + "-id",
		BBox:      bbox,
		TagName:   tag,
		Label:     tag,
		Position:  "static",
		IsVisible: true,
	}
}

func TestAnnotate_DrawsBoxes(t *testing.T) {
	img := blankImage(200, 200)
	out := draw.Annotate(img, []schemas.ElementRecord{record("div", [4]int{20, 40, 120, 140})})

	// Box edge pixels change, pixels well inside the box do not.
	assert.NotEqual(t, color.RGBAModel.Convert(color.White), out.At(20, 40))
	assert.NotEqual(t, color.RGBAModel.Convert(color.White), out.At(119, 139))
	assert.Equal(t, color.RGBAModel.Convert(color.White), out.At(70, 90))
}

func TestAnnotate_ColorByCategory(t *testing.T) {
	img := blankImage(400, 400)

	fixedRec := record("footer", [4]int{10, 10, 50, 50})
	fixedRec.Position = "fixed"

	out := draw.Annotate(img, []schemas.ElementRecord{
		fixedRec,
		record("p", [4]int{60, 60, 100, 100}),
		record("img", [4]int{110, 110, 150, 150}),
		record("div", [4]int{160, 160, 200, 200}),
		record("table", [4]int{210, 210, 250, 250}),
	})

	// Each category's box edge carries a distinct color.
	edges := []color.Color{
		out.At(10, 10), out.At(60, 60), out.At(110, 110), out.At(160, 160), out.At(210, 210),
	}
	seen := map[color.Color]bool{}
	for _, c := range edges {
		seen[c] = true
	}
	assert.Len(t, seen, 5)
}

func TestAnnotate_OutOfBoundsBoxIsClamped(t *testing.T) {
	img := blankImage(50, 50)

	assert.NotPanics(t, func() {
		draw.Annotate(img, []schemas.ElementRecord{
			record("div", [4]int{-20, -20, 100, 100}),
			record("p", [4]int{200, 200, 300, 300}),
		})
	})
}

func TestAnnotateFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	shotPath := filepath.Join(dir, "screenshot.png")

	f, err := os.Create(shotPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, blankImage(100, 100)))
	require.NoError(t, f.Close())

	outPath := filepath.Join(dir, "screenshot.labelled.png")
	err = draw.AnnotateFile(shotPath, outPath, []schemas.ElementRecord{record("div", [4]int{10, 30, 60, 80})})
	require.NoError(t, err)

	out, err := os.Open(outPath)
	require.NoError(t, err)
	defer out.Close()
	img, err := png.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestFromFiles(t *testing.T) {
	dir := t.TempDir()
	shotPath := filepath.Join(dir, "screenshot.png")
	elementsPath := filepath.Join(dir, "elements.json")
	outPath := filepath.Join(dir, "out.png")

	f, err := os.Create(shotPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, blankImage(80, 80)))
	require.NoError(t, f.Close())

	records := []schemas.ElementRecord{record("span", [4]int{5, 15, 40, 40})}
	raw, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(elementsPath, raw, 0o644))

	require.NoError(t, draw.FromFiles(shotPath, elementsPath, outPath))
	_, err = os.Stat(outPath)
	assert.NoError(t, err)
}

func TestFromFiles_MissingInputs(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, draw.FromFiles(filepath.Join(dir, "nope.png"), filepath.Join(dir, "nope.json"), filepath.Join(dir, "out.png")))
}
