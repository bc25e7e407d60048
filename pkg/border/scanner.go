package border

import (
	"image"

	"emperror.dev/errors"
	"github.com/disintegration/imaging"
)

const (
	DefaultColorThreshold  = 25.0
	DefaultLineConsistency = 0.9
)

// Options controls the border scan
type Options struct {
	// ColorThreshold is the exclusive euclidean RGB distance below which a pixel
	// counts as having the corner color
	ColorThreshold float64 `toml:"colorthresh" json:"colorthresh"`
	// LineConsistency is the minimal fraction of matching pixels for a row or
	// column to count as border
	LineConsistency float64 `toml:"consistency" json:"consistency"`
}

func DefaultOptions() Options {
	return Options{
		ColorThreshold:  DefaultColorThreshold,
		LineConsistency: DefaultLineConsistency,
	}
}

func (o Options) Validate() error {
	if !(o.ColorThreshold > 0) {
		return errors.Errorf("color threshold must be positive: %v", o.ColorThreshold)
	}
	if !(o.LineConsistency > 0 && o.LineConsistency <= 1) {
		return errors.Errorf("line consistency must be in (0,1]: %v", o.LineConsistency)
	}
	return nil
}

// Extents holds the border width per side in pixels
type Extents struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Sides returns the names of all sides with a border in the order top, bottom, left, right.
func (e Extents) Sides() []string {
	var sides = []string{}
	if e.Top > 0 {
		sides = append(sides, "top")
	}
	if e.Bottom > 0 {
		sides = append(sides, "bottom")
	}
	if e.Left > 0 {
		sides = append(sides, "left")
	}
	if e.Right > 0 {
		sides = append(sides, "right")
	}
	return sides
}

func (e Extents) IsZero() bool {
	return e == Extents{}
}

// Result of a border scan. Width and Height are the dimensions of the scanned image.
type Result struct {
	Extents
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is the retained region relative to the image origin
func (r Result) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Width-r.Right, r.Height-r.Bottom)
}

func (r Result) CropWidth() int {
	return r.Width - r.Left - r.Right
}

func (r Result) CropHeight() int {
	return r.Height - r.Top - r.Bottom
}

// Empty reports a crop without any pixels. It must not be saved.
func (r Result) Empty() bool {
	return r.CropWidth() <= 0 || r.CropHeight() <= 0
}

// grid gives fast RGB access to a zero based NRGBA copy of an image
type grid struct {
	img  *image.NRGBA
	w, h int
}

func newGrid(img image.Image) *grid {
	n, ok := img.(*image.NRGBA)
	if !ok || n.Rect.Min != (image.Point{}) {
		n = imaging.Clone(img)
	}
	return &grid{img: n, w: n.Rect.Dx(), h: n.Rect.Dy()}
}

func (g *grid) at(x, y int) RGB {
	i := g.img.PixOffset(x, y)
	p := g.img.Pix[i : i+3 : i+3]
	return RGB{p[0], p[1], p[2]}
}

type scan struct {
	opts Options
}

// sweep counts consecutive border lines starting at line 0.
// pixel(line, k) addresses the k-th pixel of a line.
func (s scan) sweep(lines, length int, ref RGB, pixel func(line, k int) RGB) int {
	var count int
	for line := 0; line < lines; line++ {
		var matches int
		for k := 0; k < length; k++ {
			if Similar(pixel(line, k), ref, s.opts.ColorThreshold) {
				matches++
			}
		}
		if float64(matches)/float64(length) < s.opts.LineConsistency {
			break
		}
		count++
	}
	return count
}

// Scan measures the uniform border on every side of img.
//
// Top and left are compared against the top left pixel, bottom against the
// bottom left pixel and right against the top right pixel. The bottom right
// pixel is never sampled. Each side stops at its first line that is not
// consistent enough, the scan may run up to the opposite edge. If the borders
// of one axis cover the whole image, both are reset to zero.
func Scan(img image.Image, opts Options) Result {
	g := newGrid(img)
	w, h := g.w, g.h
	result := Result{Width: w, Height: h}
	if w == 0 || h == 0 {
		return result
	}

	topLeft := g.at(0, 0)
	topRight := g.at(w-1, 0)
	bottomLeft := g.at(0, h-1)

	s := scan{opts: opts}
	result.Top = s.sweep(h, w, topLeft, func(line, k int) RGB { return g.at(k, line) })
	result.Bottom = s.sweep(h, w, bottomLeft, func(line, k int) RGB { return g.at(k, h-1-line) })
	result.Left = s.sweep(w, h, topLeft, func(line, k int) RGB { return g.at(line, k) })
	result.Right = s.sweep(w, h, topRight, func(line, k int) RGB { return g.at(w-1-line, k) })

	if result.Top+result.Bottom >= h {
		result.Top, result.Bottom = 0, 0
	}
	if result.Left+result.Right >= w {
		result.Left, result.Right = 0, 0
	}
	return result
}

// Crop cuts the retained region of r out of img.
func Crop(img image.Image, r Result) *image.NRGBA {
	return imaging.Crop(img, r.Rect().Add(img.Bounds().Min))
}

// Remove scans img and returns the measurement together with the cropped image.
// The cropped image is nil if the crop would be empty.
func Remove(img image.Image, opts Options) (Result, *image.NRGBA) {
	result := Scan(img, opts)
	if result.Empty() {
		return result, nil
	}
	return result, Crop(img, result)
}
