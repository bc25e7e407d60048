package bordercrop

import (
	"image"
	"image/color"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/rs/zerolog"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

func testLogger() zLogger.ZLogger {
	l := zerolog.New(io.Discard)
	return &l
}

// topBorderPhoto is a 100x100 random image with a 5 pixel white top border
func topBorderPhoto() *image.NRGBA {
	img := imaging.New(100, 100, white)
	rnd := rand.New(rand.NewSource(1))
	for y := 5; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(rnd.Intn(256)), G: uint8(rnd.Intn(256)), B: uint8(rnd.Intn(256)), A: 255})
		}
	}
	return img
}

// framed has a frame of the given width around a black center
func framed(w, h, width int, frame color.NRGBA) *image.NRGBA {
	img := imaging.New(w, h, frame)
	for y := width; y < h-width; y++ {
		for x := width; x < w-width; x++ {
			img.SetNRGBA(x, y, black)
		}
	}
	return img
}

func saveImage(t *testing.T, dir, name string, img image.Image) {
	t.Helper()
	fp := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		t.Fatal(err)
	}
	if err := imaging.Save(img, fp, imaging.JPEGQuality(95)); err != nil {
		t.Fatalf("cannot save %s: %v", fp, err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func imageSize(t *testing.T, fp string) (int, int) {
	t.Helper()
	img, err := imaging.Open(fp)
	if err != nil {
		t.Fatalf("cannot open %s: %v", fp, err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func testConfig(input, output string) *CropConfig {
	conf := GetDefaultConfig()
	conf.InputDir = input
	conf.OutputDir = output
	conf.Report = filepath.Join(output, "border_report.csv")
	return conf
}
