package bordercrop

import (
	"context"
	"encoding/csv"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/je4/bordercrop/pkg/border"
)

func prepareInput(t *testing.T) string {
	t.Helper()
	input := t.TempDir()
	saveImage(t, input, "a.png", topBorderPhoto())
	saveImage(t, input, "b.jpg", framed(64, 48, 16, white))
	saveImage(t, input, "uniform.PNG", imaging.New(20, 10, color.NRGBA{R: 10, G: 200, B: 10, A: 255}))
	writeFile(t, input, "c.png", "this is not an image")
	writeFile(t, input, "notes.txt", "ignore me")
	return input
}

func runBatch(t *testing.T, conf *CropConfig) *Outcome {
	t.Helper()
	proc, err := NewProcessor(conf, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	fsys, err := OpenInput(conf.InputDir, false, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	src := NewSource(fsys, conf.Recursive, conf.Extensions)
	outcome, err := NewBatch(proc, conf.Workers, conf.Report, testLogger()).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	return outcome
}

func TestBatchRun(t *testing.T) {
	input := prepareInput(t)
	output := filepath.Join(t.TempDir(), "out")
	conf := testConfig(input, output)
	conf.Workers = 3

	outcome := runBatch(t, conf)

	var names []string
	for _, res := range outcome.Results {
		names = append(names, res.Filename)
	}
	if !reflect.DeepEqual(names, []string{"a.png", "b.jpg", "c.png", "uniform.PNG"}) {
		t.Fatalf("results %v", names)
	}
	failed := outcome.Failed()
	if len(failed) != 1 || failed[0].Filename != "c.png" || !errors.Is(failed[0].Err, ErrNotAnImage) {
		t.Errorf("failed %+v", failed)
	}

	rows := outcome.Rows()
	want := []ReportRow{
		{Filename: "a.png", Extents: border.Extents{Top: 5}},
		{Filename: "b.jpg", Extents: border.Extents{Top: 16, Bottom: 16, Left: 16, Right: 16}},
		{Filename: "uniform.PNG"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows %+v, want %+v", rows, want)
	}

	if w, h := imageSize(t, filepath.Join(output, "a.png")); w != 100 || h != 95 {
		t.Errorf("a.png cropped to %dx%d", w, h)
	}
	if w, h := imageSize(t, filepath.Join(output, "b.jpg")); w != 32 || h != 16 {
		t.Errorf("b.jpg cropped to %dx%d", w, h)
	}
	if w, h := imageSize(t, filepath.Join(output, "uniform.PNG")); w != 20 || h != 10 {
		t.Errorf("uniform.PNG cropped to %dx%d", w, h)
	}
	if _, err := os.Stat(filepath.Join(output, "c.png")); !os.IsNotExist(err) {
		t.Errorf("failed image written to output")
	}

	f, err := os.Open(conf.Report)
	if err != nil {
		t.Fatalf("no report: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("%d report records, want 4", len(records))
	}
	if !reflect.DeepEqual(records[0], ReportHeader) {
		t.Errorf("header %v", records[0])
	}
	if !reflect.DeepEqual(records[1], []string{"a.png", "5", "0", "0", "0", "top"}) {
		t.Errorf("first row %v", records[1])
	}
	if records[2][5] != "top,bottom,left,right" {
		t.Errorf("sides of b.jpg %q", records[2][5])
	}
}

func TestBatchCropRescan(t *testing.T) {
	input := prepareInput(t)
	output := filepath.Join(t.TempDir(), "out")
	runBatch(t, testConfig(input, output))

	conf := testConfig(output, filepath.Join(t.TempDir(), "again"))
	conf.Extensions = []string{".png"}
	outcome := runBatch(t, conf)
	for _, row := range outcome.Rows() {
		if !row.IsZero() {
			t.Errorf("%s: border left after crop: %+v", row.Filename, row.Extents)
		}
	}
}

func TestBatchDryRun(t *testing.T) {
	input := prepareInput(t)
	output := filepath.Join(t.TempDir(), "out")
	conf := testConfig(input, output)
	conf.DryRun = true
	conf.Report = filepath.Join(t.TempDir(), "report.csv")

	outcome := runBatch(t, conf)
	if len(outcome.Rows()) != 3 {
		t.Errorf("%d rows, want 3", len(outcome.Rows()))
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("dry run created output folder")
	}
	if _, err := os.Stat(conf.Report); err != nil {
		t.Errorf("dry run must still write the report: %v", err)
	}
}

func TestBatchWithoutImages(t *testing.T) {
	input := t.TempDir()
	writeFile(t, input, "readme.txt", "nothing to see")
	conf := testConfig(input, filepath.Join(t.TempDir(), "out"))

	outcome := runBatch(t, conf)
	if len(outcome.Results) != 0 {
		t.Errorf("unexpected results %+v", outcome.Results)
	}
	if _, err := os.Stat(conf.Report); !os.IsNotExist(err) {
		t.Errorf("report written without images")
	}
}

func TestBatchRecursive(t *testing.T) {
	input := t.TempDir()
	saveImage(t, input, "top.png", topBorderPhoto())
	saveImage(t, input, "sub/inner.png", framed(40, 40, 4, white))
	output := filepath.Join(t.TempDir(), "out")
	conf := testConfig(input, output)
	conf.Recursive = true

	outcome := runBatch(t, conf)
	if len(outcome.Rows()) != 2 {
		t.Fatalf("rows %+v", outcome.Rows())
	}
	if outcome.Rows()[0].Filename != "sub/inner.png" {
		t.Errorf("first row %s", outcome.Rows()[0].Filename)
	}
	if w, h := imageSize(t, filepath.Join(output, "sub", "inner.png")); w != 32 || h != 32 {
		t.Errorf("sub/inner.png cropped to %dx%d", w, h)
	}
}

func TestOpenInputNotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.png", "x")
	if _, err := OpenInput(filepath.Join(dir, "file.png"), false, testLogger()); err == nil {
		t.Error("file accepted as input folder")
	}
	if _, err := OpenInput(filepath.Join(dir, "missing"), false, testLogger()); err == nil {
		t.Error("missing folder accepted")
	}
}

func TestProcessorRejectsInvalidConfig(t *testing.T) {
	conf := testConfig(t.TempDir(), t.TempDir())
	conf.Scan.LineConsistency = 2
	if _, err := NewProcessor(conf, nil, testLogger()); err == nil {
		t.Error("invalid scan options accepted")
	}
}

func TestBatchReportWriteFails(t *testing.T) {
	input := t.TempDir()
	saveImage(t, input, "a.png", topBorderPhoto())
	output := filepath.Join(t.TempDir(), "out")
	conf := testConfig(input, output)
	// a directory cannot be created as report file
	conf.Report = t.TempDir()

	proc, err := NewProcessor(conf, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	fsys, err := OpenInput(input, false, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	outcome, err := NewBatch(proc, 1, conf.Report, testLogger()).Run(context.Background(), NewSource(fsys, false, conf.Extensions))
	if err == nil {
		t.Fatal("report error not returned")
	}
	if outcome == nil {
		t.Fatal("no outcome after report error")
	}
	rows := outcome.Rows()
	if len(rows) != 1 || rows[0].Filename != "a.png" || rows[0].Top != 5 {
		t.Errorf("rows %+v", rows)
	}
	if w, h := imageSize(t, filepath.Join(output, "a.png")); w != 100 || h != 95 {
		t.Errorf("a.png cropped to %dx%d", w, h)
	}
}
