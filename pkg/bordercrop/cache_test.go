package bordercrop

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/je4/bordercrop/pkg/border"
)

func memCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewCache(ConfigCache{Enabled: true, InMemory: true}, testLogger())
	if err != nil {
		t.Fatalf("cannot open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCacheRoundTrip(t *testing.T) {
	cache := memCache(t)
	opts := border.DefaultOptions()
	result := border.Result{Extents: border.Extents{Top: 3, Right: 7}, Width: 100, Height: 80}

	got, err := cache.Get("abc", opts)
	if err != nil || got != nil {
		t.Fatalf("empty cache returned %v, %v", got, err)
	}
	if err := cache.Put("abc", opts, result); err != nil {
		t.Fatal(err)
	}
	got, err = cache.Get("abc", opts)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != result {
		t.Errorf("cached %+v, want %+v", got, result)
	}

	// other options are another measurement
	got, err = cache.Get("abc", border.Options{ColorThreshold: 10, LineConsistency: 0.9})
	if err != nil || got != nil {
		t.Errorf("result reused for other options: %v, %v", got, err)
	}
}

func TestDigest(t *testing.T) {
	a, err := digest([]byte("image data"))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := digest([]byte("image data"))
	c, _ := digest([]byte("other data"))
	if a != b || a == c {
		t.Errorf("digest not content based: %s %s %s", a, b, c)
	}
	if len(a) != 128 {
		t.Errorf("sha512 hex digest has %d chars", len(a))
	}
}

func TestProcessorUsesCache(t *testing.T) {
	input := t.TempDir()
	saveImage(t, input, "a.png", topBorderPhoto())
	conf := testConfig(input, filepath.Join(t.TempDir(), "out"))
	cache := memCache(t)

	proc, err := NewProcessor(conf, cache, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	fsys, err := OpenInput(input, false, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	data, err := fs.ReadFile(fsys, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	sum, err := digest(data)
	if err != nil {
		t.Fatal(err)
	}

	// a fresh scan stores its result
	first, err := proc.Process(fsys, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if first.Extents != (border.Extents{Top: 5}) {
		t.Fatalf("scanned %+v", first.Extents)
	}
	cached, err := cache.Get(sum, conf.Scan)
	if err != nil || cached == nil {
		t.Fatalf("nothing cached: %v", err)
	}
	if cached.Top != 5 || cached.Width != 100 || cached.Height != 100 {
		t.Errorf("cached %+v", cached)
	}

	// a stored result is used instead of scanning
	planted := border.Result{Extents: border.Extents{Top: 7, Left: 3}, Width: 100, Height: 100}
	if err := cache.Put(sum, conf.Scan, planted); err != nil {
		t.Fatal(err)
	}
	second, err := proc.Process(fsys, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if second.Extents != planted.Extents {
		t.Errorf("extents %+v, want cached %+v", second.Extents, planted.Extents)
	}
	if w, h := imageSize(t, filepath.Join(conf.OutputDir, "a.png")); w != 97 || h != 93 {
		t.Errorf("a.png cropped to %dx%d with cached extents", w, h)
	}

	// a stored result of another size is ignored
	if err := cache.Put(sum, conf.Scan, border.Result{Extents: border.Extents{Top: 1}, Width: 50, Height: 50}); err != nil {
		t.Fatal(err)
	}
	third, err := proc.Process(fsys, "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if third.Extents != (border.Extents{Top: 5}) {
		t.Errorf("extents %+v from cache entry of other size", third.Extents)
	}
}
