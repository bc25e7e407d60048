package bordercrop

import (
	"bytes"
	"image"
	"io/fs"
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/disintegration/imaging"
	"github.com/je4/bordercrop/pkg/border"
	"github.com/je4/utils/v2/pkg/zLogger"
)

var ErrEmptyCrop = errors.New("empty crop")

// Processor measures and crops single images
type Processor struct {
	opts        border.Options
	outputDir   string
	jpegQuality int
	dryRun      bool
	cache       *Cache
	logger      zLogger.ZLogger
}

// NewProcessor creates the output folder unless conf.DryRun is set. cache may be nil.
func NewProcessor(conf *CropConfig, cache *Cache, logger zLogger.ZLogger) (*Processor, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	if !conf.DryRun {
		if err := os.MkdirAll(conf.OutputDir, 0755); err != nil {
			return nil, errors.Wrapf(err, "cannot create output folder %s", conf.OutputDir)
		}
	}
	return &Processor{
		opts:        conf.Scan,
		outputDir:   conf.OutputDir,
		jpegQuality: conf.JPEGQuality,
		dryRun:      conf.DryRun,
		cache:       cache,
		logger:      logger,
	}, nil
}

func (p *Processor) Options() border.Options {
	return p.opts
}

// Process crops the image name of fsys into the output folder and returns
// the report row. An empty crop is not saved and gives ErrEmptyCrop.
func (p *Processor) Process(fsys fs.FS, name string) (*ReportRow, error) {
	p.logger.Info().Msgf("processing %s", name)
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", name)
	}
	img, result, err := p.measure(name, data)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if result.Empty() {
		return nil, errors.Wrapf(ErrEmptyCrop, "%s: %dx%d", name, result.CropWidth(), result.CropHeight())
	}
	if !p.dryRun {
		cropped := border.Crop(img, result)
		target, err := p.save(name, cropped)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		p.logger.Info().Msgf("saved cropped image to %s", target)
	}
	return &ReportRow{Filename: name, Extents: result.Extents}, nil
}

func (p *Processor) measure(name string, data []byte) (image.Image, border.Result, error) {
	if _, err := sniffImage(data); err != nil {
		return nil, border.Result{}, errors.Wrapf(err, "cannot use %s", name)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, border.Result{}, errors.Wrapf(err, "cannot decode %s", name)
	}
	if p.cache == nil {
		return img, border.Scan(img, p.opts), nil
	}

	sum, err := digest(data)
	if err != nil {
		return nil, border.Result{}, errors.Wrapf(err, "cannot create digest of %s", name)
	}
	cached, err := p.cache.Get(sum, p.opts)
	if err != nil {
		p.logger.Warn().Err(err).Msgf("cannot read cache for %s", name)
	}
	b := img.Bounds()
	if cached != nil && cached.Width == b.Dx() && cached.Height == b.Dy() {
		p.logger.Debug().Msgf("%s: cached result %+v", name, cached.Extents)
		return img, *cached, nil
	}
	result := border.Scan(img, p.opts)
	if err := p.cache.Put(sum, p.opts, result); err != nil {
		p.logger.Warn().Err(err).Msgf("cannot cache result of %s", name)
	}
	return img, result, nil
}

func (p *Processor) save(name string, img image.Image) (string, error) {
	target := filepath.Join(p.outputDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", errors.Wrapf(err, "cannot create folder for %s", target)
	}
	if err := imaging.Save(img, target, imaging.JPEGQuality(p.jpegQuality)); err != nil {
		return "", errors.Wrapf(err, "cannot save %s", target)
	}
	return target, nil
}
