package bordercrop

import (
	"io/fs"
	"os"
	"path"
	"strings"

	"emperror.dev/errors"
	mime "github.com/gabriel-vasile/mimetype"
	"github.com/je4/filesystem/v3/pkg/zipasfolder"
	"github.com/je4/utils/v2/pkg/zLogger"
)

var ErrNotAnImage = errors.New("not a jpeg or png image")

// OpenInput returns the file system of the input folder. With zipAsFolder
// zip archives inside the folder can be walked like directories.
func OpenInput(folder string, zipAsFolder bool, logger zLogger.ZLogger) (fs.FS, error) {
	fi, err := os.Stat(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot stat input folder %s", folder)
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("%s is not a directory", folder)
	}
	dirFS := os.DirFS(folder)
	if !zipAsFolder {
		return dirFS, nil
	}
	zipFS, err := zipasfolder.NewFS(dirFS, 10, true, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create zip as folder FS for %s", folder)
	}
	return zipFS, nil
}

// Source lists the image candidates of an input file system
type Source struct {
	fsys       fs.FS
	recursive  bool
	extensions []string
}

func NewSource(fsys fs.FS, recursive bool, extensions []string) *Source {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return &Source{fsys: fsys, recursive: recursive, extensions: exts}
}

func (s *Source) FS() fs.FS {
	return s.fsys
}

// IsCandidate matches the file extension case insensitive
func (s *Source) IsCandidate(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range s.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// List returns the slash separated paths of all candidates in lexical order.
func (s *Source) List() ([]string, error) {
	var names = []string{}
	if !s.recursive {
		entries, err := fs.ReadDir(s.fsys, ".")
		if err != nil {
			return nil, errors.Wrap(err, "cannot read input folder")
		}
		for _, entry := range entries {
			if entry.IsDir() || !s.IsCandidate(entry.Name()) {
				continue
			}
			names = append(names, entry.Name())
		}
		return names, nil
	}
	if err := fs.WalkDir(s.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "cannot walk %s", name)
		}
		if d.IsDir() || !s.IsCandidate(name) {
			return nil
		}
		names = append(names, name)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "cannot walk input folder")
	}
	return names, nil
}

// sniffImage checks the content, the extension alone is not trusted
func sniffImage(data []byte) (*mime.MIME, error) {
	m := mime.Detect(data)
	if !m.Is("image/jpeg") && !m.Is("image/png") {
		return m, errors.Wrapf(ErrNotAnImage, "content is %s", m.String())
	}
	return m, nil
}
