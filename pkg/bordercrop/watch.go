package bordercrop

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/je4/utils/v2/pkg/zLogger"
	"golang.org/x/exp/slices"
)

// Watcher keeps processing images which appear in the input folder and
// rewrites the report after every image.
type Watcher struct {
	proc     *Processor
	src      *Source
	folder   string
	report   string
	debounce time.Duration
	rows     map[string]ReportRow
	written  bool
	logger   zLogger.ZLogger
}

// NewWatcher watches folder, the root of src. initial rows are kept in the report.
func NewWatcher(proc *Processor, src *Source, folder, report string, debounce time.Duration, initial []ReportRow, logger zLogger.ZLogger) *Watcher {
	w := &Watcher{
		proc:     proc,
		src:      src,
		folder:   folder,
		report:   report,
		debounce: debounce,
		rows:     map[string]ReportRow{},
		logger:   logger,
	}
	for _, row := range initial {
		w.rows[row.Filename] = row
	}
	w.written = len(w.rows) > 0
	return w
}

func (w *Watcher) Rows() []ReportRow {
	var rows = make([]ReportRow, 0, len(w.rows))
	for _, row := range w.rows {
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b ReportRow) int {
		return strings.Compare(a.Filename, b.Filename)
	})
	return rows
}

// handle processes one image given relative to the watched folder
func (w *Watcher) handle(name string) error {
	row, err := w.proc.Process(w.src.FS(), name)
	if err != nil {
		// drop the row of a file which failed after an update
		delete(w.rows, name)
		if errors.Is(err, ErrEmptyCrop) {
			w.logger.Info().Msgf("skipped saving empty crop for %s", name)
		} else {
			w.logger.Error().Err(err).Msgf("error processing %s", name)
		}
	} else {
		w.rows[name] = *row
	}
	if w.report == "" {
		return nil
	}
	rows := w.Rows()
	// an existing report is rewritten even without rows
	if len(rows) == 0 && !w.written {
		return nil
	}
	if err := WriteReportFile(w.report, rows); err != nil {
		w.logger.Error().Err(err).Msgf("error writing report %s", w.report)
		return errors.WithStack(err)
	}
	w.written = true
	return nil
}

func (w *Watcher) relName(eventName string) (string, bool) {
	rel, err := filepath.Rel(w.folder, eventName)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.Contains(rel, "/") || !w.src.IsCandidate(rel) {
		return "", false
	}
	return rel, true
}

// Run blocks until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot create file watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(w.folder); err != nil {
		return errors.Wrapf(err, "cannot watch %s", w.folder)
	}
	w.logger.Info().Msgf("watching %s", w.folder)

	ready := make(chan string)
	timers := map[string]*time.Timer{}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("watcher stopped")
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("watcher error")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name, ok := w.relName(event.Name)
			if !ok {
				continue
			}
			// writers produce several events, wait until the file is quiet
			if t, found := timers[name]; found {
				t.Reset(w.debounce)
				continue
			}
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})
		case name := <-ready:
			delete(timers, name)
			_ = w.handle(name)
		}
	}
}
