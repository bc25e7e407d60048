package bordercrop

import (
	"context"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/je4/utils/v2/pkg/zLogger"
	"golang.org/x/exp/slices"
)

// Result is the outcome of one image. Exactly one of Row and Err is set.
type Result struct {
	Filename string
	Row      *ReportRow
	Err      error
}

type Outcome struct {
	Results []Result
}

func (o *Outcome) Rows() []ReportRow {
	var rows = []ReportRow{}
	for _, r := range o.Results {
		if r.Row != nil {
			rows = append(rows, *r.Row)
		}
	}
	return rows
}

func (o *Outcome) Failed() []Result {
	var failed = []Result{}
	for _, r := range o.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Batch runs a Processor over all candidates of a Source
type Batch struct {
	proc    *Processor
	workers uint
	report  string
	logger  zLogger.ZLogger
}

// NewBatch uses at least one worker. An empty report path disables the report.
func NewBatch(proc *Processor, workers uint, report string, logger zLogger.ZLogger) *Batch {
	if workers == 0 {
		workers = 1
	}
	return &Batch{proc: proc, workers: workers, report: report, logger: logger}
}

func (b *Batch) process(src *Source, name string) (res Result) {
	res.Filename = name
	defer func() {
		if r := recover(); r != nil {
			res.Row = nil
			res.Err = errors.Errorf("panic while processing %s: %v", name, r)
		}
	}()
	res.Row, res.Err = b.proc.Process(src.FS(), name)
	return
}

func (b *Batch) worker(id uint, src *Source, jobs <-chan string, results chan<- Result, waiter *sync.WaitGroup) {
	defer waiter.Done()
	for name := range jobs {
		b.logger.Debug().Msgf("worker %d processing %s", id, name)
		res := b.process(src, name)
		switch {
		case res.Err == nil:
		case errors.Is(res.Err, ErrEmptyCrop):
			b.logger.Info().Msgf("skipped saving empty crop for %s", name)
		default:
			b.logger.Error().Err(res.Err).Msgf("error processing %s", name)
		}
		results <- res
	}
}

// Run processes every candidate of src. Failing images end up in the outcome
// and never stop the batch. Cancelling ctx stops the dispatch of further images.
// The returned error is set if the input cannot be listed or the report cannot
// be written; the outcome is valid in the latter case.
func (b *Batch) Run(ctx context.Context, src *Source) (*Outcome, error) {
	names, err := src.List()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	b.logger.Info().Msgf("found %d images: %s", len(names), strings.Join(names, ", "))

	jobs := make(chan string)
	results := make(chan Result, len(names))
	var waiter sync.WaitGroup
	for w := uint(1); w <= b.workers; w++ {
		waiter.Add(1)
		go b.worker(w, src, jobs, results, &waiter)
	}

dispatch:
	for _, name := range names {
		select {
		case <-ctx.Done():
			b.logger.Warn().Err(ctx.Err()).Msg("batch cancelled")
			break dispatch
		case jobs <- name:
		}
	}
	close(jobs)
	waiter.Wait()
	close(results)

	outcome := &Outcome{Results: make([]Result, 0, len(names))}
	for res := range results {
		outcome.Results = append(outcome.Results, res)
	}
	slices.SortFunc(outcome.Results, func(a, b Result) int {
		return strings.Compare(a.Filename, b.Filename)
	})

	if b.report == "" {
		return outcome, nil
	}
	rows := outcome.Rows()
	if len(rows) == 0 {
		b.logger.Info().Msg("no images processed, report not generated")
		return outcome, nil
	}
	if err := WriteReportFile(b.report, rows); err != nil {
		b.logger.Error().Err(err).Msgf("error writing report %s", b.report)
		return outcome, errors.WithStack(err)
	}
	b.logger.Info().Msgf("report %s generated", b.report)
	return outcome, nil
}
