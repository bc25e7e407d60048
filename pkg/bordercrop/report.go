package bordercrop

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/je4/bordercrop/pkg/border"
)

var ReportHeader = []string{
	"filename",
	"border_top",
	"border_bottom",
	"border_left",
	"border_right",
	"sides_with_border",
}

// ReportRow is the measurement of one successfully processed image
type ReportRow struct {
	Filename string
	border.Extents
}

func (r ReportRow) Record() []string {
	return []string{
		r.Filename,
		strconv.Itoa(r.Top),
		strconv.Itoa(r.Bottom),
		strconv.Itoa(r.Left),
		strconv.Itoa(r.Right),
		strings.Join(r.Sides(), ","),
	}
}

func WriteReport(w io.Writer, rows []ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeader); err != nil {
		return errors.Wrap(err, "cannot write report header")
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return errors.Wrapf(err, "cannot write report row for %s", row.Filename)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "cannot flush report")
}

// WriteReportFile replaces the report file at fp
func WriteReportFile(fp string, rows []ReportRow) error {
	if dir := filepath.Dir(fp); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "cannot create report folder %s", dir)
		}
	}
	f, err := os.Create(fp)
	if err != nil {
		return errors.Wrapf(err, "cannot create report %s", fp)
	}
	if err := WriteReport(f, rows); err != nil {
		f.Close()
		return errors.WithStack(err)
	}
	return errors.Wrapf(f.Close(), "cannot close report %s", fp)
}
