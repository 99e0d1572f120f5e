// Package download hands converted outputs to the user, either one file at a
// time or bundled into a zip archive.
package download

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/aliskhannn/image-converter/internal/model"
)

var (
	ErrNotCompleted     = errors.New("file is not converted yet")
	ErrNoCompletedFiles = errors.New("no completed files to download")
)

// File is a single downloadable output.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// One returns the output of a completed record.
func One(rec model.Record) (File, error) {
	if rec.Status != model.StatusCompleted || rec.Blob == nil {
		return File{}, ErrNotCompleted
	}

	return File{
		Name:     rec.OutputFileName,
		MIMEType: rec.Blob.MIMEType,
		Data:     rec.Blob.Data,
	}, nil
}

// Completed filters records down to completed ones, keeping their order.
func Completed(records []model.Record) []model.Record {
	var out []model.Record
	for _, rec := range records {
		if rec.Status == model.StatusCompleted && rec.Blob != nil {
			out = append(out, rec)
		}
	}
	return out
}

// All writes every completed record into a zip archive on w and returns the
// number of entries written. Records sharing an output file name collapse
// into one entry holding the last record's bytes. When nothing is completed
// it fails with ErrNoCompletedFiles before writing anything.
func All(w io.Writer, records []model.Record) (int, error) {
	completed := Completed(records)
	if len(completed) == 0 {
		return 0, ErrNoCompletedFiles
	}

	// last write wins, first position kept
	var order []string
	latest := make(map[string]model.Record, len(completed))
	for _, rec := range completed {
		if _, seen := latest[rec.OutputFileName]; !seen {
			order = append(order, rec.OutputFileName)
		}
		latest[rec.OutputFileName] = rec
	}

	zw := zip.NewWriter(w)
	for _, name := range order {
		rec := latest[name]

		hdr := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: rec.UpdatedAt,
		}
		if rec.OutputFormat.IsLossy() {
			hdr.Method = zip.Store // already compressed
		}

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return 0, fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := fw.Write(rec.Blob.Data); err != nil {
			return 0, fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close zip: %w", err)
	}

	return len(order), nil
}

// ArchiveName returns the timestamped name of a bulk download.
func ArchiveName(now time.Time) string {
	return fmt.Sprintf("converted-images-%s.zip", now.Format("20060102-150405"))
}
