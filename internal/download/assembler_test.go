package download

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-converter/internal/model"
)

func completed(name string, format model.Format, data string) model.Record {
	rec := model.NewRecord(model.NewSource(name, "image/png", []byte("src")), format)
	rec.Status = model.StatusCompleted
	rec.Progress = 100
	rec.Blob = &model.Blob{MIMEType: format.MIMEType(), Data: []byte(data)}
	return rec.Clone()
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = string(b)
	}
	require.Len(t, zr.File, len(out), "duplicate entries in archive")
	return out
}

func TestOne(t *testing.T) {
	rec := completed("a.png", model.FormatJPEG, "jpeg")

	f, err := One(rec)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", f.Name)
	assert.Equal(t, "image/jpeg", f.MIMEType)
	assert.Equal(t, "jpeg", string(f.Data))

	pending := *model.NewRecord(model.NewSource("b.png", "image/png", nil), model.FormatJPEG)
	_, err = One(pending)
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestAllWithoutCompletedFiles(t *testing.T) {
	failed := *model.NewRecord(model.NewSource("b.png", "image/png", nil), model.FormatJPEG)
	failed.Status = model.StatusError
	failed.Error = "Failed to load image"

	buf := new(bytes.Buffer)
	n, err := All(buf, []model.Record{failed})
	assert.ErrorIs(t, err, ErrNoCompletedFiles)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())

	_, err = All(buf, nil)
	assert.ErrorIs(t, err, ErrNoCompletedFiles)
}

func TestAllArchivesCompletedOnly(t *testing.T) {
	pending := *model.NewRecord(model.NewSource("skip.png", "image/png", nil), model.FormatJPEG)
	records := []model.Record{
		completed("a.png", model.FormatJPEG, "A"),
		pending,
		completed("b.jpg", model.FormatPNG, "B"),
		completed("c.gif", model.FormatPDF, "C"),
	}

	buf := new(bytes.Buffer)
	n, err := All(buf, records)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, map[string]string{"a.jpg": "A", "b.png": "B", "c.pdf": "C"}, readZip(t, buf.Bytes()))
}

func TestAllDuplicateNamesLastWriteWins(t *testing.T) {
	records := []model.Record{
		completed("photo.png", model.FormatJPEG, "first"),
		completed("other.png", model.FormatJPEG, "other"),
		completed("photo.webp", model.FormatJPEG, "second"),
	}

	buf := new(bytes.Buffer)
	n, err := All(buf, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, map[string]string{"photo.jpg": "second", "other.jpg": "other"}, readZip(t, buf.Bytes()))
}

func TestArchiveName(t *testing.T) {
	ts := time.Date(2026, 10, 17, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "converted-images-20261017-090503.zip", ArchiveName(ts))
}
