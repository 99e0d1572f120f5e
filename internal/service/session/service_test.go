package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-converter/internal/download"
	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/queue"
	"github.com/aliskhannn/image-converter/internal/storage/local"
	"github.com/aliskhannn/image-converter/internal/validator"
)

type stubConverter struct{}

func (stubConverter) Convert(_ context.Context, src model.Source, target model.Format, _ model.Settings) (model.Blob, error) {
	if src.Name == "corrupt.png" {
		return model.Blob{}, errors.New("decode failed")
	}
	return model.Blob{MIMEType: target.MIMEType(), Data: []byte("converted " + src.Name)}, nil
}

type recordingProducer struct {
	mu   sync.Mutex
	reqs []model.ConvertRequest
	err  error
}

func (p *recordingProducer) Produce(_ context.Context, req model.ConvertRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reqs = append(p.reqs, req)
	return nil
}

func newService(t *testing.T) (*Service, *recordingProducer) {
	t.Helper()

	p := &recordingProducer{}
	return NewService(stubConverter{}, validator.New(0), local.NewStorage(t.TempDir()), p, 0), p
}

func src(name string) model.Source {
	return model.NewSource(name, "image/png", []byte("png"))
}

func TestSessionLifecycle(t *testing.T) {
	svc, producer := newService(t)
	ctx := context.Background()

	id := svc.CreateSession()

	added, rejected, err := svc.AddFiles(ctx, id, []model.Source{src("a.png"), src("corrupt.png"), src("b.jpg")}, model.FormatJPEG)
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Len(t, rejected, 1)

	_, err = svc.DownloadAll(id, new(bytes.Buffer))
	assert.ErrorIs(t, err, download.ErrNoCompletedFiles)

	req, err := svc.RequestConversion(ctx, id, model.DefaultSettings(model.FormatJPEG))
	require.NoError(t, err)
	require.Len(t, producer.reqs, 1)
	assert.Equal(t, id, producer.reqs[0].SessionID)

	res, err := svc.Convert(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, queue.BatchResult{Converted: 1, Failed: 1}, res)

	f, err := svc.Download(id, added[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", f.Name)
	assert.Equal(t, "converted a.png", string(f.Data))

	_, err = svc.Download(id, added[1].ID)
	assert.ErrorIs(t, err, download.ErrNotCompleted)

	ok, err := svc.HasCompleted(id)
	require.NoError(t, err)
	assert.True(t, ok)

	buf := new(bytes.Buffer)
	n, err := svc.DownloadAll(id, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotZero(t, buf.Len())

	require.NoError(t, svc.RemoveFile(ctx, id, added[0].ID))
	records, err := svc.Records(id)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, svc.CloseSession(ctx, id))
	_, err = svc.Records(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.CloseSession(ctx, id), ErrSessionNotFound)
}

func TestUnknownSession(t *testing.T) {
	svc, producer := newService(t)
	ctx := context.Background()
	id := uuid.New()

	_, _, err := svc.AddFiles(ctx, id, nil, model.FormatPNG)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.RequestConversion(ctx, id, model.DefaultSettings(model.FormatPNG))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, producer.reqs)

	_, err = svc.Convert(ctx, model.ConvertRequest{SessionID: id})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRequestConversionValidatesSettings(t *testing.T) {
	svc, producer := newService(t)
	id := svc.CreateSession()

	_, err := svc.RequestConversion(context.Background(), id, model.Settings{Quality: 2})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Empty(t, producer.reqs)

	producer.err = errors.New("broker down")
	_, err = svc.RequestConversion(context.Background(), id, model.DefaultSettings(model.FormatPNG))
	assert.ErrorContains(t, err, "broker down")
}

func TestCloseAll(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a := svc.CreateSession()
	b := svc.CreateSession()
	_, _, err := svc.AddFiles(ctx, a, []model.Source{src("x.png")}, model.FormatGIF)
	require.NoError(t, err)
	_, err = svc.Convert(ctx, model.ConvertRequest{SessionID: a, Settings: model.DefaultSettings(model.FormatGIF)})
	require.NoError(t, err)

	require.NoError(t, svc.CloseAll(ctx))

	_, err = svc.Records(a)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Records(b)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
