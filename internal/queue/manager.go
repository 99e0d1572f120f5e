package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/processor"
)

// DefaultProgressInterval is how often the advisory progress counter advances.
const DefaultProgressInterval = 200 * time.Millisecond

const (
	progressStep = 10
	progressCap  = 90
)

var (
	ErrBatchInProgress = errors.New("conversion batch already in progress")
	ErrRecordNotFound  = errors.New("record not found")
)

// converter turns one source into an output blob.
type converter interface {
	Convert(ctx context.Context, src model.Source, target model.Format, settings model.Settings) (model.Blob, error)
}

// validator screens files before they are queued.
type validator interface {
	Validate(src model.Source) error
	CheckTarget(src model.Source, target model.Format) error
}

// blobStore keeps converted outputs. The returned path is the record URL;
// deleting it revokes the URL.
type blobStore interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// BatchResult summarises one ConvertAll run.
type BatchResult struct {
	Converted int
	Failed    int
	Discarded int // removed while converting
}

// Total returns the number of records the run picked up.
func (r BatchResult) Total() int {
	return r.Converted + r.Failed + r.Discarded
}

// HasFailures reports whether any record ended in error.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Manager owns an ordered list of records and drives them through
// pending -> converting -> completed|error. Conversions run one at a time.
type Manager struct {
	mu      sync.Mutex
	records []*model.Record
	running bool

	converter converter
	validator validator
	store     blobStore
	namespace string

	interval time.Duration
	onUpdate func(model.Record)
}

// NewManager creates an empty queue. Converted blobs are stored under namespace.
func NewManager(c converter, v validator, s blobStore, namespace string) *Manager {
	return &Manager{
		converter: c,
		validator: v,
		store:     s,
		namespace: namespace,
		interval:  DefaultProgressInterval,
	}
}

// SetUpdateCallback registers a function called after every record change.
// It is called without the queue lock held.
func (m *Manager) SetUpdateCallback(fn func(model.Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// SetProgressInterval changes the progress tick; zero disables ticking.
func (m *Manager) SetProgressInterval(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
}

// AddFiles validates each source and appends the accepted ones as pending
// records in input order. Rejected files are returned as errors and never
// block the others.
func (m *Manager) AddFiles(ctx context.Context, sources []model.Source, target model.Format) ([]model.Record, []error) {
	var (
		added    []*model.Record
		rejected []error
	)

	for _, src := range sources {
		if err := m.validator.Validate(src); err != nil {
			rejected = append(rejected, err)
			continue
		}
		if err := m.validator.CheckTarget(src, target); err != nil {
			rejected = append(rejected, err)
			continue
		}
		added = append(added, model.NewRecord(src, target))
	}

	for _, err := range rejected {
		zlog.Logger.Warn().Err(err).Msg("file rejected")
	}

	m.mu.Lock()
	m.records = append(m.records, added...)
	out := make([]model.Record, 0, len(added))
	for _, rec := range added {
		out = append(out, rec.Clone())
	}
	m.mu.Unlock()

	for _, rec := range out {
		m.notify(rec)
	}

	return out, rejected
}

// ConvertAll converts every record that is pending when the call starts,
// strictly one after another. A failed record does not stop the batch.
// Records added during the run wait for the next one. Overlapping calls
// fail with ErrBatchInProgress. When ctx is cancelled the remaining
// records stay pending.
func (m *Manager) ConvertAll(ctx context.Context, settings model.Settings) (BatchResult, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return BatchResult{}, ErrBatchInProgress
	}
	m.running = true

	var pending []*model.Record
	for _, rec := range m.records {
		if rec.Status == model.StatusPending {
			pending = append(pending, rec)
		}
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	var result BatchResult
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		switch m.convertOne(ctx, rec, settings) {
		case outcomeCompleted:
			result.Converted++
		case outcomeFailed:
			result.Failed++
		case outcomeDiscarded:
			result.Discarded++
		}
	}

	zlog.Logger.Info().
		Int("converted", result.Converted).
		Int("failed", result.Failed).
		Int("discarded", result.Discarded).
		Msg("conversion batch finished")

	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCompleted
	outcomeFailed
	outcomeDiscarded
)

func (m *Manager) convertOne(ctx context.Context, rec *model.Record, settings model.Settings) outcome {
	m.mu.Lock()
	if m.indexOf(rec.ID) < 0 || rec.Status != model.StatusPending {
		m.mu.Unlock()
		return outcomeSkipped
	}
	rec.Status = model.StatusConverting
	rec.Progress = 0
	rec.UpdatedAt = time.Now()
	src, target, name := rec.Original, rec.OutputFormat, rec.OutputFileName
	snap := rec.Clone()
	m.mu.Unlock()
	m.notify(snap)

	started := time.Now()
	stop := m.startProgress(rec)
	blob, err := m.converter.Convert(ctx, src, target, settings)
	stop()

	var url string
	if err == nil {
		subdir := path.Join(m.namespace, rec.ID.String())
		url, err = m.store.Save(ctx, subdir, name, bytes.NewReader(blob.Data))
		if err != nil {
			err = fmt.Errorf("store converted file: %w", err)
		}
	}

	m.mu.Lock()
	if m.indexOf(rec.ID) < 0 {
		m.mu.Unlock()
		zlog.Logger.Info().Str("file", src.Name).Msg("record removed during conversion, result discarded")
		if url != "" {
			_ = m.revoke(ctx, url)
		}
		return outcomeDiscarded
	}

	res := outcomeCompleted
	if err != nil {
		rec.Status = model.StatusError
		rec.Progress = 0
		rec.Error = errorMessage(err)
		res = outcomeFailed
	} else {
		rec.Status = model.StatusCompleted
		rec.Progress = 100
		rec.Blob = &blob
		rec.URL = url
	}
	rec.UpdatedAt = time.Now()
	snap = rec.Clone()
	m.mu.Unlock()
	m.notify(snap)

	event := zlog.Logger.Info()
	if err != nil {
		event = zlog.Logger.Error().Err(err)
	}
	event.
		Str("file", src.Name).
		Str("target", target.String()).
		Dur("took", time.Since(started)).
		Str("status", snap.Status.String()).
		Msg("file converted")

	return res
}

// startProgress advances the record's advisory progress until the returned
// stop function is called. stop waits for the ticker goroutine to exit so no
// tick lands after the final status is written.
func (m *Manager) startProgress(rec *model.Record) func() {
	m.mu.Lock()
	interval := m.interval
	m.mu.Unlock()

	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.mu.Lock()
				if rec.Status != model.StatusConverting || rec.Progress >= progressCap {
					m.mu.Unlock()
					continue
				}
				rec.Progress = min(rec.Progress+progressStep, progressCap)
				snap := rec.Clone()
				m.mu.Unlock()
				m.notify(snap)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// Remove revokes the record's URL and drops it. Unknown ids are a no-op.
// When the revoke fails the record is put back so Remove can be retried.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return nil
	}
	rec := m.records[idx]
	m.records = append(m.records[:idx], m.records[idx+1:]...)
	url := rec.URL
	rec.URL = ""
	m.mu.Unlock()

	if url == "" {
		return nil
	}

	if err := m.revoke(ctx, url); err != nil {
		m.mu.Lock()
		rec.URL = url
		idx = min(idx, len(m.records))
		m.records = append(m.records[:idx], append([]*model.Record{rec}, m.records[idx:]...)...)
		m.mu.Unlock()
		return err
	}

	return nil
}

// Clear revokes every completed record's URL and empties the queue.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	records := m.records
	m.records = nil
	var urls []string
	for _, rec := range records {
		if rec.Status == model.StatusCompleted && rec.URL != "" {
			urls = append(urls, rec.URL)
		}
		rec.URL = ""
	}
	m.mu.Unlock()

	var errs []error
	for _, url := range urls {
		if err := m.revoke(ctx, url); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Records returns a snapshot of every record in queue order.
func (m *Manager) Records() []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	return out
}

// Completed returns a snapshot of the completed records in queue order.
func (m *Manager) Completed() []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Record
	for _, rec := range m.records {
		if rec.Status == model.StatusCompleted {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// Get returns a snapshot of the record with the given id.
func (m *Manager) Get(id uuid.UUID) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return model.Record{}, ErrRecordNotFound
	}
	return m.records[idx].Clone(), nil
}

// Running reports whether a batch is in progress.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// indexOf must be called with m.mu held.
func (m *Manager) indexOf(id uuid.UUID) int {
	for i, rec := range m.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) revoke(ctx context.Context, url string) error {
	if err := m.store.Delete(ctx, url); err != nil {
		zlog.Logger.Err(err).Str("url", url).Msg("failed to revoke converted file")
		return fmt.Errorf("revoke %s: %w", url, err)
	}
	return nil
}

func (m *Manager) notify(rec model.Record) {
	m.mu.Lock()
	fn := m.onUpdate
	m.mu.Unlock()

	if fn != nil {
		fn(rec)
	}
}

// errorMessage returns the user-facing message stored on a failed record.
func errorMessage(err error) string {
	if cerr, ok := processor.IsConversionError(err); ok {
		return cerr.Cause
	}
	return err.Error()
}
