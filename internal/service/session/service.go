package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/download"
	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/queue"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSettings = errors.New("invalid settings")
)

// converter defines the single-file conversion used by every session queue.
type converter interface {
	Convert(ctx context.Context, src model.Source, target model.Format, settings model.Settings) (model.Blob, error)
}

// validator screens uploads before they are queued.
type validator interface {
	Validate(src model.Source) error
	CheckTarget(src model.Source, target model.Format) error
}

// fileStorage keeps converted outputs (e.g., MinIO or local disk).
type fileStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// producer publishes conversion requests to a message broker (e.g., Kafka).
type producer interface {
	Produce(ctx context.Context, req model.ConvertRequest) error
}

type session struct {
	queue     *queue.Manager
	createdAt time.Time
}

// Service keeps one conversion queue per client session. Conversion batches
// are requested through the producer and executed by Convert on the worker.
type Service struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session

	converter   converter
	validator   validator
	fileStorage fileStorage
	producer    producer

	progressInterval time.Duration
}

// NewService creates a new Service.
func NewService(c converter, v validator, fs fileStorage, p producer, progressInterval time.Duration) *Service {
	return &Service{
		sessions:         make(map[uuid.UUID]*session),
		converter:        c,
		validator:        v,
		fileStorage:      fs,
		producer:         p,
		progressInterval: progressInterval,
	}
}

// CreateSession opens an empty queue and returns its id.
func (s *Service) CreateSession() uuid.UUID {
	id := uuid.New()

	m := queue.NewManager(s.converter, s.validator, s.fileStorage, path.Join("converted", id.String()))
	m.SetProgressInterval(s.progressInterval)

	s.mu.Lock()
	s.sessions[id] = &session{queue: m, createdAt: time.Now()}
	s.mu.Unlock()

	zlog.Logger.Info().Str("session", id.String()).Msg("session created")

	return id
}

func (s *Service) lookup(id uuid.UUID) (*queue.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.queue, nil
}

// AddFiles queues the sources of a session for conversion into target.
// The second result lists files that were rejected.
func (s *Service) AddFiles(ctx context.Context, id uuid.UUID, sources []model.Source, target model.Format) ([]model.Record, []error, error) {
	q, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	added, rejected := q.AddFiles(ctx, sources, target)
	return added, rejected, nil
}

// Records returns the session's records in queue order.
func (s *Service) Records(id uuid.UUID) ([]model.Record, error) {
	q, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return q.Records(), nil
}

// RequestConversion publishes a conversion request for the session.
func (s *Service) RequestConversion(ctx context.Context, id uuid.UUID, settings model.Settings) (model.ConvertRequest, error) {
	if _, err := s.lookup(id); err != nil {
		return model.ConvertRequest{}, err
	}
	if err := settings.Validate(); err != nil {
		return model.ConvertRequest{}, fmt.Errorf("request: %w: %v", ErrInvalidSettings, err)
	}

	req := model.ConvertRequest{
		ID:          uuid.New(),
		SessionID:   id,
		Settings:    settings,
		RequestedAt: time.Now(),
	}

	if err := s.producer.Produce(ctx, req); err != nil {
		return model.ConvertRequest{}, fmt.Errorf("request: failed to enqueue conversion: %w", err)
	}

	return req, nil
}

// Convert runs the batch described by req. It is called by the worker.
func (s *Service) Convert(ctx context.Context, req model.ConvertRequest) (queue.BatchResult, error) {
	q, err := s.lookup(req.SessionID)
	if err != nil {
		return queue.BatchResult{}, err
	}

	res, err := q.ConvertAll(ctx, req.Settings)
	if err != nil {
		return res, fmt.Errorf("convert: %w", err)
	}

	return res, nil
}

// Download returns the converted output of one record.
func (s *Service) Download(id, fileID uuid.UUID) (download.File, error) {
	q, err := s.lookup(id)
	if err != nil {
		return download.File{}, err
	}

	rec, err := q.Get(fileID)
	if err != nil {
		return download.File{}, err
	}

	return download.One(rec)
}

// DownloadAll writes a zip of every completed record of the session to w.
// It fails with download.ErrNoCompletedFiles before writing when nothing is
// ready.
func (s *Service) DownloadAll(id uuid.UUID, w io.Writer) (int, error) {
	q, err := s.lookup(id)
	if err != nil {
		return 0, err
	}

	return download.All(w, q.Completed())
}

// HasCompleted reports whether the session has anything to download.
func (s *Service) HasCompleted(id uuid.UUID) (bool, error) {
	q, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	return len(q.Completed()) > 0, nil
}

// RemoveFile drops one record and revokes its stored output.
func (s *Service) RemoveFile(ctx context.Context, id, fileID uuid.UUID) error {
	q, err := s.lookup(id)
	if err != nil {
		return err
	}
	return q.Remove(ctx, fileID)
}

// ClearFiles empties the session's queue.
func (s *Service) ClearFiles(ctx context.Context, id uuid.UUID) error {
	q, err := s.lookup(id)
	if err != nil {
		return err
	}
	return q.Clear(ctx)
}

// CloseSession clears the queue and forgets the session.
func (s *Service) CloseSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	zlog.Logger.Info().
		Str("session", id.String()).
		Dur("age", time.Since(sess.createdAt)).
		Msg("session closed")

	return sess.queue.Clear(ctx)
}

// CloseAll clears every session; used on shutdown.
func (s *Service) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*session)
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := sess.queue.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
