package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/api/respond"
	"github.com/aliskhannn/image-converter/internal/download"
	"github.com/aliskhannn/image-converter/internal/model"
	"github.com/aliskhannn/image-converter/internal/queue"
	sessionsvc "github.com/aliskhannn/image-converter/internal/service/session"
	"github.com/aliskhannn/image-converter/internal/validator"
)

// formSlack covers multipart boundaries, part headers and form fields on top
// of the file bytes of an upload.
const formSlack = 1 << 20

// service defines the session operations used by the HTTP layer.
type service interface {
	CreateSession() uuid.UUID
	AddFiles(ctx context.Context, id uuid.UUID, sources []model.Source, target model.Format) ([]model.Record, []error, error)
	Records(id uuid.UUID) ([]model.Record, error)
	RequestConversion(ctx context.Context, id uuid.UUID, settings model.Settings) (model.ConvertRequest, error)
	Download(id, fileID uuid.UUID) (download.File, error)
	DownloadAll(id uuid.UUID, w io.Writer) (int, error)
	RemoveFile(ctx context.Context, id, fileID uuid.UUID) error
	CloseSession(ctx context.Context, id uuid.UUID) error
}

// Handler provides HTTP handlers for conversion sessions.
type Handler struct {
	service     service
	maxFiles    int
	maxFileSize int64
}

// NewHandler creates a new Handler. maxFiles limits one upload request and
// zero means no limit. maxFileSize is the per-file ceiling; larger parts are
// reported as rejected without being read. A non-positive value selects
// validator.DefaultMaxFileSize.
func NewHandler(s service, maxFiles int, maxFileSize int64) *Handler {
	if maxFileSize <= 0 {
		maxFileSize = validator.DefaultMaxFileSize
	}
	return &Handler{service: s, maxFiles: maxFiles, maxFileSize: maxFileSize}
}

// UploadResponse lists queued records and the files that were turned away.
type UploadResponse struct {
	Added    []model.Record `json:"added"`
	Rejected []string       `json:"rejected"`
}

// Create opens a new conversion session.
func (h *Handler) Create(c *ginext.Context) {
	id := h.service.CreateSession()
	respond.Created(c, map[string]interface{}{"id": id})
}

// Upload reads the multipart "files" field and queues every file for
// conversion into the "format" field.
func (h *Handler) Upload(c *ginext.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if h.maxFiles > 0 {
		limit := h.maxFileSize*int64(h.maxFiles) + formSlack
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	// parts beyond maxFileSize in total spill to temporary files
	if err := c.Request.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}

		zlog.Logger.Err(err).Msg("failed to parse multipart form")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}
	defer c.Request.MultipartForm.RemoveAll()

	format := c.Request.PostFormValue("format")
	target, ok := model.ParseFormat(format)
	if !ok || !target.IsTarget() {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("unsupported target format %q", format))
		return
	}

	headers := c.Request.MultipartForm.File["files"]
	if len(headers) == 0 {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("files field is required"))
		return
	}
	if h.maxFiles > 0 && len(headers) > h.maxFiles {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("at most %d files per upload", h.maxFiles))
		return
	}

	sources := make([]model.Source, 0, len(headers))
	for _, fh := range headers {
		src, err := readSource(fh, h.maxFileSize)
		if err != nil {
			zlog.Logger.Err(err).Str("file", fh.Filename).Msg("failed to read uploaded file")
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to read %s", fh.Filename))
			return
		}
		sources = append(sources, src)
	}

	added, rejected, err := h.service.AddFiles(c.Request.Context(), id, sources, target)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := UploadResponse{Added: added, Rejected: make([]string, 0, len(rejected))}
	for _, r := range rejected {
		resp.Rejected = append(resp.Rejected, r.Error())
	}

	respond.OK(c, resp)
}

// List returns the session's records in queue order.
func (h *Handler) List(c *ginext.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	records, err := h.service.Records(id)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, records)
}

// Convert asks the worker to convert every pending record of the session.
func (h *Handler) Convert(c *ginext.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	settings := model.DefaultSettings("")
	if err := c.ShouldBindJSON(&settings); err != nil && !errors.Is(err, io.EOF) {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid settings: %v", err))
		return
	}

	req, err := h.service.RequestConversion(c.Request.Context(), id, settings)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.Accepted(c, req)
}

// DownloadOne serves the converted bytes of one record.
func (h *Handler) DownloadOne(c *ginext.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid file id: %v", err))
		return
	}

	f, err := h.service.Download(id, fileID)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.Attachment(c, f.Name, f.MIMEType, f.Data)
}

// DownloadAll serves a zip of every completed record of the session.
func (h *Handler) DownloadAll(c *ginext.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	n, err := h.service.DownloadAll(id, &buf)
	if err != nil {
		h.fail(c, err)
		return
	}

	zlog.Logger.Info().Str("session", id.String()).Int("files", n).Int("bytes", buf.Len()).Msg("archive assembled")

	respond.Attachment(c, download.ArchiveName(time.Now()), "application/zip", buf.Bytes())
}

// Remove drops one record from the session.
func (h *Handler) Remove(c *ginext.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid file id: %v", err))
		return
	}

	if err := h.service.RemoveFile(c.Request.Context(), id, fileID); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Close clears the session and forgets it.
func (h *Handler) Close(c *ginext.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.service.CloseSession(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// fail maps service errors onto HTTP statuses.
func (h *Handler) fail(c *ginext.Context, err error) {
	switch {
	case errors.Is(err, sessionsvc.ErrSessionNotFound),
		errors.Is(err, queue.ErrRecordNotFound):
		respond.Fail(c, http.StatusNotFound, err)
	case errors.Is(err, download.ErrNoCompletedFiles):
		respond.Fail(c, http.StatusNotFound, err)
	case errors.Is(err, download.ErrNotCompleted):
		respond.Fail(c, http.StatusConflict, err)
	case errors.Is(err, sessionsvc.ErrInvalidSettings):
		respond.Fail(c, http.StatusBadRequest, err)
	default:
		zlog.Logger.Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("internal error"))
	}
}

func sessionID(c *ginext.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid session id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}

// readSource loads an uploaded part. Parts larger than maxSize are not
// read; the validator rejects them from their size alone. Parts sent
// without a usable content type get one sniffed from their first bytes.
func readSource(fh *multipart.FileHeader, maxSize int64) (model.Source, error) {
	declared := fh.Header.Get("Content-Type")
	sniff := declared == "" || declared == "application/octet-stream"

	if fh.Size > maxSize {
		if sniff {
			declared = ""
		}
		return model.Source{Name: fh.Filename, MIMEType: declared, Size: fh.Size}, nil
	}

	f, err := fh.Open()
	if err != nil {
		return model.Source{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return model.Source{}, err
	}

	if sniff {
		declared = mimetype.Detect(data).String()
	}

	return model.NewSource(fh.Filename, declared, data), nil
}
