package router

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-converter/internal/api/handlers/catalog"
	"github.com/aliskhannn/image-converter/internal/api/handlers/preferences"
	"github.com/aliskhannn/image-converter/internal/api/handlers/session"
	"github.com/aliskhannn/image-converter/internal/api/handlers/version"
	catalogpkg "github.com/aliskhannn/image-converter/internal/catalog"
	"github.com/aliskhannn/image-converter/internal/model"
	prefrepo "github.com/aliskhannn/image-converter/internal/repository/preferences"
	prefsvc "github.com/aliskhannn/image-converter/internal/service/preferences"
	sessionsvc "github.com/aliskhannn/image-converter/internal/service/session"
	"github.com/aliskhannn/image-converter/internal/storage/local"
	"github.com/aliskhannn/image-converter/internal/validator"
)

type stubConverter struct{}

func (stubConverter) Convert(_ context.Context, src model.Source, target model.Format, _ model.Settings) (model.Blob, error) {
	return model.Blob{MIMEType: target.MIMEType(), Data: []byte("converted " + src.Name)}, nil
}

type recordingProducer struct {
	mu   sync.Mutex
	reqs []model.ConvertRequest
}

func (p *recordingProducer) Produce(_ context.Context, req model.ConvertRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	return nil
}

type memRepo struct {
	mu   sync.Mutex
	rows map[string]model.Preferences
}

func (r *memRepo) Get(_ context.Context, id string) (model.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return model.Preferences{}, prefrepo.ErrPreferencesNotFound
	}
	return p, nil
}

func (r *memRepo) Save(_ context.Context, p model.Preferences) (model.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.UpdatedAt = time.Now()
	r.rows[p.ClientID] = p
	return p, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

type testAPI struct {
	handler  http.Handler
	sessions *sessionsvc.Service
	producer *recordingProducer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newLimitedTestAPI(t, validator.DefaultMaxFileSize)
}

func newLimitedTestAPI(t *testing.T, maxFileSize int64) *testAPI {
	t.Helper()

	p := &recordingProducer{}
	sessions := sessionsvc.NewService(stubConverter{}, validator.New(maxFileSize), local.NewStorage(t.TempDir()), p, time.Hour)

	r := Setup(Handlers{
		Session:     session.NewHandler(sessions, 5, maxFileSize),
		Catalog:     catalog.NewHandler(catalogpkg.New()),
		Preferences: preferences.NewHandler(prefsvc.NewService(&memRepo{rows: map[string]model.Preferences{}})),
		Version:     version.NewHandler("1.2.3"),
	})

	return &testAPI{handler: r, sessions: sessions, producer: p}
}

func (a *testAPI) do(t *testing.T, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	if body == nil {
		body = new(bytes.Buffer)
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

type part struct {
	name, contentType string
	data              []byte
}

func uploadBody(t *testing.T, format string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("format", format))

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder, result interface{}) {
	t.Helper()

	envelope := struct {
		Result json.RawMessage `json:"result"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Result, result))
}

func (a *testAPI) createSession(t *testing.T) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, w, &created)
	return created.ID.String()
}

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSessionFlow(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	body, ct := uploadBody(t, "webp",
		part{name: "a.png", contentType: "image/png", data: pngBytes},
		part{name: "b.webp", contentType: "image/webp", data: []byte("webp")},
		part{name: "notes.txt", contentType: "text/plain", data: []byte("hello")},
		part{name: "c.png", contentType: "image/png", data: pngBytes},
	)
	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var uploaded session.UploadResponse
	decode(t, w, &uploaded)
	require.Len(t, uploaded.Added, 2)
	assert.Equal(t, "a.webp", uploaded.Added[0].OutputFileName)
	assert.Equal(t, model.StatusPending, uploaded.Added[0].Status)
	assert.Len(t, uploaded.Rejected, 2)

	w = api.do(t, http.MethodGet, "/api/sessions/"+id+"/download", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/sessions/"+id+"/convert", bytes.NewBufferString(`{"quality":0.5}`), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, api.producer.reqs, 1)
	assert.Equal(t, 0.5, api.producer.reqs[0].Settings.Quality)

	_, err := api.sessions.Convert(context.Background(), api.producer.reqs[0])
	require.NoError(t, err)

	w = api.do(t, http.MethodGet, "/api/sessions/"+id+"/files/"+uploaded.Added[0].ID.String()+"/download", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/webp", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "a.webp")
	assert.Equal(t, "converted a.png", w.Body.String())

	w = api.do(t, http.MethodGet, "/api/sessions/"+id+"/download", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "converted-images-")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)

	w = api.do(t, http.MethodDelete, "/api/sessions/"+id+"/files/"+uploaded.Added[0].ID.String(), nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, "/api/sessions/"+id+"/files", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var records []model.Record
	decode(t, w, &records)
	require.Len(t, records, 1)
	assert.Equal(t, model.StatusCompleted, records[0].Status)
	assert.Equal(t, 100, records[0].Progress)

	w = api.do(t, http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, "/api/sessions/"+id+"/files", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadSniffsMissingContentType(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	body, ct := uploadBody(t, "jpg", part{name: "scan", data: pngBytes})
	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var uploaded session.UploadResponse
	decode(t, w, &uploaded)
	require.Len(t, uploaded.Added, 1)
	assert.Equal(t, "image/png", uploaded.Added[0].Original.MIMEType)
	assert.Equal(t, "scan.jpg", uploaded.Added[0].OutputFileName)
}

func TestUploadRejectsBadRequests(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	body, ct := uploadBody(t, "heic", part{name: "a.png", contentType: "image/png", data: pngBytes})
	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = uploadBody(t, "png")
	w = api.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = uploadBody(t, "png", part{name: "a.jpg", contentType: "image/jpeg", data: []byte("jpg")})
	w = api.do(t, http.MethodPost, "/api/sessions/not-a-uuid/files", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = uploadBody(t, "png", part{name: "a.jpg", contentType: "image/jpeg", data: []byte("jpg")})
	w = api.do(t, http.MethodPost, "/api/sessions/"+uuid.NewString()+"/files", body, ct)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadRejectsOversizedParts(t *testing.T) {
	api := newLimitedTestAPI(t, 1<<10)
	id := api.createSession(t)

	big := bytes.Repeat([]byte{0}, 4<<10)
	body, ct := uploadBody(t, "jpeg",
		part{name: "small.png", contentType: "image/png", data: pngBytes},
		part{name: "big.png", contentType: "image/png", data: big},
	)
	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var uploaded session.UploadResponse
	decode(t, w, &uploaded)
	require.Len(t, uploaded.Added, 1)
	assert.Equal(t, "small.png", uploaded.Added[0].Original.Name)
	require.Len(t, uploaded.Rejected, 1)
	assert.Contains(t, uploaded.Rejected[0], "big.png")
	assert.Contains(t, uploaded.Rejected[0], "file too large")

	// five parts of at most 1 KiB each, plus form overhead
	huge := bytes.Repeat([]byte{0}, 2<<20)
	body, ct = uploadBody(t, "jpeg", part{name: "huge.png", contentType: "image/png", data: huge})
	w = api.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestConvertAcceptsFormatAliases(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/convert", bytes.NewBufferString(`{"quality":0.8,"format":"jpg"}`), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, api.producer.reqs, 1)
	assert.Equal(t, model.FormatJPEG, api.producer.reqs[0].Settings.Format)

	w = api.do(t, http.MethodPost, "/api/sessions/"+id+"/convert", bytes.NewBufferString(`{"format":"svg"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvertRejectsInvalidSettings(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/convert", bytes.NewBufferString(`{"quality":3}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, api.producer.reqs)

	w = api.do(t, http.MethodPost, "/api/sessions/"+id+"/convert", nil, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, api.producer.reqs, 1)
	assert.Equal(t, model.DefaultQuality, api.producer.reqs[0].Settings.Quality)
}

func TestDownloadOnePendingRecordConflicts(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	body, ct := uploadBody(t, "gif", part{name: "a.png", contentType: "image/png", data: pngBytes})
	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/files", body, ct)
	var uploaded session.UploadResponse
	decode(t, w, &uploaded)
	require.Len(t, uploaded.Added, 1)

	w = api.do(t, http.MethodGet, "/api/sessions/"+id+"/files/"+uploaded.Added[0].ID.String()+"/download", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodGet, "/api/sessions/"+id+"/files/"+uuid.NewString()+"/download", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTools(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/tools", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var tools []model.Tool
	decode(t, w, &tools)
	assert.NotEmpty(t, tools)

	w = api.do(t, http.MethodGet, "/api/tools?from=heic", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &tools)
	for _, tool := range tools {
		assert.Equal(t, model.FormatHEIC, tool.From)
	}

	w = api.do(t, http.MethodGet, "/api/tools/png-to-webp", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var tool model.Tool
	decode(t, w, &tool)
	assert.Equal(t, model.FormatWebP, tool.To)

	w = api.do(t, http.MethodGet, "/api/tools/png-to-heic", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/tools?from=psd", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferences(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/preferences/c1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var p model.Preferences
	decode(t, w, &p)
	assert.Equal(t, model.ThemeDark, p.Theme)

	w = api.do(t, http.MethodPut, "/api/preferences/c1", bytes.NewBufferString(`{"theme":"cyber","clock_format":"12h","quality":0.7}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/preferences/c1", nil, "")
	decode(t, w, &p)
	assert.Equal(t, model.ThemeCyber, p.Theme)
	assert.Equal(t, model.Clock12h, p.ClockFormat)
	assert.Equal(t, 0.7, p.Quality)
	assert.Equal(t, model.FormatPNG, p.Format)

	w = api.do(t, http.MethodPut, "/api/preferences/c1", bytes.NewBufferString(`{"theme":"neon"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodDelete, "/api/preferences/c1", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, "/api/preferences/c1", nil, "")
	decode(t, w, &p)
	assert.Equal(t, model.ThemeDark, p.Theme)
}

func TestVersionAndCORS(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/version", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"1.2.3"`))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = api.do(t, http.MethodOptions, "/api/sessions", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
