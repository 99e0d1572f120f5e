package model

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source is an input file as handed over by the client. It is never mutated.
type Source struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"` // declared media type, may be empty
	Size     int64  `json:"size"`
	Data     []byte `json:"-"`
}

// NewSource builds a Source from in-memory bytes.
func NewSource(name, mimeType string, data []byte) Source {
	return Source{Name: name, MIMEType: mimeType, Size: int64(len(data)), Data: data}
}

// Ext returns the lower-cased extension of the source name.
func (s Source) Ext() string {
	return strings.ToLower(filepath.Ext(s.Name))
}

// Blob is converted output.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Size returns the blob length in bytes.
func (b Blob) Size() int64 {
	return int64(len(b.Data))
}

// Record is one file moving through the conversion queue.
type Record struct {
	ID             uuid.UUID `json:"id"`
	Original       Source    `json:"original"`
	Status         Status    `json:"status"`
	Progress       int       `json:"progress"` // 0..100
	OutputFormat   Format    `json:"output_format"`
	OutputFileName string    `json:"output_file_name"`
	Blob           *Blob     `json:"-"`   // set iff Status == StatusCompleted
	URL            string    `json:"url"` // stored blob path, revoked on removal
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewRecord creates a pending record for src targeting format.
func NewRecord(src Source, format Format) *Record {
	now := time.Now()
	return &Record{
		ID:             uuid.New(),
		Original:       src,
		Status:         StatusPending,
		OutputFormat:   format,
		OutputFileName: OutputFileName(src.Name, format),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// OutputFileName replaces the extension of name with the canonical extension of format.
func OutputFileName(name string, format Format) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	return base + format.Extension()
}

// Clone returns a copy that shares no mutable state with r.
func (r *Record) Clone() Record {
	c := *r
	if r.Blob != nil {
		b := *r.Blob
		c.Blob = &b
	}
	return c
}
