// Package validator rejects files before they enter the conversion queue.
// Checks only look at file metadata, never at file contents.
package validator

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/aliskhannn/image-converter/internal/model"
)

// DefaultMaxFileSize is the upload ceiling (10 MiB).
const DefaultMaxFileSize int64 = 10 << 20

// Reason classifies a validation failure.
type Reason string

const (
	ReasonTooLarge    Reason = "file too large"
	ReasonUnsupported Reason = "unsupported format"
	ReasonSameFormat  Reason = "file is already in the target format"
)

// ValidationError reports why a single file was rejected.
type ValidationError struct {
	File   string
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.File, e.Reason, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// Validator checks size and format of incoming files.
type Validator struct {
	maxSize int64
}

// New creates a Validator; a non-positive maxSize selects DefaultMaxFileSize.
func New(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Validator{maxSize: maxSize}
}

// MaxSize returns the configured ceiling in bytes.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// Validate returns nil when src may be queued.
func (v *Validator) Validate(src model.Source) error {
	if src.Size > v.maxSize {
		return &ValidationError{
			File:   src.Name,
			Reason: ReasonTooLarge,
			Detail: fmt.Sprintf("%s exceeds %s", humanize.IBytes(uint64(src.Size)), humanize.IBytes(uint64(v.maxSize))),
		}
	}

	if _, ok := SourceFormat(src); !ok {
		return &ValidationError{File: src.Name, Reason: ReasonUnsupported}
	}

	return nil
}

// CheckTarget rejects converting a file into the format it already has.
func (v *Validator) CheckTarget(src model.Source, target model.Format) error {
	if !target.IsTarget() {
		return &ValidationError{File: src.Name, Reason: ReasonUnsupported, Detail: "target " + target.String()}
	}

	if f, ok := model.FormatFromName(src.Name); ok && f == target {
		return &ValidationError{File: src.Name, Reason: ReasonSameFormat, Detail: target.String()}
	}

	return nil
}

// SourceFormat resolves the format of src from its declared type first and
// its extension second.
func SourceFormat(src model.Source) (model.Format, bool) {
	if f, ok := model.FormatFromMIME(src.MIMEType); ok {
		return f, true
	}
	return model.FormatFromName(src.Name)
}
