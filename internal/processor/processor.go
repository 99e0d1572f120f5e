package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/model"
)

// Causes reported by ConversionError.
const (
	CauseLoad    = "Failed to load image"
	CauseEncode  = "Failed to convert image"
	CauseHEIC    = "HEIC conversion failed"
	CauseGeneric = "Image conversion failed"
)

// ConversionError is returned for every failed conversion. Cause is safe to
// show to users; Err carries the underlying error when there is one.
type ConversionError struct {
	Cause string
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Cause, e.Err)
	}
	return e.Cause
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func fail(cause string, err error) *ConversionError {
	return &ConversionError{Cause: cause, Err: err}
}

// pageRenderer rasterizes the first page of a PDF document.
type pageRenderer interface {
	RenderFirstPage(data []byte) (image.Image, error)
}

// Processor converts a single source file into a target format.
// It holds no per-call state and may be shared.
type Processor struct {
	pages      pageRenderer
	decodeHEIC func(r io.Reader) (image.Image, error)
}

// New creates a Processor rendering PDF pages at the given DPI.
// A non-positive dpi selects DefaultPDFDPI.
func New(dpi float64) *Processor {
	if dpi <= 0 {
		dpi = DefaultPDFDPI
	}
	return &Processor{
		pages:      fitzRenderer{dpi: dpi},
		decodeHEIC: decodeHEIC,
	}
}

// Convert produces the output blob for src in the target format. It either
// returns a complete blob or a *ConversionError, never partial output.
func (p *Processor) Convert(ctx context.Context, src model.Source, target model.Format, settings model.Settings) (blob model.Blob, err error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().
				Str("file", src.Name).
				Interface("panic", r).
				Msg("codec panicked")
			blob, err = model.Blob{}, fail(CauseGeneric, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return model.Blob{}, fail(CauseGeneric, err)
	}
	if !target.IsTarget() {
		return model.Blob{}, fail(CauseGeneric, fmt.Errorf("unsupported target format: %s", target))
	}

	source := sourceFormat(src)

	switch {
	case source == model.FormatPDF && target != model.FormatPDF:
		return p.fromPDF(src, target, settings)
	case target == model.FormatPDF:
		return p.toPDF(src, source, settings)
	default:
		return p.raster(src, source, target, settings)
	}
}

// fromPDF renders the first page only; later pages are ignored.
func (p *Processor) fromPDF(src model.Source, target model.Format, settings model.Settings) (model.Blob, error) {
	page, err := p.pages.RenderFirstPage(src.Data)
	if err != nil {
		return model.Blob{}, fail(CauseGeneric, fmt.Errorf("render pdf page: %w", err))
	}

	return encodeCanvas(page, target, settings)
}

// raster handles raster-to-raster conversion, decoding HEIC sources first.
func (p *Processor) raster(src model.Source, source, target model.Format, settings model.Settings) (model.Blob, error) {
	img, err := p.load(src, source)
	if err != nil {
		return model.Blob{}, err
	}

	return encodeCanvas(img, target, settings)
}

// load decodes the source into an in-memory image.
func (p *Processor) load(src model.Source, source model.Format) (image.Image, error) {
	if source == model.FormatHEIC {
		img, err := p.decodeHEIC(bytes.NewReader(src.Data))
		if err != nil {
			return nil, fail(CauseHEIC, err)
		}
		if err := checkBounds(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
			return nil, fail(CauseLoad, err)
		}
		return img, nil
	}

	img, err := decode(src.Data)
	if err != nil {
		return nil, fail(CauseLoad, err)
	}

	return img, nil
}

// sourceFormat resolves the format of src from its declared type first and
// its extension second. HEIC is recognised by either.
func sourceFormat(src model.Source) model.Format {
	if f, ok := model.FormatFromName(src.Name); ok && f == model.FormatHEIC {
		return f
	}
	if f, ok := model.FormatFromMIME(src.MIMEType); ok {
		return f
	}
	if f, ok := model.FormatFromName(src.Name); ok {
		return f
	}
	return ""
}

// IsConversionError reports whether err is a *ConversionError and returns it.
func IsConversionError(err error) (*ConversionError, bool) {
	var cerr *ConversionError
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}
