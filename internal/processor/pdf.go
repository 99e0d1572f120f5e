package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/go-pdf/fpdf"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/model"
)

// DefaultPDFDPI is the resolution PDF pages are rasterized at.
const DefaultPDFDPI = 150

// fitzRenderer renders PDF pages with MuPDF.
type fitzRenderer struct {
	dpi float64
}

// RenderFirstPage rasterizes page one. Multi-page documents are not fully
// supported: the remaining pages are dropped and a warning is logged.
func (r fitzRenderer) RenderFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return nil, errors.New("pdf has no pages")
	}
	if pages > 1 {
		zlog.Logger.Warn().
			Int("pages", pages).
			Msg("only the first pdf page is converted")
	}

	img, err := doc.ImageDPI(0, r.dpi)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	return img, nil
}

// toPDF embeds the source image as a JPEG into a single-page PDF sized to
// the image.
func (p *Processor) toPDF(src model.Source, source model.Format, settings model.Settings) (model.Blob, error) {
	img, err := p.load(src, source)
	if err != nil {
		return model.Blob{}, err
	}

	page := canvas(fit(img, settings), true)

	jpeg, err := encode(page, model.FormatJPEG, settings.Quality)
	if err != nil {
		return model.Blob{}, fail(CauseEncode, err)
	}

	w := float64(page.Bounds().Dx())
	h := float64(page.Bounds().Dy())

	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	doc.RegisterImageOptionsReader("page", opts, bytes.NewReader(jpeg))
	doc.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")

	buf := new(bytes.Buffer)
	if err := doc.Output(buf); err != nil {
		return model.Blob{}, fail(CauseEncode, fmt.Errorf("write pdf: %w", err))
	}
	if buf.Len() == 0 {
		return model.Blob{}, fail(CauseEncode, errEmptyOutput)
	}

	return model.Blob{MIMEType: model.FormatPDF.MIMEType(), Data: buf.Bytes()}, nil
}
