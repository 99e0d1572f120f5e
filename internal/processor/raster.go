package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/aliskhannn/image-converter/internal/model"
)

const (
	// maxDimension caps width/height so a lying header cannot force a huge allocation.
	maxDimension = 32768
	// maxPixels bounds the total pixel count (64 Mpx).
	maxPixels int64 = 64 * 1024 * 1024
)

var errEmptyOutput = errors.New("encoder produced no data")

func checkBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxDimension || height > maxDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if pixels := int64(width) * int64(height); pixels > maxPixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, maxPixels)
	}
	return nil
}

// decode reads the header first so oversized images are rejected before
// their pixels are allocated.
func decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := checkBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return img, nil
}

// canvas draws img onto a canvas of the same size. JPEG has no alpha
// channel, so opaque targets get a white background first.
func canvas(img image.Image, opaque bool) image.Image {
	b := img.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())

	if opaque {
		dc.SetColor(color.White)
		dc.Clear()
	}

	dc.DrawImage(img, -b.Min.X, -b.Min.Y)

	return dc.Image()
}

// fit applies the optional max width/height bound.
func fit(img image.Image, settings model.Settings) image.Image {
	if !settings.Resizes() {
		return img
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	maxW, maxH := settings.MaxWidth, settings.MaxHeight
	if maxW <= 0 {
		maxW = w
	}
	if maxH <= 0 {
		maxH = h
	}
	if w <= maxW && h <= maxH {
		return img
	}

	if settings.MaintainAspectRatio {
		return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	}

	return imaging.Resize(img, min(w, maxW), min(h, maxH), imaging.Lanczos)
}

// encoderQuality maps a [0,1] quality to the 1..100 scale used by encoders.
func encoderQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

func encodeCanvas(img image.Image, target model.Format, settings model.Settings) (model.Blob, error) {
	img = canvas(fit(img, settings), target == model.FormatJPEG)

	data, err := encode(img, target, settings.Quality)
	if err != nil {
		return model.Blob{}, fail(CauseEncode, err)
	}

	return model.Blob{MIMEType: target.MIMEType(), Data: data}, nil
}

// encode writes img in the target raster format.
func encode(img image.Image, target model.Format, quality float64) ([]byte, error) {
	buf := new(bytes.Buffer)

	var err error
	switch target {
	case model.FormatJPEG:
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(encoderQuality(quality)))
	case model.FormatPNG:
		err = imaging.Encode(buf, img, imaging.PNG)
	case model.FormatGIF:
		err = imaging.Encode(buf, img, imaging.GIF)
	case model.FormatBMP:
		err = imaging.Encode(buf, img, imaging.BMP)
	case model.FormatTIFF:
		err = imaging.Encode(buf, img, imaging.TIFF)
	case model.FormatWebP:
		err = webp.Encode(buf, img, webp.Options{Quality: encoderQuality(quality), Method: 4})
	default:
		err = fmt.Errorf("no raster encoder for %s", target)
	}
	if err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, errEmptyOutput
	}

	return buf.Bytes(), nil
}
