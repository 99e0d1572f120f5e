// Package catalog lists the conversion tools offered to clients. The catalog
// is static configuration built once at startup.
package catalog

import (
	"fmt"
	"strings"

	"github.com/aliskhannn/image-converter/internal/model"
)

const (
	fallbackIcon     = "image"
	fallbackGradient = "from-slate-500 to-slate-700"
)

var icons = map[model.Format]string{
	model.FormatPNG:  "file-image",
	model.FormatJPEG: "camera",
	model.FormatWebP: "globe",
	model.FormatGIF:  "film",
	model.FormatBMP:  "grid",
	model.FormatTIFF: "layers",
	model.FormatPDF:  "file-text",
	model.FormatHEIC: "smartphone",
}

var gradients = map[model.Format]string{
	model.FormatPNG:  "from-blue-500 to-cyan-500",
	model.FormatJPEG: "from-orange-500 to-red-500",
	model.FormatWebP: "from-green-500 to-emerald-500",
	model.FormatGIF:  "from-pink-500 to-rose-500",
	model.FormatBMP:  "from-yellow-500 to-amber-500",
	model.FormatTIFF: "from-indigo-500 to-violet-500",
	model.FormatPDF:  "from-red-600 to-red-800",
	model.FormatHEIC: "from-purple-500 to-fuchsia-500",
}

// Icon returns the icon key for a format, or a generic image icon.
func Icon(f model.Format) string {
	if icon, ok := icons[f]; ok {
		return icon
	}
	return fallbackIcon
}

// Gradient returns the display gradient for a format, or a neutral one.
func Gradient(f model.Format) string {
	if g, ok := gradients[f]; ok {
		return g
	}
	return fallbackGradient
}

// Catalog is an immutable, ordered set of tools.
type Catalog struct {
	tools []model.Tool
	byID  map[string]int
}

// New builds a tool for every supported direction between distinct formats.
func New() *Catalog {
	c := &Catalog{byID: map[string]int{}}

	for _, from := range model.Formats() {
		for _, to := range model.Formats() {
			if from == to || !to.IsTarget() {
				continue
			}

			t := model.Tool{
				ID:          ToolID(from, to),
				From:        from,
				To:          to,
				Title:       fmt.Sprintf("%s to %s", label(from), label(to)),
				Description: fmt.Sprintf("Convert %s files to %s.", label(from), label(to)),
				Icon:        Icon(to),
				Gradient:    Gradient(from),
			}
			c.byID[t.ID] = len(c.tools)
			c.tools = append(c.tools, t)
		}
	}

	return c
}

// ToolID returns the catalog id of a direction, e.g. "png-to-jpeg".
func ToolID(from, to model.Format) string {
	return string(from) + "-to-" + string(to)
}

// Tools returns every tool in catalog order.
func (c *Catalog) Tools() []model.Tool {
	out := make([]model.Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Tool looks a tool up by id. Aliases such as "jpg-to-png" are accepted.
func (c *Catalog) Tool(id string) (model.Tool, bool) {
	if i, ok := c.byID[id]; ok {
		return c.tools[i], true
	}

	from, to, ok := strings.Cut(strings.ToLower(id), "-to-")
	if !ok {
		return model.Tool{}, false
	}
	ff, ok1 := model.ParseFormat(from)
	tf, ok2 := model.ParseFormat(to)
	if !ok1 || !ok2 {
		return model.Tool{}, false
	}

	i, ok := c.byID[ToolID(ff, tf)]
	if !ok {
		return model.Tool{}, false
	}
	return c.tools[i], true
}

// From returns the tools accepting the given source format.
func (c *Catalog) From(f model.Format) []model.Tool {
	var out []model.Tool
	for _, t := range c.tools {
		if t.From == f {
			out = append(out, t)
		}
	}
	return out
}

func label(f model.Format) string {
	return strings.ToUpper(string(f))
}
