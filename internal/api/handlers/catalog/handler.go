package catalog

import (
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-converter/internal/api/respond"
	"github.com/aliskhannn/image-converter/internal/model"
)

type catalog interface {
	Tools() []model.Tool
	Tool(id string) (model.Tool, bool)
	From(f model.Format) []model.Tool
}

// Handler serves the static conversion tool catalog.
type Handler struct {
	catalog catalog
}

// NewHandler creates a new Handler over c.
func NewHandler(c catalog) *Handler {
	return &Handler{catalog: c}
}

// List returns every tool, or only those converting from the "from" query
// format when it is given.
func (h *Handler) List(c *ginext.Context) {
	from := c.Query("from")
	if from == "" {
		respond.OK(c, h.catalog.Tools())
		return
	}

	f, ok := model.ParseFormat(from)
	if !ok {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("unknown format %q", from))
		return
	}

	respond.OK(c, h.catalog.From(f))
}

// Get returns a single tool by id, e.g. "png-to-webp".
func (h *Handler) Get(c *ginext.Context) {
	t, ok := h.catalog.Tool(c.Param("id"))
	if !ok {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("tool not found"))
		return
	}

	respond.OK(c, t)
}
