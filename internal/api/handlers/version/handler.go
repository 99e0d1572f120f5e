package version

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-converter/internal/api/respond"
)

// Handler reports the running build so clients can detect updates.
type Handler struct {
	version string
}

func NewHandler(version string) *Handler {
	return &Handler{version: version}
}

func (h *Handler) Get(c *ginext.Context) {
	respond.OK(c, map[string]string{"version": h.version})
}
