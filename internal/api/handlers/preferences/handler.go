package preferences

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/api/respond"
	"github.com/aliskhannn/image-converter/internal/model"
	prefsvc "github.com/aliskhannn/image-converter/internal/service/preferences"
)

// service defines preference operations used by the HTTP layer.
type service interface {
	Get(ctx context.Context, clientID string) (model.Preferences, error)
	Save(ctx context.Context, p model.Preferences) (model.Preferences, error)
	Reset(ctx context.Context, clientID string) error
}

// Handler provides HTTP handlers for per-client preferences.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Get returns the client's preferences, falling back to defaults.
func (h *Handler) Get(c *ginext.Context) {
	client := c.Param("client")

	p, err := h.service.Get(c.Request.Context(), client)
	if err != nil {
		zlog.Logger.Err(err).Str("client", client).Msg("failed to get preferences")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get preferences"))
		return
	}

	respond.OK(c, p)
}

// Put replaces the client's preferences. Fields missing from the body keep
// their default values.
func (h *Handler) Put(c *ginext.Context) {
	client := c.Param("client")

	p := model.DefaultPreferences(client)
	if err := c.ShouldBindJSON(&p); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid body: %v", err))
		return
	}
	p.ClientID = client

	saved, err := h.service.Save(c.Request.Context(), p)
	if err != nil {
		if errors.Is(err, prefsvc.ErrInvalidPreferences) {
			respond.Fail(c, http.StatusBadRequest, err)
			return
		}

		zlog.Logger.Err(err).Str("client", client).Msg("failed to save preferences")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to save preferences"))
		return
	}

	respond.OK(c, saved)
}

// Delete resets the client's preferences to defaults.
func (h *Handler) Delete(c *ginext.Context) {
	client := c.Param("client")

	if err := h.service.Reset(c.Request.Context(), client); err != nil {
		zlog.Logger.Err(err).Str("client", client).Msg("failed to reset preferences")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to reset preferences"))
		return
	}

	c.Status(http.StatusNoContent)
}
