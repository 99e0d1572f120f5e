package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-converter/internal/api/handlers/catalog"
	"github.com/aliskhannn/image-converter/internal/api/handlers/preferences"
	"github.com/aliskhannn/image-converter/internal/api/handlers/session"
	"github.com/aliskhannn/image-converter/internal/api/handlers/version"
	"github.com/aliskhannn/image-converter/internal/middleware"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Session     *session.Handler
	Catalog     *catalog.Handler
	Preferences *preferences.Handler
	Version     *version.Handler
}

func Setup(h Handlers) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/sessions", h.Session.Create)                                // opening a session
	api.DELETE("/sessions/:id", h.Session.Close)                           // clearing and closing a session
	api.POST("/sessions/:id/files", h.Session.Upload)                      // queueing files
	api.GET("/sessions/:id/files", h.Session.List)                         // listing records
	api.DELETE("/sessions/:id/files/:fileID", h.Session.Remove)            // removing a record
	api.GET("/sessions/:id/files/:fileID/download", h.Session.DownloadOne) // downloading one output
	api.POST("/sessions/:id/convert", h.Session.Convert)                   // requesting a batch
	api.GET("/sessions/:id/download", h.Session.DownloadAll)               // downloading a zip

	api.GET("/tools", h.Catalog.List)
	api.GET("/tools/:id", h.Catalog.Get)

	api.GET("/preferences/:client", h.Preferences.Get)
	api.PUT("/preferences/:client", h.Preferences.Put)
	api.DELETE("/preferences/:client", h.Preferences.Delete)

	api.GET("/version", h.Version.Get)

	return r
}
