package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-insight/internal/api/handlers/record"
	"github.com/aliskhannn/image-insight/internal/middleware"
)

func Setup(h *record.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.GET("/health", h.Health) // liveness probe

	api.POST("/records", h.Create)                 // submitting a new image
	api.GET("/records/current", h.Current)         // current record snapshot
	api.DELETE("/records/current", h.Discard)      // discarding the current record
	api.GET("/records/current/clean", h.Clean)     // metadata-free download
	api.GET("/records/current/preview", h.Preview) // preview image
	api.GET("/history", h.History)                 // recent terminal outcomes

	return r
}
