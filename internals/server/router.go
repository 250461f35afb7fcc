package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.MiddlewareLogger)
	r.Get("/version", s.HandlerVersion)
	r.Get("/screens", s.HandlerScreens)
	r.Get("/screens/{kind}/{id}", s.HandlerScreen)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "not found"), Render.Status(http.StatusNotFound))
	})
	return r
}
