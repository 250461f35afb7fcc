package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Oudwins/walletgate/internals/logbuf"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/version"
)

type ScreensResponse struct {
	Status  JsonResponseStatus `json:"status"`
	Screens []tasky.ScreenInfo `json:"screens"`
}

type ScreenResponse struct {
	Status JsonResponseStatus `json:"status"`
	Screen tasky.ScreenInfo   `json:"screen"`
}

func (s *Server) HandlerVersion(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, r, version.Get())
}

func (s *Server) HandlerScreens(w http.ResponseWriter, r *http.Request) {
	screens := s.Arena.Snapshot()
	logbuf.FromContext(r.Context()).Debug("listed screens")
	RenderJSON(w, r, ScreensResponse{Status: JsonResponseStatusSuccess, Screens: screens})
}

func (s *Server) HandlerScreen(w http.ResponseWriter, r *http.Request) {
	id := tasky.ScreenID(chi.URLParam(r, "kind") + "/" + chi.URLParam(r, "id"))
	for _, screen := range s.Arena.Snapshot() {
		if screen.ID == id {
			RenderJSON(w, r, ScreenResponse{Status: JsonResponseStatusSuccess, Screen: screen})
			return
		}
	}
	logbuf.FromContext(r.Context()).Info("screen not found")
	RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "no screen "+string(id)), Render.Status(http.StatusNotFound))
}
