package handlers

import (
	"net/http"

	"github.com/HermYeh/face-attendance/internal/tracker"
)

// TracksHandler exposes the live face tracks for monitoring UIs.
type TracksHandler struct {
	tracker *tracker.Tracker
}

// NewTracksHandler creates the handler.
func NewTracksHandler(trk *tracker.Tracker) *TracksHandler {
	return &TracksHandler{tracker: trk}
}

// List returns a snapshot of the current tracks.
func (h *TracksHandler) List(w http.ResponseWriter, r *http.Request) {
	tracks := h.tracker.Tracks()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(tracks),
		"tracks": tracks,
	})
}
