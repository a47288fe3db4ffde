package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ponbike-core/internal/entity"
)

// refreshTimeout bounds how long POST /refresh waits for the cycle. The
// cycle itself carries on if the caller gives up.
const refreshTimeout = 90 * time.Second

// handleListBikes returns every bike in the current snapshot.
func (s *Server) handleListBikes(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.CurrentSnapshot()
	if snap == nil {
		writeUnavailable(w, "no successful refresh yet")
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(s.entryID, snap))
}

// handleGetBike returns one bike by id.
func (s *Server) handleGetBike(w http.ResponseWriter, r *http.Request) {
	snap := s.source.CurrentSnapshot()
	if snap == nil {
		writeUnavailable(w, "no successful refresh yet")
		return
	}

	b, ok := snap.Bike(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "bike not found")
		return
	}
	writeJSON(w, http.StatusOK, newBikeView(b, snap))
}

// handleBikeEntities returns the bike's entities with their current states.
func (s *Server) handleBikeEntities(w http.ResponseWriter, r *http.Request) {
	snap := s.source.CurrentSnapshot()
	if snap == nil {
		writeUnavailable(w, "no successful refresh yet")
		return
	}

	b, ok := snap.Bike(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "bike not found")
		return
	}

	entities := entity.ForBike(s.entryID, b)
	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, entityView{Entity: e, State: e.Render(snap)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": views, "count": len(views)})
}

// handleRefresh runs a refresh cycle, or joins the one in flight, and
// returns the resulting snapshot. A failed cycle leaves the previous
// snapshot in place and answers 502.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	s.auditRefreshRequest(r)

	snap, err := s.source.RefreshNow(ctx)
	if err != nil {
		s.logger.Warn("refresh via API failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "vendor refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotView(s.entryID, snap))
}
