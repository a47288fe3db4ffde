package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/ponbike-core/internal/audit"
)

// auditRefreshRequest records who asked for a refresh (best-effort).
func (s *Server) auditRefreshRequest(r *http.Request) {
	if s.audit == nil {
		return
	}

	entry := &audit.AuditLog{
		Action: audit.ActionRefreshRequested,
		Source: audit.SourceAPI,
		Details: map[string]any{
			"request_id": r.Context().Value(ctxKeyRequestID),
		},
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		entry.UserID = claims.Subject
	}
	s.audit.Record(entry)
}

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: refresh.succeeded, refresh.failed or refresh.requested
//   - since: RFC 3339 timestamp, only newer entries
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		EntityID: s.entryID,
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
