package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/gridedit/internal/core"
	"github.com/JonMunkholm/gridedit/internal/logging"
	"github.com/JonMunkholm/gridedit/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// pendingChangedEvent is the HX-Trigger event that refreshes the dirty badge.
const pendingChangedEvent = "pending-changed"

// handleHealth reports liveness and the save limiter state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"controls": len(s.service.ListControls()),
		"saves":    s.service.SaveLimiterStatus(),
	})
}

// handleListEntities returns every registered entity with its columns.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	defs := make([]core.EntityDefinition, 0)
	for _, info := range s.service.ListEntities() {
		def, err := s.service.Entity(info.Name)
		if err != nil {
			continue
		}
		defs = append(defs, def)
	}
	writeJSON(w, r, http.StatusOK, defs)
}

// handleGetEntity returns one entity definition.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Entity(chi.URLParam(r, "entity"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

// handleSaveStatus returns the process-wide save limiter state.
func (s *Server) handleSaveStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.SaveLimiterStatus())
}

// handleListControls returns every open control.
func (s *Server) handleListControls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ListControls())
}

// handleOpenControl binds a new control to an entity.
func (s *Server) handleOpenControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entity string `json:"entity"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Entity == "" {
		badRequest(w, "missing entity")
		return
	}

	control, err := s.service.OpenControl(r.Context(), req.Entity)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	info, err := s.service.ControlInfo(control.ID())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.Header().Set("Location", "/api/controls/"+control.ID())
	writeJSON(w, r, http.StatusCreated, info)
}

// handleGetControl returns the control's state and its pending edits.
func (s *Server) handleGetControl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "controlID")
	info, err := s.service.ControlInfo(id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	control, err := s.service.Control(id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"control": info,
		"pending": control.Pending(),
	})
}

// handleCloseControl tears a control down, discarding its pending edits.
func (s *Server) handleCloseControl(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseControl(r.Context(), chi.URLParam(r, "controlID")); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRows returns a page of the control's dataset. Without limit the
// current page is re-read.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 0)
	offset := parseIntParam(r, "offset", 0)

	rows, err := s.service.Rows(r.Context(), chi.URLParam(r, "controlID"), limit, offset)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if rows == nil {
		rows = []core.Record{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"rows":   rows,
		"limit":  limit,
		"offset": offset,
	})
}

// handleCellChange records one cell edit. Rejected edits still answer 200:
// the warning travels in the body and the previous pending value stands.
func (s *Server) handleCellChange(w http.ResponseWriter, r *http.Request) {
	control, err := s.service.Control(chi.URLParam(r, "controlID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	var req struct {
		RecordID string        `json:"recordId"`
		Column   string        `json:"column"`
		Value    core.RawValue `json:"value"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Column == "" {
		badRequest(w, "missing column")
		return
	}

	result := control.OnCellChange(req.RecordID, req.Column, req.Value)
	if result.Accepted {
		w.Header().Set("HX-Trigger", pendingChangedEvent)
	}
	writeJSON(w, r, http.StatusOK, result)
}

// saveResponse is a settled save batch plus the user message of a failure.
type saveResponse struct {
	core.SaveResult
	Error *core.UserMessage `json:"error,omitempty"`
}

// handleSave submits the control's pending edits as one batch.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Save(r.Context(), chi.URLParam(r, "controlID"))

	var saveErr *core.SaveError
	if err == nil || errors.As(err, &saveErr) {
		w.Header().Set("HX-Trigger", pendingChangedEvent)
	}
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, saveResponse{SaveResult: result})
	case saveErr != nil:
		// The batch settled; the body says which records failed
		msg := core.MapError(err)
		logging.FromContext(r.Context()).Warn("save batch failed",
			"batch_id", saveErr.BatchID,
			"failed", len(saveErr.Failures),
			"attempted", saveErr.Attempted,
		)
		writeJSON(w, r, statusFor(err), saveResponse{SaveResult: result, Error: &msg})
	default:
		s.respondError(w, r, err, 0)
	}
}

// handleDiscardRecord drops the pending edits of one record.
func (s *Server) handleDiscardRecord(w http.ResponseWriter, r *http.Request) {
	discarded, pending, err := s.service.Discard(r.Context(), chi.URLParam(r, "controlID"), chi.URLParam(r, "recordID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("HX-Trigger", pendingChangedEvent)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"discarded": discarded,
		"pending":   pending,
	})
}

// handleBadge renders the dirty badge partial.
func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.ControlInfo(chi.URLParam(r, "controlID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.DirtyBadge(info.ID, info.Pending, info.PendingCells, info.Saving).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render badge", "error", err)
	}
}

// handleListAudit returns audit entries, newest first. Supports control,
// entity, action and limit query filters.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := s.service.Audit().List(core.AuditFilter{
		ControlID: q.Get("control"),
		Entity:    q.Get("entity"),
		Action:    core.AuditAction(q.Get("action")),
		Limit:     parseIntParam(r, "limit", 100),
	})
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"entries": entries})
}

// handleGetAudit returns a single audit entry.
func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.service.Audit().Get(chi.URLParam(r, "auditID"))
	if !ok {
		respondErrorJSON(w, core.UserMessage{
			Message: "Audit entry not found",
			Code:    "AUD001",
		}, http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, entry)
}
