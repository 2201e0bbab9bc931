package handler

import (
	"net/http"

	"github.com/mcoot/gamenight/internal/api/request"
	"github.com/mcoot/gamenight/internal/api/response"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/fanout"
	"github.com/mcoot/gamenight/internal/services/ledger"
)

var sessionFilters = map[string]model.SessionFilter{
	"":         model.FilterActive,
	"active":   model.FilterActive,
	"archived": model.FilterArchived,
	"all":      model.FilterAll,
}

// SessionHandler handles session endpoints
type SessionHandler struct {
	ledger *ledger.Service
	fanout *fanout.Service
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(ledger *ledger.Service, fanout *fanout.Service) *SessionHandler {
	return &SessionHandler{ledger: ledger, fanout: fanout}
}

// List handles GET /api/v1/sessions?filter=active|archived|all
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := sessionFilters[r.URL.Query().Get("filter")]
	if !ok {
		WriteError(w, NewInvalidRequestError("Filter must be one of active, archived, all"))
		return
	}

	sessions, err := h.ledger.ListSessions(r.Context(), filter)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionsFromModel(sessions))
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	kind, err := model.KindFromLabel(req.Kind)
	if err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.ledger.CreateSession(r.Context(), kind, req.Date)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.SessionFromModel(session))
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.ledger.GetSession(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(session))
}

// Archive handles POST /api/v1/sessions/{id}/archive
func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.ledger.ArchiveSession(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Restore handles POST /api/v1/sessions/{id}/restore
func (h *SessionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err := h.ledger.RestoreSession(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Cancel handles POST /api/v1/sessions/{id}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	removed, report, err := h.fanout.CancelSession(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.CancelResponse{
		Removed: response.IDs(removed),
		Report:  response.ReportFromModel(report),
	})
}

// Participants handles GET /api/v1/sessions/{id}/participants
func (h *SessionHandler) Participants(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	participants, err := h.ledger.Participants(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ParticipantsFromModel(participants))
}

// Remind handles POST /api/v1/sessions/{id}/reminders
func (h *SessionHandler) Remind(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.ReminderRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	var report fanout.Report
	if len(req.PersonIDs) > 0 {
		audience := make([]model.PersonID, len(req.PersonIDs))
		for i, pid := range req.PersonIDs {
			audience[i] = model.PersonID(pid)
		}
		report, err = h.fanout.SendReminderTo(r.Context(), id, audience)
	} else {
		report, err = h.fanout.SendReminder(r.Context(), id, model.AudienceCriterion(req.Audience))
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ReportFromModel(report))
}
