package handler

import (
	"net/http"

	"github.com/mcoot/gamenight/internal/api/request"
	"github.com/mcoot/gamenight/internal/api/response"
	"github.com/mcoot/gamenight/internal/services/fanout"
	"github.com/mcoot/gamenight/internal/services/ledger"
)

// NoticeHandler handles the schedule text, people and broadcast endpoints
type NoticeHandler struct {
	ledger *ledger.Service
	fanout *fanout.Service
}

// NewNoticeHandler creates a new notice handler
func NewNoticeHandler(ledger *ledger.Service, fanout *fanout.Service) *NoticeHandler {
	return &NoticeHandler{ledger: ledger, fanout: fanout}
}

// GetSchedule handles GET /api/v1/schedule
func (h *NoticeHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	text, err := h.ledger.ScheduleText(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ScheduleText{Text: text})
}

// SetSchedule handles PUT /api/v1/schedule
func (h *NoticeHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	var req request.ScheduleTextRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.ledger.SetScheduleText(r.Context(), req.Text); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// ListPeople handles GET /api/v1/people
func (h *NoticeHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := h.ledger.ListPeople(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]response.Person, len(people))
	for i, p := range people {
		out[i] = response.PersonFromModel(p)
	}
	response.JSON(w, http.StatusOK, out)
}

// Broadcast handles POST /api/v1/broadcast
func (h *NoticeHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req request.BroadcastRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	report, err := h.fanout.Broadcast(r.Context(), req.Text)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ReportFromModel(report))
}
