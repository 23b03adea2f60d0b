package httpapi

import (
	"net/http"
	"staffcore/internal/core"
	"staffcore/pkg/domain"

	"github.com/gorilla/mux"
)

func (h *Handler) handleConflicts(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDateParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, core.ErrInvalidRange.Error())
		return
	}
	conflicts, err := h.svc.CheckConflicts(r.Context(), mux.Vars(r)["id"], start, end, r.URL.Query().Get("exclude"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": nonNil(conflicts)})
}

type availabilityResponse struct {
	TalentID   string           `json:"talent_id"`
	Date       domain.Date      `json:"date"`
	Available  bool             `json:"available"`
	Assignment *core.Assignment `json:"assignment,omitempty"`
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	talentID := mux.Vars(r)["id"]
	assignment, busy, err := h.svc.DescribeAssignment(r.Context(), talentID, date)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	resp := availabilityResponse{TalentID: talentID, Date: date, Available: !busy}
	if busy {
		resp.Assignment = &assignment
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := h.svc.Schedule(r.Context(), mux.Vars(r)["id"], from, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (h *Handler) handleAvailableTalents(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	talents, err := h.svc.AvailableTalents(r.Context(), date, r.URL.Query()["skill"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "talents": nonNil(talents)})
}
