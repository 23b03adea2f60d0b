package httpapi

import (
	"net/http"
	"staffcore/internal/core"
	"staffcore/pkg/domain"

	"github.com/gorilla/mux"
)

type allocationResponse struct {
	core.AllocationOutcome
	Warnings []violationBody `json:"warnings"`
}

func outcomeBody(out core.AllocationOutcome) allocationResponse {
	out.Conflicts = nonNil(out.Conflicts)
	return allocationResponse{AllocationOutcome: out, Warnings: violations(out.Result.Warnings())}
}

type allocationRequest struct {
	TalentID  string      `json:"talent_id"`
	ProjectID string      `json:"project_id"`
	StartDate domain.Date `json:"start_date"`
	EndDate   domain.Date `json:"end_date"`
	Notes     *string     `json:"notes,omitempty"`
}

// allocationPatch carries the fields a PUT may change; absent fields are kept.
type allocationPatch struct {
	TalentID  *string      `json:"talent_id"`
	ProjectID *string      `json:"project_id"`
	StartDate *domain.Date `json:"start_date"`
	EndDate   *domain.Date `json:"end_date"`
	Notes     *string      `json:"notes"`
}

func (p allocationPatch) apply(a *core.Allocation) error {
	if p.TalentID != nil {
		a.TalentID = *p.TalentID
	}
	if p.ProjectID != nil {
		a.ProjectID = *p.ProjectID
	}
	if p.StartDate != nil {
		a.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		a.EndDate = *p.EndDate
	}
	if p.Notes != nil {
		a.Notes = p.Notes
	}
	return nil
}

type dropRequest struct {
	Date      string `json:"date"`
	TalentID  string `json:"talent_id"`
	ProjectID string `json:"project_id"`
}

func (h *Handler) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	if talentID := r.URL.Query().Get("talent_id"); talentID != "" {
		list, err := h.svc.TalentAllocations(r.Context(), talentID)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"allocations": nonNil(list)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allocations": nonNil(h.svc.ListAllocations())})
}

func (h *Handler) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	alloc, ok := h.svc.GetAllocation(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "allocation not found")
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

func (h *Handler) handleCreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.CreateAllocation(r.Context(), core.Allocation{
		TalentID:  req.TalentID,
		ProjectID: req.ProjectID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcomeBody(out))
}

func (h *Handler) handleUpdateAllocation(w http.ResponseWriter, r *http.Request) {
	var patch allocationPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.UpdateAllocation(r.Context(), mux.Vars(r)["id"], patch.apply)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeBody(out))
}

func (h *Handler) handleDeleteAllocation(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.DeleteAllocation(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDropAllocation(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.DropAllocation(r.Context(), req.Date, req.TalentID, req.ProjectID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcomeBody(out))
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
