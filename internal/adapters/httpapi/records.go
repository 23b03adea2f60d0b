package httpapi

import (
	"net/http"
	"staffcore/internal/core"

	"github.com/gorilla/mux"
)

type recordResponse[T any] struct {
	Record   T               `json:"record"`
	Warnings []violationBody `json:"warnings"`
}

func created[T any](record T, res core.Result) recordResponse[T] {
	return recordResponse[T]{Record: record, Warnings: violations(res.Warnings())}
}

func (h *Handler) handleListTalents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"talents": nonNil(h.svc.ListTalents())})
}

func (h *Handler) handleGetTalent(w http.ResponseWriter, r *http.Request) {
	talent, ok := h.svc.GetTalent(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "talent not found")
		return
	}
	writeJSON(w, http.StatusOK, talent)
}

func (h *Handler) handleCreateTalent(w http.ResponseWriter, r *http.Request) {
	var talent core.Talent
	if err := decodeBody(r, &talent); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, res, err := h.svc.CreateTalent(r.Context(), talent)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(out, res))
}

func (h *Handler) handleDeleteTalent(w http.ResponseWriter, r *http.Request) {
	summary, _, err := h.svc.DeleteTalent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"projects": nonNil(h.svc.ListProjects())})
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.svc.GetProject(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var project core.Project
	if err := decodeBody(r, &project); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, res, err := h.svc.CreateProject(r.Context(), project)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(out, res))
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	summary, _, err := h.svc.DeleteProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAssignTalent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, _, err := h.svc.AssignTalent(r.Context(), vars["id"], vars["talentId"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleUnassignTalent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, _, err := h.svc.UnassignTalent(r.Context(), vars["id"], vars["talentId"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) handleListAreas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"areas": nonNil(h.svc.ListAreas())})
}

func (h *Handler) handleCreateArea(w http.ResponseWriter, r *http.Request) {
	var area core.Area
	if err := decodeBody(r, &area); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, res, err := h.svc.CreateArea(r.Context(), area)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(out, res))
}

func (h *Handler) handleDeleteArea(w http.ResponseWriter, r *http.Request) {
	summary, _, err := h.svc.DeleteArea(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
