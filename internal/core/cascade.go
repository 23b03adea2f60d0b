package core

import (
	"context"
)

// CascadeSummary lists what a cascading delete removed or rewrote.
type CascadeSummary struct {
	Entity             EntityType `json:"entity"`
	ID                 string     `json:"id"`
	AllocationsRemoved []string   `json:"allocations_removed"`
	TalentsUpdated     []string   `json:"talents_updated"`
	ProjectsUpdated    []string   `json:"projects_updated"`
}

// DeleteProject removes a project and every allocation that references it in
// one transaction. Allocations of other projects are untouched.
func (s *Service) DeleteProject(ctx context.Context, id string) (CascadeSummary, Result, error) {
	summary := CascadeSummary{Entity: EntityProject, ID: id}
	res, err := s.run(ctx, "delete_project", EntityProject, ActionDelete, func(tx Transaction) (string, error) {
		if _, ok := tx.FindProject(id); !ok {
			return id, ErrNotFound{Entity: EntityProject, ID: id}
		}
		for _, alloc := range tx.Snapshot().ListAllocations() {
			if alloc.ProjectID != id {
				continue
			}
			if err := tx.DeleteAllocation(alloc.ID); err != nil {
				return id, err
			}
			summary.AllocationsRemoved = append(summary.AllocationsRemoved, alloc.ID)
		}
		return id, tx.DeleteProject(id)
	})
	if err != nil {
		return CascadeSummary{Entity: EntityProject, ID: id}, res, err
	}
	s.colors.Reconcile(s.store.ListProjects())
	return summary, res, nil
}

// DeleteArea removes an area after dropping it from every talent's area set.
// Other memberships and talent fields are preserved.
func (s *Service) DeleteArea(ctx context.Context, id string) (CascadeSummary, Result, error) {
	summary := CascadeSummary{Entity: EntityArea, ID: id}
	res, err := s.run(ctx, "delete_area", EntityArea, ActionDelete, func(tx Transaction) (string, error) {
		if _, ok := tx.FindArea(id); !ok {
			return id, ErrNotFound{Entity: EntityArea, ID: id}
		}
		for _, talent := range tx.Snapshot().ListTalents() {
			if !containsID(talent.Areas, id) {
				continue
			}
			if _, err := tx.UpdateTalent(talent.ID, func(t *Talent) error {
				t.Areas = withoutID(t.Areas, id)
				return nil
			}); err != nil {
				return id, err
			}
			summary.TalentsUpdated = append(summary.TalentsUpdated, talent.ID)
		}
		return id, tx.DeleteArea(id)
	})
	if err != nil {
		return CascadeSummary{Entity: EntityArea, ID: id}, res, err
	}
	return summary, res, nil
}

// DeleteTalent removes a talent, its allocations and its project
// assignments in one transaction.
func (s *Service) DeleteTalent(ctx context.Context, id string) (CascadeSummary, Result, error) {
	summary := CascadeSummary{Entity: EntityTalent, ID: id}
	res, err := s.run(ctx, "delete_talent", EntityTalent, ActionDelete, func(tx Transaction) (string, error) {
		if _, ok := tx.FindTalent(id); !ok {
			return id, ErrNotFound{Entity: EntityTalent, ID: id}
		}
		view := tx.Snapshot()
		for _, alloc := range view.ListAllocations() {
			if alloc.TalentID != id {
				continue
			}
			if err := tx.DeleteAllocation(alloc.ID); err != nil {
				return id, err
			}
			summary.AllocationsRemoved = append(summary.AllocationsRemoved, alloc.ID)
		}
		for _, project := range view.ListProjects() {
			if !project.HasTalent(id) {
				continue
			}
			if _, err := tx.UpdateProject(project.ID, func(p *Project) error {
				p.AssignedTalents = withoutID(p.AssignedTalents, id)
				return nil
			}); err != nil {
				return id, err
			}
			summary.ProjectsUpdated = append(summary.ProjectsUpdated, project.ID)
		}
		return id, tx.DeleteTalent(id)
	})
	if err != nil {
		return CascadeSummary{Entity: EntityTalent, ID: id}, res, err
	}
	return summary, res, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// withoutID returns ids minus every occurrence of id, never nil.
func withoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
