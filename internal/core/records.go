package core

import (
	"context"
	"fmt"
	"strings"
)

// CreateProject persists a new project. A project without a color is given
// the next free color from the allocator.
func (s *Service) CreateProject(ctx context.Context, project Project) (Project, Result, error) {
	if strings.TrimSpace(project.Name) == "" {
		return Project{}, Result{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		return Project{}, Result{}, fmt.Errorf("project %s: %w", project.Window(), ErrInvalidRange)
	}
	var created Project
	res, err := s.run(ctx, "create_project", EntityProject, ActionCreate, func(tx Transaction) (string, error) {
		s.colors.Reconcile(tx.Snapshot().ListProjects())
		if strings.TrimSpace(project.Color) == "" {
			project.Color = s.colors.Next()
		}
		var err error
		created, err = tx.CreateProject(project)
		return created.ID, err
	})
	if err != nil {
		return Project{}, res, err
	}
	s.colors.Reserve(created.Color)
	return created, res, nil
}

// UpdateProject mutates a project.
func (s *Service) UpdateProject(ctx context.Context, id string, mutator func(*Project) error) (Project, Result, error) {
	var updated Project
	res, err := s.run(ctx, "update_project", EntityProject, ActionUpdate, func(tx Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateProject(id, func(p *Project) error {
			if err := mutator(p); err != nil {
				return err
			}
			if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
				return fmt.Errorf("project %s: %w", p.Window(), ErrInvalidRange)
			}
			return nil
		})
		return id, err
	})
	if err != nil {
		return Project{}, res, err
	}
	s.colors.Reconcile(s.store.ListProjects())
	return updated, res, nil
}

// AssignTalent adds talentID to the project's assigned talents.
func (s *Service) AssignTalent(ctx context.Context, projectID, talentID string) (Project, Result, error) {
	var updated Project
	res, err := s.run(ctx, "assign_talent", EntityProject, ActionUpdate, func(tx Transaction) (string, error) {
		if _, ok := tx.FindTalent(talentID); !ok {
			return projectID, ErrNotFound{Entity: EntityTalent, ID: talentID}
		}
		var err error
		updated, err = tx.UpdateProject(projectID, func(p *Project) error {
			if !containsID(p.AssignedTalents, talentID) {
				p.AssignedTalents = append(p.AssignedTalents, talentID)
			}
			return nil
		})
		return projectID, err
	})
	return updated, res, err
}

// UnassignTalent removes talentID from the project's assigned talents.
func (s *Service) UnassignTalent(ctx context.Context, projectID, talentID string) (Project, Result, error) {
	var updated Project
	res, err := s.run(ctx, "unassign_talent", EntityProject, ActionUpdate, func(tx Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateProject(projectID, func(p *Project) error {
			p.AssignedTalents = withoutID(p.AssignedTalents, talentID)
			return nil
		})
		return projectID, err
	})
	return updated, res, err
}

// GetProject returns a committed project.
func (s *Service) GetProject(id string) (Project, bool) {
	return s.store.GetProject(id)
}

// ListProjects returns all projects and reconciles the color allocator with
// them.
func (s *Service) ListProjects() []Project {
	projects := s.store.ListProjects()
	s.colors.Reconcile(projects)
	return projects
}

// CreateTalent persists a new talent.
func (s *Service) CreateTalent(ctx context.Context, talent Talent) (Talent, Result, error) {
	if strings.TrimSpace(talent.Name) == "" {
		return Talent{}, Result{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	var created Talent
	res, err := s.run(ctx, "create_talent", EntityTalent, ActionCreate, func(tx Transaction) (string, error) {
		var err error
		created, err = tx.CreateTalent(talent)
		return created.ID, err
	})
	return created, res, err
}

// UpdateTalent mutates a talent.
func (s *Service) UpdateTalent(ctx context.Context, id string, mutator func(*Talent) error) (Talent, Result, error) {
	var updated Talent
	res, err := s.run(ctx, "update_talent", EntityTalent, ActionUpdate, func(tx Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateTalent(id, mutator)
		return id, err
	})
	return updated, res, err
}

// GetTalent returns a committed talent.
func (s *Service) GetTalent(id string) (Talent, bool) {
	return s.store.GetTalent(id)
}

// ListTalents returns all talents ordered by id.
func (s *Service) ListTalents() []Talent {
	return s.store.ListTalents()
}

// CreateArea persists a new area.
func (s *Service) CreateArea(ctx context.Context, area Area) (Area, Result, error) {
	if strings.TrimSpace(area.Name) == "" {
		return Area{}, Result{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	var created Area
	res, err := s.run(ctx, "create_area", EntityArea, ActionCreate, func(tx Transaction) (string, error) {
		var err error
		created, err = tx.CreateArea(area)
		return created.ID, err
	})
	return created, res, err
}

// UpdateArea mutates an area.
func (s *Service) UpdateArea(ctx context.Context, id string, mutator func(*Area) error) (Area, Result, error) {
	var updated Area
	res, err := s.run(ctx, "update_area", EntityArea, ActionUpdate, func(tx Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateArea(id, mutator)
		return id, err
	})
	return updated, res, err
}

// GetArea returns a committed area.
func (s *Service) GetArea(id string) (Area, bool) {
	return s.store.GetArea(id)
}

// ListAreas returns all areas ordered by id.
func (s *Service) ListAreas() []Area {
	return s.store.ListAreas()
}

// Overview is every committed record read from one snapshot.
type Overview struct {
	Allocations []Allocation `json:"allocations"`
	Projects    []Project    `json:"projects"`
	Talents     []Talent     `json:"talents"`
	Areas       []Area       `json:"areas"`
}

// Overview reads all four record sets from a single consistent view.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	if err := ctx.Err(); err != nil {
		return Overview{}, err
	}
	var out Overview
	err := s.view(ctx, func(view TransactionView) error {
		out = Overview{
			Allocations: view.ListAllocations(),
			Projects:    view.ListProjects(),
			Talents:     view.ListTalents(),
			Areas:       view.ListAreas(),
		}
		return nil
	})
	return out, err
}
