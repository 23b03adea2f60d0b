package core

import (
	"context"
	"fmt"
	"sort"
)

// maxScheduleDays bounds a single Schedule request.
const maxScheduleDays = 366

// AssignmentSource names the kind of commitment that occupies a talent.
type AssignmentSource string

const (
	// SourceAllocation is an explicit allocation row.
	SourceAllocation AssignmentSource = "allocation"
	// SourceProject is membership in a project's assigned_talents.
	SourceProject AssignmentSource = "project"
)

// Assignment explains why a talent is unavailable on a date.
type Assignment struct {
	Source       AssignmentSource `json:"source"`
	ProjectID    string           `json:"project_id"`
	ProjectName  string           `json:"project_name"`
	ProjectColor string           `json:"project_color,omitempty"`
	// AllocationID is empty for project assignments.
	AllocationID string    `json:"allocation_id,omitempty"`
	Window       DateRange `json:"window"`
}

// DayStatus is one row of a talent schedule.
type DayStatus struct {
	Date       Date        `json:"date"`
	Available  bool        `json:"available"`
	Assignment *Assignment `json:"assignment,omitempty"`
}

// allocationOn returns the earliest-starting allocation of talentID covering date.
func allocationOn(view RuleView, talentID string, date Date) (Allocation, bool) {
	var matches []Allocation
	for _, alloc := range view.ListAllocations() {
		if alloc.TalentID == talentID && alloc.Range().Contains(date) {
			matches = append(matches, alloc)
		}
	}
	if len(matches) == 0 {
		return Allocation{}, false
	}
	sort.Slice(matches, func(i, j int) bool { return startsBefore(matches[i], matches[j]) })
	return matches[0], true
}

// projectOn returns the first project (by id) that assigns talentID and whose
// window covers date. Projects without dates never match.
func projectOn(view RuleView, talentID string, date Date) (Project, bool) {
	for _, project := range view.ListProjects() {
		if project.HasTalent(talentID) && project.CoversDate(date) {
			return project, true
		}
	}
	return Project{}, false
}

func describe(view RuleView, talentID string, date Date) (Assignment, bool) {
	if alloc, ok := allocationOn(view, talentID, date); ok {
		a := Assignment{
			Source:       SourceAllocation,
			ProjectID:    alloc.ProjectID,
			AllocationID: alloc.ID,
			Window:       alloc.Range(),
		}
		if project, ok := view.FindProject(alloc.ProjectID); ok {
			a.ProjectName = project.Name
			a.ProjectColor = project.Color
		}
		return a, true
	}
	if project, ok := projectOn(view, talentID, date); ok {
		return Assignment{
			Source:       SourceProject,
			ProjectID:    project.ID,
			ProjectName:  project.Name,
			ProjectColor: project.Color,
			Window:       project.Window(),
		}, true
	}
	return Assignment{}, false
}

// IsAvailable reports whether talentID is free on date: no allocation covers
// the date and no dated project lists the talent over it.
func (s *Service) IsAvailable(ctx context.Context, talentID string, date Date) (bool, error) {
	busy := false
	err := s.view(ctx, func(view TransactionView) error {
		_, busy = describe(view, talentID, date)
		return nil
	})
	return !busy, err
}

// DescribeAssignment returns the commitment occupying talentID on date. An
// allocation takes precedence over a project assignment.
func (s *Service) DescribeAssignment(ctx context.Context, talentID string, date Date) (Assignment, bool, error) {
	var (
		assignment Assignment
		found      bool
	)
	err := s.view(ctx, func(view TransactionView) error {
		assignment, found = describe(view, talentID, date)
		return nil
	})
	return assignment, found, err
}

// Schedule returns one DayStatus per day in [from, to].
func (s *Service) Schedule(ctx context.Context, talentID string, from, to Date) ([]DayStatus, error) {
	window := DateRange{Start: from, End: to}
	if !window.Valid() {
		return nil, fmt.Errorf("schedule %s: %w", window, ErrInvalidRange)
	}
	if window.Days() > maxScheduleDays {
		return nil, fmt.Errorf("schedule spans %d days, limit is %d: %w", window.Days(), maxScheduleDays, ErrRangeTooLong)
	}
	days := make([]DayStatus, 0, window.Days())
	err := s.view(ctx, func(view TransactionView) error {
		for d := from; !d.After(to); d = d.AddDays(1) {
			status := DayStatus{Date: d, Available: true}
			if a, ok := describe(view, talentID, d); ok {
				status.Available = false
				status.Assignment = &a
			}
			days = append(days, status)
		}
		return nil
	})
	return days, err
}

// AvailableTalents lists talents free on date that hold every required skill,
// ordered by name then id.
func (s *Service) AvailableTalents(ctx context.Context, date Date, requiredSkills []string) ([]Talent, error) {
	var out []Talent
	err := s.view(ctx, func(view TransactionView) error {
		for _, talent := range view.ListTalents() {
			if !talent.HasSkills(requiredSkills) {
				continue
			}
			if _, busy := describe(view, talent.ID, date); busy {
				continue
			}
			out = append(out, talent)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}
