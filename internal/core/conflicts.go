package core

import (
	"context"
	"sort"
)

// Conflict is an existing allocation that overlaps a candidate range for the
// same talent.
type Conflict struct {
	Allocation  Allocation `json:"allocation"`
	ProjectName string     `json:"project_name"`
}

// findConflicts returns allocations of talentID overlapping window, skipping
// excludeID, ordered by start date then id.
func findConflicts(view RuleView, talentID string, window DateRange, excludeID string) []Conflict {
	var out []Conflict
	for _, alloc := range view.ListAllocations() {
		if alloc.TalentID != talentID || (excludeID != "" && alloc.ID == excludeID) {
			continue
		}
		if !alloc.Range().Overlaps(window) {
			continue
		}
		name := ""
		if project, ok := view.FindProject(alloc.ProjectID); ok {
			name = project.Name
		}
		out = append(out, Conflict{Allocation: alloc, ProjectName: name})
	}
	sortConflicts(out)
	return out
}

// startsBefore orders allocations by start date then id.
func startsBefore(a, b Allocation) bool {
	if c := a.StartDate.Compare(b.StartDate); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

func sortConflicts(conflicts []Conflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		return startsBefore(conflicts[i].Allocation, conflicts[j].Allocation)
	})
}

// CheckConflicts lists allocations of talentID that overlap [start, end].
// excludeAllocationID (may be empty) is ignored regardless of overlap, which
// lets an allocation be re-checked against everything but itself. An unknown
// talent simply has no conflicts.
func (s *Service) CheckConflicts(ctx context.Context, talentID string, start, end Date, excludeAllocationID string) ([]Conflict, error) {
	var conflicts []Conflict
	err := s.view(ctx, func(view TransactionView) error {
		conflicts = findConflicts(view, talentID, DateRange{Start: start, End: end}, excludeAllocationID)
		return nil
	})
	return conflicts, err
}
