package core

import (
	"context"
	"fmt"
	"sort"
	"staffcore/pkg/domain"
	"strings"
)

// ConflictPolicy decides whether overlapping allocations are accepted.
type ConflictPolicy string

const (
	// ConflictPolicyAdvisory commits overlapping allocations and reports the
	// overlaps as warnings.
	ConflictPolicyAdvisory ConflictPolicy = "advisory"
	// ConflictPolicyStrict rejects overlapping allocations.
	ConflictPolicyStrict ConflictPolicy = "strict"
)

// ParseConflictPolicy maps a configuration value to a policy. Empty selects
// the advisory default.
func ParseConflictPolicy(value string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ConflictPolicyAdvisory:
		return ConflictPolicyAdvisory, nil
	case ConflictPolicyStrict:
		return ConflictPolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", value)
	}
}

// AllocationOutcome is the result of creating or updating an allocation.
// Conflicts are computed in the same transaction that wrote the allocation.
type AllocationOutcome struct {
	Allocation Allocation `json:"allocation"`
	Conflicts  []Conflict `json:"conflicts"`
	Result     Result     `json:"-"`
}

// HasConflicts reports whether any overlap was detected.
func (o AllocationOutcome) HasConflicts() bool { return len(o.Conflicts) > 0 }

func validateAllocation(a Allocation) error {
	switch {
	case strings.TrimSpace(a.TalentID) == "":
		return fmt.Errorf("%w: talent_id", ErrMissingField)
	case strings.TrimSpace(a.ProjectID) == "":
		return fmt.Errorf("%w: project_id", ErrMissingField)
	case a.StartDate.IsZero():
		return fmt.Errorf("%w: start_date", ErrMissingField)
	case a.EndDate.IsZero():
		return fmt.Errorf("%w: end_date", ErrMissingField)
	case a.EndDate.Before(a.StartDate):
		return fmt.Errorf("allocation %s: %w", a.Range(), ErrInvalidRange)
	}
	return nil
}

// CreateAllocation persists a new allocation for an existing talent and
// project. Overlaps with the talent's other allocations are returned in the
// outcome; whether they block the write depends on the registered
// allocation_overlap rule.
func (s *Service) CreateAllocation(ctx context.Context, alloc Allocation) (AllocationOutcome, error) {
	if err := validateAllocation(alloc); err != nil {
		return AllocationOutcome{}, err
	}
	var out AllocationOutcome
	res, err := s.run(ctx, "create_allocation", EntityAllocation, ActionCreate, func(tx Transaction) (string, error) {
		created, err := tx.CreateAllocation(alloc)
		if err != nil {
			return "", err
		}
		out.Allocation = created
		out.Conflicts = findConflicts(tx.Snapshot(), created.TalentID, created.Range(), created.ID)
		return created.ID, nil
	})
	out.Result = res
	return out, err
}

// UpdateAllocation applies mutator to an allocation and re-checks it against
// every other allocation of its talent.
func (s *Service) UpdateAllocation(ctx context.Context, id string, mutator func(*Allocation) error) (AllocationOutcome, error) {
	var out AllocationOutcome
	res, err := s.run(ctx, "update_allocation", EntityAllocation, ActionUpdate, func(tx Transaction) (string, error) {
		updated, err := tx.UpdateAllocation(id, func(a *Allocation) error {
			if err := mutator(a); err != nil {
				return err
			}
			return validateAllocation(*a)
		})
		if err != nil {
			return id, err
		}
		out.Allocation = updated
		out.Conflicts = findConflicts(tx.Snapshot(), updated.TalentID, updated.Range(), updated.ID)
		return id, nil
	})
	out.Result = res
	return out, err
}

// DeleteAllocation removes an allocation. Nothing depends on allocations.
func (s *Service) DeleteAllocation(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_allocation", EntityAllocation, ActionDelete, func(tx Transaction) (string, error) {
		return id, tx.DeleteAllocation(id)
	})
}

// DropAllocation creates a single-day allocation from a calendar drop of
// talentID onto projectID at date ("YYYY-MM-DD").
func (s *Service) DropAllocation(ctx context.Context, date, talentID, projectID string) (AllocationOutcome, error) {
	day, err := domain.ParseDate(date)
	if err != nil {
		return AllocationOutcome{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	return s.CreateAllocation(ctx, Allocation{
		TalentID:  talentID,
		ProjectID: projectID,
		StartDate: day,
		EndDate:   day,
	})
}

// GetAllocation returns a committed allocation.
func (s *Service) GetAllocation(id string) (Allocation, bool) {
	return s.store.GetAllocation(id)
}

// ListAllocations returns all committed allocations ordered by id.
func (s *Service) ListAllocations() []Allocation {
	return s.store.ListAllocations()
}

// TalentAllocations returns the allocations of talentID ordered by start date.
func (s *Service) TalentAllocations(ctx context.Context, talentID string) ([]Allocation, error) {
	var out []Allocation
	err := s.view(ctx, func(view TransactionView) error {
		for _, alloc := range view.ListAllocations() {
			if alloc.TalentID == talentID {
				out = append(out, alloc)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return startsBefore(out[i], out[j]) })
	return out, err
}
