package core

import (
	"context"
	"errors"
	"testing"

	"staffcore/pkg/domain"
)

func TestCreateAllocationValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	start, end := domain.MustDate("2024-01-01"), domain.MustDate("2024-01-02")

	cases := []struct {
		name  string
		alloc Allocation
		want  error
	}{
		{"missing talent", Allocation{ProjectID: project.ID, StartDate: start, EndDate: end}, ErrMissingField},
		{"missing project", Allocation{TalentID: talent.ID, StartDate: start, EndDate: end}, ErrMissingField},
		{"missing start", Allocation{TalentID: talent.ID, ProjectID: project.ID, EndDate: end}, ErrMissingField},
		{"missing end", Allocation{TalentID: talent.ID, ProjectID: project.ID, StartDate: start}, ErrMissingField},
		{"inverted", Allocation{TalentID: talent.ID, ProjectID: project.ID, StartDate: end, EndDate: start}, ErrInvalidRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateAllocation(ctx, tc.alloc); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	_, err := svc.CreateAllocation(ctx, Allocation{TalentID: "ghost", ProjectID: project.ID, StartDate: start, EndDate: end})
	if !IsNotFound(err) {
		t.Fatalf("expected not found for unknown talent, got %v", err)
	}
	if len(svc.ListAllocations()) != 0 {
		t.Fatalf("expected no allocation persisted")
	}
}

func TestCreateAllocationAdvisoryConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	first := mustAllocation(t, svc, talent.ID, project.ID, "2024-01-01", "2024-01-10")

	out, err := svc.CreateAllocation(ctx, Allocation{
		TalentID:  talent.ID,
		ProjectID: project.ID,
		StartDate: domain.MustDate("2024-01-10"),
		EndDate:   domain.MustDate("2024-01-12"),
	})
	if err != nil {
		t.Fatalf("advisory create should succeed: %v", err)
	}
	if !out.HasConflicts() || out.Conflicts[0].Allocation.ID != first.ID {
		t.Fatalf("expected conflict with first allocation, got %+v", out.Conflicts)
	}
	warnings := out.Result.Warnings()
	if len(warnings) != 1 || warnings[0].Rule != "allocation_overlap" || warnings[0].EntityID != out.Allocation.ID {
		t.Fatalf("expected one overlap warning, got %+v", out.Result.Violations)
	}
	if len(svc.ListAllocations()) != 2 {
		t.Fatalf("expected double booking to be committed")
	}
}

func TestCreateAllocationStrictPolicyRejectsOverlap(t *testing.T) {
	svc := NewInMemoryService(NewPolicyRulesEngine(ConflictPolicyStrict))
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	mustAllocation(t, svc, talent.ID, project.ID, "2024-01-01", "2024-01-10")

	out, err := svc.CreateAllocation(ctx, Allocation{
		TalentID:  talent.ID,
		ProjectID: project.ID,
		StartDate: domain.MustDate("2024-01-05"),
		EndDate:   domain.MustDate("2024-01-06"),
	})
	var violation RuleViolationError
	if !AsRuleViolation(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if violation.Result.Violations[0].Rule != "allocation_overlap" {
		t.Fatalf("unexpected violation %+v", violation.Result.Violations)
	}
	if len(out.Conflicts) != 1 {
		t.Fatalf("expected conflicts reported alongside the rejection")
	}
	if len(svc.ListAllocations()) != 1 {
		t.Fatalf("expected rejected allocation not to be stored")
	}
	// a disjoint allocation is still accepted
	mustAllocation(t, svc, talent.ID, project.ID, "2024-01-11", "2024-01-12")
}

func TestUpdateAllocationExcludesItself(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	alloc := mustAllocation(t, svc, talent.ID, project.ID, "2024-01-01", "2024-01-05")
	other := mustAllocation(t, svc, talent.ID, project.ID, "2024-01-20", "2024-01-25")

	out, err := svc.UpdateAllocation(ctx, alloc.ID, func(a *Allocation) error {
		a.EndDate = domain.MustDate("2024-01-06")
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.HasConflicts() {
		t.Fatalf("allocation must not conflict with itself: %+v", out.Conflicts)
	}
	out, err = svc.UpdateAllocation(ctx, alloc.ID, func(a *Allocation) error {
		a.EndDate = domain.MustDate("2024-01-21")
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(out.Conflicts) != 1 || out.Conflicts[0].Allocation.ID != other.ID {
		t.Fatalf("expected conflict with other allocation, got %+v", out.Conflicts)
	}
	if _, err := svc.UpdateAllocation(ctx, alloc.ID, func(a *Allocation) error {
		a.StartDate = domain.MustDate("2024-02-01")
		return nil
	}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected invalid range on update, got %v", err)
	}
	stored, _ := svc.GetAllocation(alloc.ID)
	if stored.EndDate.String() != "2024-01-21" || stored.StartDate.String() != "2024-01-01" {
		t.Fatalf("expected failed update to leave record unchanged, got %+v", stored)
	}
	if _, err := svc.UpdateAllocation(ctx, "missing", func(*Allocation) error { return nil }); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDropAllocationCreatesSingleDay(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})

	out, err := svc.DropAllocation(ctx, "2024-03-15", talent.ID, project.ID)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if out.Allocation.StartDate.String() != "2024-03-15" || !out.Allocation.StartDate.Equal(out.Allocation.EndDate) {
		t.Fatalf("expected single day allocation, got %+v", out.Allocation)
	}
	if _, err := svc.DropAllocation(ctx, "15/03/2024", talent.ID, project.ID); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for malformed date, got %v", err)
	}
	if _, err := svc.DeleteAllocation(ctx, out.Allocation.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.DeleteAllocation(ctx, out.Allocation.ID); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestAllocationRangeRuleGuardsStoreWrites(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	_, err := svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateAllocation(Allocation{
			TalentID:  talent.ID,
			ProjectID: project.ID,
			StartDate: domain.MustDate("2024-01-05"),
			EndDate:   domain.MustDate("2024-01-01"),
		})
		return err
	})
	var violation RuleViolationError
	if !AsRuleViolation(err, &violation) || violation.Result.Violations[0].Rule != "allocation_range" {
		t.Fatalf("expected allocation_range violation, got %v", err)
	}
}

func TestTalentAllocationsOrdered(t *testing.T) {
	svc := newTestService(t)
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	b := mustAllocation(t, svc, talent.ID, project.ID, "2024-02-01", "2024-02-02")
	a := mustAllocation(t, svc, talent.ID, project.ID, "2024-01-01", "2024-01-02")
	got, err := svc.TalentAllocations(context.Background(), talent.ID)
	if err != nil || len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("unexpected allocations %+v (%v)", got, err)
	}
}

func TestParseConflictPolicy(t *testing.T) {
	for in, want := range map[string]ConflictPolicy{"": ConflictPolicyAdvisory, "Advisory": ConflictPolicyAdvisory, " strict ": ConflictPolicyStrict} {
		got, err := ParseConflictPolicy(in)
		if err != nil || got != want {
			t.Fatalf("parse %q: got %q %v", in, got, err)
		}
	}
	if _, err := ParseConflictPolicy("lenient"); err == nil {
		t.Fatalf("expected unknown policy error")
	}
}
