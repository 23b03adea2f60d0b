package core

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"staffcore/internal/infra/persistence/memory"
)

func TestDeleteProjectCascadeIsCompleteAndLocal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ada := mustTalent(t, svc, "Ada")
	grace := mustTalent(t, svc, "Grace")
	doomed := mustProject(t, svc, Project{Name: "Doomed"})
	kept := mustProject(t, svc, Project{Name: "Kept"})

	var doomedIDs []string
	for _, r := range [][2]string{{"2024-01-01", "2024-01-05"}, {"2024-02-01", "2024-02-05"}} {
		doomedIDs = append(doomedIDs, mustAllocation(t, svc, ada.ID, doomed.ID, r[0], r[1]).ID)
	}
	doomedIDs = append(doomedIDs, mustAllocation(t, svc, grace.ID, doomed.ID, "2024-01-03", "2024-01-04").ID)
	keptAlloc := mustAllocation(t, svc, ada.ID, kept.ID, "2024-01-03", "2024-01-09")
	keptAlloc2 := mustAllocation(t, svc, grace.ID, kept.ID, "2024-03-01", "2024-03-09")

	summary, _, err := svc.DeleteProject(ctx, doomed.ID)
	if err != nil {
		t.Fatalf("delete project: %v", err)
	}
	sort.Strings(doomedIDs)
	removed := append([]string(nil), summary.AllocationsRemoved...)
	sort.Strings(removed)
	if !reflect.DeepEqual(removed, doomedIDs) {
		t.Fatalf("summary mismatch: got %v want %v", removed, doomedIDs)
	}
	remaining := svc.ListAllocations()
	if len(remaining) != 2 {
		t.Fatalf("expected 2 allocations for the kept project, got %d", len(remaining))
	}
	for _, a := range remaining {
		if a.ProjectID != kept.ID {
			t.Fatalf("allocation %s of deleted project survived", a.ID)
		}
	}
	for _, want := range []Allocation{keptAlloc, keptAlloc2} {
		got, ok := svc.GetAllocation(want.ID)
		if !ok || !reflect.DeepEqual(got, want) {
			t.Fatalf("expected allocation %s untouched, got %+v", want.ID, got)
		}
	}
	if _, ok := svc.GetProject(doomed.ID); ok {
		t.Fatalf("expected project removed")
	}
}

func TestDeleteAreaCascadePreservesOtherFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	backend, _, _ := svc.CreateArea(ctx, Area{Name: "Backend"})
	data, _, _ := svc.CreateArea(ctx, Area{Name: "Data"})
	design, _, _ := svc.CreateArea(ctx, Area{Name: "Design"})

	both, _, err := svc.CreateTalent(ctx, Talent{Name: "Ada", Email: "ada@example.com", Skills: []string{"Go"}, Areas: []string{backend.ID, data.ID}})
	if err != nil {
		t.Fatalf("create talent: %v", err)
	}
	onlyData, _, _ := svc.CreateTalent(ctx, Talent{Name: "Grace", Areas: []string{data.ID}})
	untouched, _, _ := svc.CreateTalent(ctx, Talent{Name: "Linus", Areas: []string{design.ID}})
	before := len(svc.ListTalents())

	summary, _, err := svc.DeleteArea(ctx, data.ID)
	if err != nil {
		t.Fatalf("delete area: %v", err)
	}
	updated := append([]string(nil), summary.TalentsUpdated...)
	sort.Strings(updated)
	want := []string{both.ID, onlyData.ID}
	sort.Strings(want)
	if !reflect.DeepEqual(updated, want) {
		t.Fatalf("unexpected updated talents %v", updated)
	}
	if len(svc.ListTalents()) != before {
		t.Fatalf("talent count changed")
	}
	got, _ := svc.GetTalent(both.ID)
	if !reflect.DeepEqual(got.Areas, []string{backend.ID}) || got.Email != both.Email || !reflect.DeepEqual(got.Skills, both.Skills) || got.Name != both.Name {
		t.Fatalf("unexpected talent after cascade %+v", got)
	}
	got, _ = svc.GetTalent(onlyData.ID)
	if len(got.Areas) != 0 {
		t.Fatalf("expected empty area set, got %v", got.Areas)
	}
	got, _ = svc.GetTalent(untouched.ID)
	if !reflect.DeepEqual(got, untouched) {
		t.Fatalf("expected unrelated talent to be untouched: %+v vs %+v", got, untouched)
	}
	if _, ok := svc.GetArea(data.ID); ok {
		t.Fatalf("expected area removed")
	}
}

func TestDeleteTalentCascade(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ada := mustTalent(t, svc, "Ada")
	grace := mustTalent(t, svc, "Grace")
	project := mustProject(t, svc, Project{Name: "Apollo", AssignedTalents: []string{ada.ID, grace.ID}})
	mustAllocation(t, svc, ada.ID, project.ID, "2024-01-01", "2024-01-02")
	keep := mustAllocation(t, svc, grace.ID, project.ID, "2024-01-01", "2024-01-02")

	summary, _, err := svc.DeleteTalent(ctx, ada.ID)
	if err != nil {
		t.Fatalf("delete talent: %v", err)
	}
	if len(summary.AllocationsRemoved) != 1 || !reflect.DeepEqual(summary.ProjectsUpdated, []string{project.ID}) {
		t.Fatalf("unexpected summary %+v", summary)
	}
	got, _ := svc.GetProject(project.ID)
	if !reflect.DeepEqual(got.AssignedTalents, []string{grace.ID}) {
		t.Fatalf("expected ada unassigned, got %v", got.AssignedTalents)
	}
	if allocs := svc.ListAllocations(); len(allocs) != 1 || allocs[0].ID != keep.ID {
		t.Fatalf("unexpected allocations %+v", allocs)
	}
}

func TestCascadeNotFoundChangesNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	mustAllocation(t, svc, talent.ID, project.ID, "2024-01-01", "2024-01-02")

	if _, _, err := svc.DeleteProject(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := svc.DeleteArea(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := svc.DeleteTalent(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(svc.ListAllocations()) != 1 || len(svc.ListProjects()) != 1 || len(svc.ListTalents()) != 1 {
		t.Fatalf("expected state untouched")
	}
}

// TestDeleteProjectIsAllOrNothing fails the durable write of the cascade and
// checks neither the project nor its allocations were removed.
// newFlakyService returns a service whose durable flush fails while *failing
// is set.
func newFlakyService() (*Service, *bool) {
	failing := new(bool)
	store := memory.NewStore(NewDefaultRulesEngine(), memory.WithFlush(func(context.Context, memory.Snapshot) error {
		if *failing {
			return errors.New("store unavailable")
		}
		return nil
	}))
	return NewService(store), failing
}

func TestDeleteProjectIsAllOrNothing(t *testing.T) {
	svc, failing := newFlakyService()
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	alloc := mustAllocation(t, svc, talent.ID, project.ID, "2024-01-01", "2024-01-02")

	*failing = true
	summary, _, err := svc.DeleteProject(ctx, project.ID)
	if err == nil {
		t.Fatalf("expected flush failure")
	}
	if len(summary.AllocationsRemoved) != 0 {
		t.Fatalf("failed cascade must not report removals: %+v", summary)
	}
	if _, ok := svc.GetProject(project.ID); !ok {
		t.Fatalf("project removed despite failure")
	}
	if _, ok := svc.GetAllocation(alloc.ID); !ok {
		t.Fatalf("allocation removed despite failure")
	}
	*failing = false
	if _, _, err := svc.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(svc.ListAllocations()) != 0 {
		t.Fatalf("expected cascade to apply on retry")
	}
}

func TestDeleteAreaIsAllOrNothing(t *testing.T) {
	svc, failing := newFlakyService()
	ctx := context.Background()
	data, _, err := svc.CreateArea(ctx, Area{Name: "Data"})
	if err != nil {
		t.Fatalf("create area: %v", err)
	}
	backend, _, err := svc.CreateArea(ctx, Area{Name: "Backend"})
	if err != nil {
		t.Fatalf("create area: %v", err)
	}
	ada, _, err := svc.CreateTalent(ctx, Talent{Name: "Ada", Areas: []string{data.ID, backend.ID}})
	if err != nil {
		t.Fatalf("create talent: %v", err)
	}
	grace, _, err := svc.CreateTalent(ctx, Talent{Name: "Grace", Areas: []string{data.ID}})
	if err != nil {
		t.Fatalf("create talent: %v", err)
	}

	*failing = true
	summary, _, err := svc.DeleteArea(ctx, data.ID)
	if err == nil {
		t.Fatalf("expected flush failure")
	}
	if len(summary.TalentsUpdated) != 0 {
		t.Fatalf("failed cascade must not report updates: %+v", summary)
	}
	if _, ok := svc.GetArea(data.ID); !ok {
		t.Fatalf("area removed despite failure")
	}
	for _, want := range []Talent{ada, grace} {
		got, ok := svc.GetTalent(want.ID)
		if !ok || !reflect.DeepEqual(got.Areas, want.Areas) {
			t.Fatalf("talent %s areas changed despite failure: %v want %v", want.Name, got.Areas, want.Areas)
		}
	}

	*failing = false
	if _, _, err := svc.DeleteArea(ctx, data.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got, _ := svc.GetTalent(grace.ID); len(got.Areas) != 0 {
		t.Fatalf("expected cascade to apply on retry, got %v", got.Areas)
	}
}

func TestDeleteTalentIsAllOrNothing(t *testing.T) {
	svc, failing := newFlakyService()
	ctx := context.Background()
	ada := mustTalent(t, svc, "Ada")
	grace := mustTalent(t, svc, "Grace")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	if _, _, err := svc.AssignTalent(ctx, project.ID, ada.ID); err != nil {
		t.Fatalf("assign ada: %v", err)
	}
	if _, _, err := svc.AssignTalent(ctx, project.ID, grace.ID); err != nil {
		t.Fatalf("assign grace: %v", err)
	}
	alloc := mustAllocation(t, svc, ada.ID, project.ID, "2024-01-01", "2024-01-05")
	assigned, _ := svc.GetProject(project.ID)

	*failing = true
	summary, _, err := svc.DeleteTalent(ctx, ada.ID)
	if err == nil {
		t.Fatalf("expected flush failure")
	}
	if len(summary.AllocationsRemoved) != 0 || len(summary.ProjectsUpdated) != 0 {
		t.Fatalf("failed cascade must not report changes: %+v", summary)
	}
	if _, ok := svc.GetTalent(ada.ID); !ok {
		t.Fatalf("talent removed despite failure")
	}
	if _, ok := svc.GetAllocation(alloc.ID); !ok {
		t.Fatalf("allocation removed despite failure")
	}
	got, _ := svc.GetProject(project.ID)
	if !reflect.DeepEqual(got.AssignedTalents, assigned.AssignedTalents) {
		t.Fatalf("assigned talents changed despite failure: %v want %v", got.AssignedTalents, assigned.AssignedTalents)
	}

	*failing = false
	if _, _, err := svc.DeleteTalent(ctx, ada.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ = svc.GetProject(project.ID)
	if !reflect.DeepEqual(got.AssignedTalents, []string{grace.ID}) || len(svc.ListAllocations()) != 0 {
		t.Fatalf("expected cascade to apply on retry, got %v", got.AssignedTalents)
	}
}

func TestStoreGuardsRequireCascade(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	mustAllocation(t, svc, talent.ID, project.ID, "2024-01-01", "2024-01-02")
	_, err := svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteProject(project.ID)
	})
	var referenced ErrReferenced
	if !errors.As(err, &referenced) {
		t.Fatalf("expected raw project delete to be refused, got %v", err)
	}
}
