package core

import (
	"context"
	"testing"

	"staffcore/pkg/domain"
)

func TestProjectAssignmentScenario(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	t2 := mustTalent(t, svc, "T2")
	mustProject(t, svc, Project{
		Name:            "P2",
		StartDate:       datePtr("2024-02-01"),
		EndDate:         datePtr("2024-02-10"),
		AssignedTalents: []string{t2.ID},
	})
	if ok, err := svc.IsAvailable(ctx, t2.ID, domain.MustDate("2024-02-05")); err != nil || ok {
		t.Fatalf("expected T2 busy on 2024-02-05: %v %v", ok, err)
	}
	if ok, err := svc.IsAvailable(ctx, t2.ID, domain.MustDate("2024-02-15")); err != nil || !ok {
		t.Fatalf("expected T2 free on 2024-02-15: %v %v", ok, err)
	}
	a, found, err := svc.DescribeAssignment(ctx, t2.ID, domain.MustDate("2024-02-10"))
	if err != nil || !found {
		t.Fatalf("expected assignment on the window end: %v", err)
	}
	if a.Source != SourceProject || a.ProjectName != "P2" || a.AllocationID != "" {
		t.Fatalf("unexpected assignment %+v", a)
	}
}

func TestUndatedProjectNeverBlocks(t *testing.T) {
	svc := newTestService(t)
	talent := mustTalent(t, svc, "Ada")
	mustProject(t, svc, Project{Name: "Backlog", AssignedTalents: []string{talent.ID}})
	for _, day := range []string{"1999-01-01", "2024-06-15", "2099-12-31"} {
		if ok, _ := svc.IsAvailable(context.Background(), talent.ID, domain.MustDate(day)); !ok {
			t.Fatalf("expected undated project not to block %s", day)
		}
	}
}

func TestOpenEndedProjectWindows(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	mustProject(t, svc, Project{Name: "From March", StartDate: datePtr("2024-03-01"), AssignedTalents: []string{talent.ID}})
	other := mustTalent(t, svc, "Grace")
	mustProject(t, svc, Project{Name: "Until March", EndDate: datePtr("2024-03-01"), AssignedTalents: []string{other.ID}})

	cases := []struct {
		talent string
		day    string
		free   bool
	}{
		{talent.ID, "2024-02-29", true},
		{talent.ID, "2024-03-01", false},
		{talent.ID, "2030-01-01", false},
		{other.ID, "2020-01-01", false},
		{other.ID, "2024-03-01", false},
		{other.ID, "2024-03-02", true},
	}
	for _, tc := range cases {
		got, err := svc.IsAvailable(ctx, tc.talent, domain.MustDate(tc.day))
		if err != nil {
			t.Fatalf("is available: %v", err)
		}
		if got != tc.free {
			t.Fatalf("talent %s on %s: got available=%v want %v", tc.talent, tc.day, got, tc.free)
		}
	}
}

func TestDescribeAssignmentPrefersAllocation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	talent := mustTalent(t, svc, "Ada")
	assigned := mustProject(t, svc, Project{
		Name:            "Assigned",
		StartDate:       datePtr("2024-04-01"),
		EndDate:         datePtr("2024-04-30"),
		AssignedTalents: []string{talent.ID},
	})
	booked := mustProject(t, svc, Project{Name: "Booked"})
	alloc := mustAllocation(t, svc, talent.ID, booked.ID, "2024-04-10", "2024-04-12")

	a, found, err := svc.DescribeAssignment(ctx, talent.ID, domain.MustDate("2024-04-11"))
	if err != nil || !found {
		t.Fatalf("describe: %v", err)
	}
	if a.Source != SourceAllocation || a.AllocationID != alloc.ID || a.ProjectName != "Booked" || a.ProjectColor != booked.Color {
		t.Fatalf("expected allocation to win, got %+v", a)
	}
	a, _, _ = svc.DescribeAssignment(ctx, talent.ID, domain.MustDate("2024-04-20"))
	if a.Source != SourceProject || a.ProjectID != assigned.ID {
		t.Fatalf("expected project assignment outside the allocation, got %+v", a)
	}
	if _, found, _ := svc.DescribeAssignment(ctx, talent.ID, domain.MustDate("2024-05-01")); found {
		t.Fatalf("expected no assignment after the window")
	}
}

// TestAvailabilityIsNegatedUnionOfSources verifies IsAvailable against both
// sources evaluated independently from the raw records.
func TestAvailabilityIsNegatedUnionOfSources(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ada := mustTalent(t, svc, "Ada")
	grace := mustTalent(t, svc, "Grace")
	linus := mustTalent(t, svc, "Linus")
	p1 := mustProject(t, svc, Project{Name: "P1", StartDate: datePtr("2024-01-10"), EndDate: datePtr("2024-01-20"), AssignedTalents: []string{ada.ID, grace.ID}})
	mustProject(t, svc, Project{Name: "P2", StartDate: datePtr("2024-01-25"), AssignedTalents: []string{grace.ID}})
	mustProject(t, svc, Project{Name: "P3", AssignedTalents: []string{linus.ID}})
	mustAllocation(t, svc, ada.ID, p1.ID, "2024-01-01", "2024-01-03")
	mustAllocation(t, svc, linus.ID, p1.ID, "2024-01-15", "2024-01-16")
	mustAllocation(t, svc, grace.ID, p1.ID, "2024-01-18", "2024-01-22")

	allocs := svc.ListAllocations()
	projects := svc.ListProjects()
	for _, talent := range []Talent{ada, grace, linus} {
		for day := 1; day <= 31; day++ {
			date := domain.MustDate(jan(day))
			allocMatch := false
			for _, a := range allocs {
				if a.TalentID == talent.ID && !a.StartDate.After(date) && !a.EndDate.Before(date) {
					allocMatch = true
				}
			}
			projectMatch := false
			for _, p := range projects {
				if !p.HasTalent(talent.ID) || (p.StartDate == nil && p.EndDate == nil) {
					continue
				}
				if (p.StartDate == nil || !p.StartDate.After(date)) && (p.EndDate == nil || !p.EndDate.Before(date)) {
					projectMatch = true
				}
			}
			got, err := svc.IsAvailable(ctx, talent.ID, date)
			if err != nil {
				t.Fatalf("is available: %v", err)
			}
			if want := !(allocMatch || projectMatch); got != want {
				t.Fatalf("%s on %s: got %v want %v", talent.Name, date, got, want)
			}
		}
	}
}

func TestScheduleAndAvailableTalents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ada := mustTalent(t, svc, "Ada", "Go", "Postgres")
	grace := mustTalent(t, svc, "Grace", "go")
	mustTalent(t, svc, "Linus", "C")
	project := mustProject(t, svc, Project{Name: "Apollo"})
	mustAllocation(t, svc, ada.ID, project.ID, "2024-01-02", "2024-01-03")

	days, err := svc.Schedule(ctx, ada.ID, domain.MustDate("2024-01-01"), domain.MustDate("2024-01-04"))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(days) != 4 {
		t.Fatalf("expected 4 days, got %d", len(days))
	}
	pattern := []bool{true, false, false, true}
	for i, day := range days {
		if day.Available != pattern[i] {
			t.Fatalf("day %s: got available=%v", day.Date, day.Available)
		}
		if !day.Available && (day.Assignment == nil || day.Assignment.ProjectID != project.ID) {
			t.Fatalf("expected assignment details on %s", day.Date)
		}
	}
	if _, err := svc.Schedule(ctx, ada.ID, domain.MustDate("2024-01-04"), domain.MustDate("2024-01-01")); err == nil {
		t.Fatalf("expected inverted schedule range to fail")
	}
	if _, err := svc.Schedule(ctx, ada.ID, domain.MustDate("2024-01-01"), domain.MustDate("2026-01-01")); err == nil {
		t.Fatalf("expected oversized schedule to fail")
	}

	free, err := svc.AvailableTalents(ctx, domain.MustDate("2024-01-02"), []string{" GO "})
	if err != nil {
		t.Fatalf("available talents: %v", err)
	}
	if len(free) != 1 || free[0].ID != grace.ID {
		t.Fatalf("expected only Grace, got %+v", free)
	}
	free, _ = svc.AvailableTalents(ctx, domain.MustDate("2024-01-05"), nil)
	if len(free) != 3 || free[0].Name != "Ada" || free[2].Name != "Linus" {
		t.Fatalf("expected everyone sorted by name, got %+v", free)
	}
}
