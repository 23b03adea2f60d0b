package core

import (
	"context"
	"testing"

	"staffcore/pkg/domain"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewInMemoryService(NewDefaultRulesEngine(), opts...)
}

func mustTalent(t *testing.T, svc *Service, name string, skills ...string) Talent {
	t.Helper()
	talent, _, err := svc.CreateTalent(context.Background(), Talent{Name: name, Skills: skills})
	if err != nil {
		t.Fatalf("create talent %s: %v", name, err)
	}
	return talent
}

func mustProject(t *testing.T, svc *Service, project Project) Project {
	t.Helper()
	created, _, err := svc.CreateProject(context.Background(), project)
	if err != nil {
		t.Fatalf("create project %s: %v", project.Name, err)
	}
	return created
}

func mustAllocation(t *testing.T, svc *Service, talentID, projectID, start, end string) Allocation {
	t.Helper()
	out, err := svc.CreateAllocation(context.Background(), Allocation{
		TalentID:  talentID,
		ProjectID: projectID,
		StartDate: domain.MustDate(start),
		EndDate:   domain.MustDate(end),
	})
	if err != nil {
		t.Fatalf("create allocation %s..%s: %v", start, end, err)
	}
	return out.Allocation
}

func datePtr(s string) *Date {
	d := domain.MustDate(s)
	return &d
}

func allocationIDs(conflicts []Conflict) []string {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.Allocation.ID)
	}
	return ids
}
