package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"staffcore/pkg/domain"
	"testing"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := newTestStore(t, path)
	var talentID, projectID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		area, err := tx.CreateArea(domain.Area{Name: "Data"})
		if err != nil {
			return err
		}
		talent, err := tx.CreateTalent(domain.Talent{Name: "Ada", Areas: []string{area.ID}})
		if err != nil {
			return err
		}
		start := domain.MustDate("2024-03-01")
		project, err := tx.CreateProject(domain.Project{Name: "Apollo", Color: "#7aa2f7", StartDate: &start})
		if err != nil {
			return err
		}
		talentID, projectID = talent.ID, project.ID
		_, err = tx.CreateAllocation(domain.Allocation{
			TalentID:  talent.ID,
			ProjectID: project.ID,
			StartDate: domain.MustDate("2024-03-04"),
			EndDate:   domain.MustDate("2024-03-08"),
		})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded := newTestStore(t, path)
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListTalents()); got != 1 {
		t.Fatalf("expected 1 talent, got %d", got)
	}
	project, ok := reloaded.GetProject(projectID)
	if !ok || project.StartDate == nil || project.StartDate.String() != "2024-03-01" {
		t.Fatalf("expected project window to survive reload, got %+v", project)
	}
	allocs := reloaded.ListAllocations()
	if len(allocs) != 1 || allocs[0].TalentID != talentID || allocs[0].EndDate.String() != "2024-03-08" {
		t.Fatalf("unexpected allocations after reload: %+v", allocs)
	}
}

func TestSQLiteStoreFlushFailureDoesNotCommit(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "state.db"))
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateArea(domain.Area{Name: "Lost"})
		return err
	})
	if err == nil {
		t.Fatalf("expected flush error on closed database")
	}
	if len(store.ListAreas()) != 0 {
		t.Fatalf("expected in-memory state to stay unchanged after a failed flush")
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "nested", "state.db"))
	t.Cleanup(func() { _ = store.Close() })
	var name string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", "state").Scan(&name); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if name != "state" {
		t.Fatalf("expected state table, got %s", name)
	}
}

func createTalent(t *testing.T, store *Store, name string) {
	t.Helper()
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateTalent(domain.Talent{Name: name})
		return err
	}); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
}

func TestSQLiteStoresSharingAFileKeepEveryCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first := newTestStore(t, path)
	t.Cleanup(func() { _ = first.Close() })
	second := newTestStore(t, path)
	t.Cleanup(func() { _ = second.Close() })

	createTalent(t, first, "Ada")
	createTalent(t, second, "Grace")
	if got := len(second.ListTalents()); got != 2 {
		t.Fatalf("expected second store to see both talents, got %d", got)
	}

	fresh := newTestStore(t, path)
	t.Cleanup(func() { _ = fresh.Close() })
	if got := len(fresh.ListTalents()); got != 2 {
		t.Fatalf("expected 2 durable talents after two writers, got %d", got)
	}
}

func TestSQLiteStoreRejectsStaleFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first := newTestStore(t, path)
	t.Cleanup(func() { _ = first.Close() })
	second := newTestStore(t, path)
	t.Cleanup(func() { _ = second.Close() })

	_, err := second.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		createTalent(t, first, "Ada")
		_, err := tx.CreateTalent(domain.Talent{Name: "Grace"})
		return err
	})
	if !errors.Is(err, domain.ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}
	talents := second.ListTalents()
	if len(talents) != 1 || talents[0].Name != "Ada" {
		t.Fatalf("expected stale store to reload the other commit, got %+v", talents)
	}

	createTalent(t, second, "Grace")
	fresh := newTestStore(t, path)
	t.Cleanup(func() { _ = fresh.Close() })
	if got := len(fresh.ListTalents()); got != 2 {
		t.Fatalf("expected retry to keep both talents, got %d", got)
	}
}

func TestSQLiteReloadIsNoopWhenUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first := newTestStore(t, path)
	t.Cleanup(func() { _ = first.Close() })
	second := newTestStore(t, path)
	t.Cleanup(func() { _ = second.Close() })

	createTalent(t, second, "Grace")
	if err := second.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(second.ListTalents()); got != 1 {
		t.Fatalf("expected own commit to survive reload, got %d", got)
	}
	if err := first.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(first.ListTalents()); got != 1 {
		t.Fatalf("expected reload to pick up the other commit, got %d", got)
	}
}
