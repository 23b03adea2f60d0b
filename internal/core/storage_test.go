package core

import (
	"context"
	"path/filepath"
	"testing"

	"staffcore/internal/blob"
	"staffcore/internal/infra/persistence/blobstore"
	"staffcore/internal/infra/persistence/memory"
	"staffcore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreDrivers(t *testing.T) {
	ctx := context.Background()
	engine := NewDefaultRulesEngine()

	mem, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageMemory}, engine)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := mem.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", mem)
	}
	if err := CloseStore(mem); err != nil {
		t.Fatalf("closing memory store should be a no-op: %v", err)
	}

	path := filepath.Join(t.TempDir(), "staffcore.db")
	lite, err := OpenPersistentStore(ctx, StorageConfig{SQLitePath: path}, engine)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if _, ok := lite.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite to be the default driver, got %T", lite)
	}
	if err := CloseStore(lite); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	snap, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageBlob, Blob: blob.Options{Driver: blob.DriverMemory}}, engine)
	if err != nil {
		t.Fatalf("blob: %v", err)
	}
	if _, ok := snap.(*blobstore.Store); !ok {
		t.Fatalf("expected *blobstore.Store, got %T", snap)
	}

	if _, err := OpenPersistentStore(ctx, StorageConfig{Driver: "mongo"}, engine); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageBlob, Blob: blob.Options{Driver: "ftp"}}, engine); err == nil {
		t.Fatalf("expected blob driver error")
	}
}

// TestServiceOverSQLiteSurvivesRestart runs a cascade against the sqlite
// backend and reopens the database.
func TestServiceOverSQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "staffcore.db")
	store, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := NewService(store)
	area, _, _ := svc.CreateArea(ctx, Area{Name: "Backend"})
	talent, _, err := svc.CreateTalent(ctx, Talent{Name: "Ada", Areas: []string{area.ID}})
	if err != nil {
		t.Fatalf("create talent: %v", err)
	}
	if _, _, err := svc.DeleteArea(ctx, area.ID); err != nil {
		t.Fatalf("delete area: %v", err)
	}
	if err := CloseStore(store); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = CloseStore(reopened) }()
	got, ok := reopened.GetTalent(talent.ID)
	if !ok || len(got.Areas) != 0 {
		t.Fatalf("expected talent without areas after restart, got %+v", got)
	}
	if len(reopened.ListAreas()) != 0 {
		t.Fatalf("expected area gone after restart")
	}
}

func TestReloadStorePicksUpOtherWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	cfg := StorageConfig{Driver: StorageSQLite, SQLitePath: path}
	first, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	defer func() { _ = CloseStore(first) }()
	second, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	defer func() { _ = CloseStore(second) }()

	if _, _, err := NewService(first).CreateTalent(ctx, Talent{Name: "Ada"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(second.ListTalents()) != 0 {
		t.Fatalf("second store should not see the write before reloading")
	}
	if err := ReloadStore(ctx, second); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(second.ListTalents()) != 1 {
		t.Fatalf("expected reloaded store to hold the new talent")
	}
	if err := ReloadStore(ctx, memory.NewStore(NewDefaultRulesEngine())); err != nil {
		t.Fatalf("memory reload should be a no-op: %v", err)
	}
}

func TestServicesSharingSQLiteKeepEveryCommit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	cfg := StorageConfig{Driver: StorageSQLite, SQLitePath: path}
	open := func() PersistentStore {
		t.Helper()
		store, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { _ = CloseStore(store) })
		return store
	}
	first, second := NewService(open()), NewService(open())

	ada, _, err := first.CreateTalent(ctx, Talent{Name: "Ada"})
	if err != nil {
		t.Fatalf("create ada: %v", err)
	}
	if _, _, err := second.CreateTalent(ctx, Talent{Name: "Grace"}); err != nil {
		t.Fatalf("create grace: %v", err)
	}
	project, _, err := first.CreateProject(ctx, Project{Name: "Apollo"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	mustAllocation(t, first, ada.ID, project.ID, "2024-03-04", "2024-03-08")
	if _, _, err := second.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("cascade from the other process: %v", err)
	}
	if _, _, err := first.CreateArea(ctx, Area{Name: "Backend"}); err != nil {
		t.Fatalf("create area: %v", err)
	}

	durable := open()
	if got := len(durable.ListTalents()); got != 2 {
		t.Fatalf("expected 2 durable talents, got %d", got)
	}
	if len(durable.ListProjects()) != 0 || len(durable.ListAllocations()) != 0 {
		t.Fatalf("expected the cascade to survive a later write from the other process")
	}
	if len(durable.ListAreas()) != 1 {
		t.Fatalf("expected the later area to be persisted")
	}
}
