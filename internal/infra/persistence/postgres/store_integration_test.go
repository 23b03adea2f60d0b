//go:build integration

package postgres

import (
	"context"
	"fmt"
	"staffcore/pkg/domain"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a disposable Postgres container and returns its DSN.
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "staffcore",
			"POSTGRES_PASSWORD": "staffcore",
			"POSTGRES_DB":       "staffcore",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Postgres container: %v", err)
		}
	})

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}
	return fmt.Sprintf("postgres://staffcore:staffcore@%s:%s/staffcore?sslmode=disable", host, port.Port())
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := setupPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewStore(ctx, dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	var allocationID string
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		talent, err := tx.CreateTalent(domain.Talent{Name: "Ada"})
		if err != nil {
			return err
		}
		project, err := tx.CreateProject(domain.Project{Name: "Apollo", Color: "#7aa2f7"})
		if err != nil {
			return err
		}
		alloc, err := tx.CreateAllocation(domain.Allocation{
			TalentID:  talent.ID,
			ProjectID: project.ID,
			StartDate: domain.MustDate("2024-01-01"),
			EndDate:   domain.MustDate("2024-01-05"),
		})
		allocationID = alloc.ID
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	_ = store.Close()

	reopened, err := NewStore(ctx, dsn, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, ok := reopened.GetAllocation(allocationID)
	if !ok || got.StartDate.String() != "2024-01-01" {
		t.Fatalf("expected allocation to survive reopen, got %+v", got)
	}
}
