package domain

import (
	"context"
	"errors"
)

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateTalent(Talent) (Talent, error)
	UpdateTalent(id string, mutator func(*Talent) error) (Talent, error)
	DeleteTalent(id string) error
	CreateArea(Area) (Area, error)
	UpdateArea(id string, mutator func(*Area) error) (Area, error)
	DeleteArea(id string) error
	CreateProject(Project) (Project, error)
	UpdateProject(id string, mutator func(*Project) error) (Project, error)
	DeleteProject(id string) error
	CreateAllocation(Allocation) (Allocation, error)
	UpdateAllocation(id string, mutator func(*Allocation) error) (Allocation, error)
	DeleteAllocation(id string) error
	FindTalent(id string) (Talent, bool)
	FindProject(id string) (Project, bool)
	FindArea(id string) (Area, bool)
	FindAllocation(id string) (Allocation, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// engine queries.
type TransactionView interface {
	RuleView
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTalent(id string) (Talent, bool)
	ListTalents() []Talent
	GetProject(id string) (Project, bool)
	ListProjects() []Project
	GetArea(id string) (Area, bool)
	ListAreas() []Area
	GetAllocation(id string) (Allocation, bool)
	ListAllocations() []Allocation
}

// ErrStaleState is returned by a durable flush when another writer committed
// after this process last loaded the state. The store reloads before
// returning it, so the operation can be retried.
var ErrStaleState = errors.New("state changed by another writer, retry")

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return string(e.Entity) + " " + e.ID + " not found"
}

// ErrReferenced is returned when deleting a record that other records still
// depend on.
type ErrReferenced struct {
	Entity      EntityType
	ID          string
	Dependent   EntityType
	DependentID string
}

func (e ErrReferenced) Error() string {
	return string(e.Entity) + " " + e.ID + " still referenced by " + string(e.Dependent) + " " + e.DependentID
}
