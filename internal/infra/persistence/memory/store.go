// Package memory provides an in-memory implementation of the core persistence
// store used for tests, local mode, and as the transactional engine behind
// the durable snapshot backends.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"staffcore/pkg/domain"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Talent aliases domain.Talent for in-memory persistence operations.
	Talent = domain.Talent
	// Area aliases domain.Area.
	Area = domain.Area
	// Project aliases domain.Project.
	Project = domain.Project
	// Allocation aliases domain.Allocation.
	Allocation = domain.Allocation
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	talents     map[string]Talent
	areas       map[string]Area
	projects    map[string]Project
	allocations map[string]Allocation
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Talents     map[string]Talent     `json:"talents" cbor:"talents"`
	Areas       map[string]Area       `json:"areas" cbor:"areas"`
	Projects    map[string]Project    `json:"projects" cbor:"projects"`
	Allocations map[string]Allocation `json:"allocations" cbor:"allocations"`
}

func newMemoryState() memoryState {
	return memoryState{
		talents:     make(map[string]Talent),
		areas:       make(map[string]Area),
		projects:    make(map[string]Project),
		allocations: make(map[string]Allocation),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Talents:     make(map[string]Talent, len(state.talents)),
		Areas:       make(map[string]Area, len(state.areas)),
		Projects:    make(map[string]Project, len(state.projects)),
		Allocations: make(map[string]Allocation, len(state.allocations)),
	}
	for k, v := range state.talents {
		s.Talents[k] = cloneTalent(v)
	}
	for k, v := range state.areas {
		s.Areas[k] = v
	}
	for k, v := range state.projects {
		s.Projects[k] = cloneProject(v)
	}
	for k, v := range state.allocations {
		s.Allocations[k] = cloneAllocation(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Talents {
		state.talents[k] = cloneTalent(v)
	}
	for k, v := range s.Areas {
		state.areas[k] = v
	}
	for k, v := range s.Projects {
		state.projects[k] = cloneProject(v)
	}
	for k, v := range s.Allocations {
		state.allocations[k] = cloneAllocation(v)
	}
	return state
}

// normalizeSnapshot repairs snapshots written by older releases or edited by
// hand: membership sets are deduplicated, dangling references are dropped and
// allocations pointing at missing talents or projects are discarded.
func normalizeSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Talents == nil {
		snapshot.Talents = map[string]Talent{}
	}
	if snapshot.Areas == nil {
		snapshot.Areas = map[string]Area{}
	}
	if snapshot.Projects == nil {
		snapshot.Projects = map[string]Project{}
	}
	if snapshot.Allocations == nil {
		snapshot.Allocations = map[string]Allocation{}
	}

	areaExists := func(id string) bool {
		_, ok := snapshot.Areas[id]
		return ok
	}
	talentExists := func(id string) bool {
		_, ok := snapshot.Talents[id]
		return ok
	}

	for id, area := range snapshot.Areas {
		area.ID = id
		snapshot.Areas[id] = area
	}

	for id, talent := range snapshot.Talents {
		talent.ID = id
		if filtered, changed := filterIDs(talent.Areas, areaExists); changed {
			talent.Areas = filtered
		}
		if talent.Areas == nil {
			talent.Areas = []string{}
		}
		if talent.Skills == nil {
			talent.Skills = []string{}
		}
		snapshot.Talents[id] = talent
	}

	for id, project := range snapshot.Projects {
		project.ID = id
		if filtered, changed := filterIDs(project.AssignedTalents, talentExists); changed {
			project.AssignedTalents = filtered
		}
		if project.AssignedTalents == nil {
			project.AssignedTalents = []string{}
		}
		if project.RequiredSkills == nil {
			project.RequiredSkills = []string{}
		}
		if project.Status == "" || !project.Status.Valid() {
			project.Status = domain.ProjectStatusUpcoming
		}
		snapshot.Projects[id] = project
	}

	for id, allocation := range snapshot.Allocations {
		if _, ok := snapshot.Talents[allocation.TalentID]; !ok {
			delete(snapshot.Allocations, id)
			continue
		}
		if _, ok := snapshot.Projects[allocation.ProjectID]; !ok {
			delete(snapshot.Allocations, id)
			continue
		}
		allocation.ID = id
		snapshot.Allocations[id] = allocation
	}

	return snapshot
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(snapshotFromMemoryState(s))
}

func cloneTalent(t Talent) Talent {
	cp := t
	cp.Skills = cloneStrings(t.Skills)
	cp.Areas = cloneStrings(t.Areas)
	return cp
}

func cloneProject(p Project) Project {
	cp := p
	cp.AssignedTalents = cloneStrings(p.AssignedTalents)
	cp.RequiredSkills = cloneStrings(p.RequiredSkills)
	if p.StartDate != nil {
		d := *p.StartDate
		cp.StartDate = &d
	}
	if p.EndDate != nil {
		d := *p.EndDate
		cp.EndDate = &d
	}
	if p.ClientID != nil {
		c := *p.ClientID
		cp.ClientID = &c
	}
	if p.ReimbursementRate != nil {
		r := *p.ReimbursementRate
		cp.ReimbursementRate = &r
	}
	return cp
}

func cloneAllocation(a Allocation) Allocation {
	cp := a
	if a.Notes != nil {
		n := *a.Notes
		cp.Notes = &n
	}
	return cp
}

func cloneStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string{}, values...)
}

func containsString(values []string, id string) bool {
	for _, existing := range values {
		if existing == id {
			return true
		}
	}
	return false
}

func dedupeStrings(values []string) []string {
	if len(values) <= 1 {
		return cloneStrings(values)
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func removeString(values []string, id string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func filterIDs(values []string, exists func(string) bool) ([]string, bool) {
	if len(values) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	changed := false
	for _, v := range values {
		if _, ok := seen[v]; ok {
			changed = true
			continue
		}
		seen[v] = struct{}{}
		if !exists(v) {
			changed = true
			continue
		}
		out = append(out, v)
	}
	if !changed && len(out) == len(values) {
		return values, false
	}
	return out, true
}

// sortedValues returns cloned map values ordered by key so listings are stable.
func sortedValues[T any](m map[string]T, clone func(T) T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, clone(m[k]))
	}
	return out
}

func identity[T any](v T) T { return v }

// FlushFunc persists a committed snapshot to durable storage. It runs while
// the store lock is held and before the in-memory state is swapped, so a
// failed flush leaves the store unchanged.
type FlushFunc func(ctx context.Context, snapshot Snapshot) error

// SyncFunc reports the durable state when another writer committed since this
// store last loaded or flushed. changed is false when memory is current. It
// runs while the store lock is held.
type SyncFunc func(ctx context.Context) (snapshot Snapshot, changed bool, err error)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithFlush registers the durable flush executed for every commit.
func WithFlush(fn FlushFunc) Option {
	return func(s *Store) {
		s.flush = fn
	}
}

// WithSync registers the check run before every transaction and by Sync.
func WithSync(fn SyncFunc) Option {
	return func(s *Store) {
		s.sync = fn
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	flush  FlushFunc
	sync   SyncFunc
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot after
// normalising it.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(normalizeSnapshot(snapshot))
}

// Sync replaces the in-memory state with the durable one when another writer
// has committed since the last load or flush.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked(ctx)
}

func (s *Store) syncLocked(ctx context.Context) error {
	if s.sync == nil {
		return nil
	}
	snapshot, changed, err := s.sync(ctx)
	if err != nil {
		return fmt.Errorf("sync state: %w", err)
	}
	if changed {
		s.state = memoryStateFromSnapshot(normalizeSnapshot(snapshot))
	}
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListTalents returns all talents within the snapshot ordered by id.
func (v transactionView) ListTalents() []Talent {
	return sortedValues(v.state.talents, cloneTalent)
}

// ListAreas returns all areas ordered by id.
func (v transactionView) ListAreas() []Area {
	return sortedValues(v.state.areas, identity[Area])
}

// ListProjects returns all projects ordered by id.
func (v transactionView) ListProjects() []Project {
	return sortedValues(v.state.projects, cloneProject)
}

// ListAllocations returns all allocations ordered by id.
func (v transactionView) ListAllocations() []Allocation {
	return sortedValues(v.state.allocations, cloneAllocation)
}

// FindTalent retrieves a talent by ID from the snapshot.
func (v transactionView) FindTalent(id string) (Talent, bool) {
	t, ok := v.state.talents[id]
	if !ok {
		return Talent{}, false
	}
	return cloneTalent(t), true
}

// FindArea retrieves an area by ID from the snapshot.
func (v transactionView) FindArea(id string) (Area, bool) {
	a, ok := v.state.areas[id]
	return a, ok
}

// FindProject retrieves a project by ID from the snapshot.
func (v transactionView) FindProject(id string) (Project, bool) {
	p, ok := v.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindAllocation retrieves an allocation by ID from the snapshot.
func (v transactionView) FindAllocation(id string) (Allocation, bool) {
	a, ok := v.state.allocations[id]
	if !ok {
		return Allocation{}, false
	}
	return cloneAllocation(a), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules are evaluated against the resulting view; the copy replaces the
// committed state only when fn succeeds, no blocking violation is reported
// and the optional durable flush succeeds. Registered sync runs first so fn
// sees commits made by other writers.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.syncLocked(ctx); err != nil {
		return Result{}, err
	}

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.flush != nil && len(tx.changes) > 0 {
		if err := s.flush(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			if errors.Is(err, domain.ErrStaleState) {
				_ = s.syncLocked(ctx)
			}
			return result, fmt.Errorf("flush state: %w", err)
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindTalent exposes talent lookup within the transaction scope.
func (tx *transaction) FindTalent(id string) (Talent, bool) {
	return newTransactionView(&tx.state).FindTalent(id)
}

// FindArea exposes area lookup within the transaction scope.
func (tx *transaction) FindArea(id string) (Area, bool) {
	return newTransactionView(&tx.state).FindArea(id)
}

// FindProject exposes project lookup within the transaction scope.
func (tx *transaction) FindProject(id string) (Project, bool) {
	return newTransactionView(&tx.state).FindProject(id)
}

// FindAllocation exposes allocation lookup within the transaction scope.
func (tx *transaction) FindAllocation(id string) (Allocation, bool) {
	return newTransactionView(&tx.state).FindAllocation(id)
}

func (tx *transaction) checkTalentAreas(t *Talent) error {
	t.Areas = dedupeStrings(t.Areas)
	for _, areaID := range t.Areas {
		if _, ok := tx.state.areas[areaID]; !ok {
			return domain.ErrNotFound{Entity: domain.EntityArea, ID: areaID}
		}
	}
	t.Skills = cloneStrings(t.Skills)
	return nil
}

// CreateTalent stores a new talent. Every listed area must exist.
func (tx *transaction) CreateTalent(t Talent) (Talent, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.talents[t.ID]; exists {
		return Talent{}, fmt.Errorf("talent %q already exists", t.ID)
	}
	if err := tx.checkTalentAreas(&t); err != nil {
		return Talent{}, err
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.talents[t.ID] = cloneTalent(t)
	tx.recordChange(Change{Entity: domain.EntityTalent, Action: domain.ActionCreate, After: cloneTalent(t)})
	return cloneTalent(t), nil
}

// UpdateTalent mutates an existing talent record.
func (tx *transaction) UpdateTalent(id string, mutator func(*Talent) error) (Talent, error) {
	current, ok := tx.state.talents[id]
	if !ok {
		return Talent{}, domain.ErrNotFound{Entity: domain.EntityTalent, ID: id}
	}
	before := cloneTalent(current)
	current = cloneTalent(current)
	if err := mutator(&current); err != nil {
		return Talent{}, err
	}
	if err := tx.checkTalentAreas(&current); err != nil {
		return Talent{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.talents[id] = cloneTalent(current)
	tx.recordChange(Change{Entity: domain.EntityTalent, Action: domain.ActionUpdate, Before: before, After: cloneTalent(current)})
	return cloneTalent(current), nil
}

// DeleteTalent removes a talent. Allocations and project assignments still
// pointing at the talent block the delete.
func (tx *transaction) DeleteTalent(id string) error {
	current, ok := tx.state.talents[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityTalent, ID: id}
	}
	for _, allocation := range sortedValues(tx.state.allocations, identity[Allocation]) {
		if allocation.TalentID == id {
			return domain.ErrReferenced{Entity: domain.EntityTalent, ID: id, Dependent: domain.EntityAllocation, DependentID: allocation.ID}
		}
	}
	for _, project := range sortedValues(tx.state.projects, identity[Project]) {
		if containsString(project.AssignedTalents, id) {
			return domain.ErrReferenced{Entity: domain.EntityTalent, ID: id, Dependent: domain.EntityProject, DependentID: project.ID}
		}
	}
	delete(tx.state.talents, id)
	tx.recordChange(Change{Entity: domain.EntityTalent, Action: domain.ActionDelete, Before: cloneTalent(current)})
	return nil
}

// CreateArea stores a new area.
func (tx *transaction) CreateArea(a Area) (Area, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.areas[a.ID]; exists {
		return Area{}, fmt.Errorf("area %q already exists", a.ID)
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.areas[a.ID] = a
	tx.recordChange(Change{Entity: domain.EntityArea, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateArea mutates an existing area record.
func (tx *transaction) UpdateArea(id string, mutator func(*Area) error) (Area, error) {
	current, ok := tx.state.areas[id]
	if !ok {
		return Area{}, domain.ErrNotFound{Entity: domain.EntityArea, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Area{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.areas[id] = current
	tx.recordChange(Change{Entity: domain.EntityArea, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteArea removes an area that no talent lists any more.
func (tx *transaction) DeleteArea(id string) error {
	current, ok := tx.state.areas[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityArea, ID: id}
	}
	for _, talent := range sortedValues(tx.state.talents, identity[Talent]) {
		if containsString(talent.Areas, id) {
			return domain.ErrReferenced{Entity: domain.EntityArea, ID: id, Dependent: domain.EntityTalent, DependentID: talent.ID}
		}
	}
	delete(tx.state.areas, id)
	tx.recordChange(Change{Entity: domain.EntityArea, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) checkProject(p *Project) error {
	if !p.Status.Valid() {
		return fmt.Errorf("project status %q is not supported", p.Status)
	}
	if p.Status == "" {
		p.Status = domain.ProjectStatusUpcoming
	}
	p.AssignedTalents = dedupeStrings(p.AssignedTalents)
	for _, talentID := range p.AssignedTalents {
		if _, ok := tx.state.talents[talentID]; !ok {
			return domain.ErrNotFound{Entity: domain.EntityTalent, ID: talentID}
		}
	}
	p.RequiredSkills = cloneStrings(p.RequiredSkills)
	return nil
}

// CreateProject stores a new project. Assigned talents must exist.
func (tx *transaction) CreateProject(p Project) (Project, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.projects[p.ID]; exists {
		return Project{}, fmt.Errorf("project %q already exists", p.ID)
	}
	if err := tx.checkProject(&p); err != nil {
		return Project{}, err
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.projects[p.ID] = cloneProject(p)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	return cloneProject(p), nil
}

// UpdateProject mutates an existing project record.
func (tx *transaction) UpdateProject(id string, mutator func(*Project) error) (Project, error) {
	current, ok := tx.state.projects[id]
	if !ok {
		return Project{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: id}
	}
	before := cloneProject(current)
	current = cloneProject(current)
	if err := mutator(&current); err != nil {
		return Project{}, err
	}
	if err := tx.checkProject(&current); err != nil {
		return Project{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.projects[id] = cloneProject(current)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// DeleteProject removes a project that has no allocations left.
func (tx *transaction) DeleteProject(id string) error {
	current, ok := tx.state.projects[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityProject, ID: id}
	}
	for _, allocation := range sortedValues(tx.state.allocations, identity[Allocation]) {
		if allocation.ProjectID == id {
			return domain.ErrReferenced{Entity: domain.EntityProject, ID: id, Dependent: domain.EntityAllocation, DependentID: allocation.ID}
		}
	}
	delete(tx.state.projects, id)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionDelete, Before: cloneProject(current)})
	return nil
}

func (tx *transaction) checkAllocation(a Allocation) error {
	if _, ok := tx.state.talents[a.TalentID]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityTalent, ID: a.TalentID}
	}
	if _, ok := tx.state.projects[a.ProjectID]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityProject, ID: a.ProjectID}
	}
	return nil
}

// CreateAllocation stores a new allocation for an existing talent and project.
func (tx *transaction) CreateAllocation(a Allocation) (Allocation, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.allocations[a.ID]; exists {
		return Allocation{}, fmt.Errorf("allocation %q already exists", a.ID)
	}
	if err := tx.checkAllocation(a); err != nil {
		return Allocation{}, err
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.allocations[a.ID] = cloneAllocation(a)
	tx.recordChange(Change{Entity: domain.EntityAllocation, Action: domain.ActionCreate, After: cloneAllocation(a)})
	return cloneAllocation(a), nil
}

// UpdateAllocation mutates an existing allocation record.
func (tx *transaction) UpdateAllocation(id string, mutator func(*Allocation) error) (Allocation, error) {
	current, ok := tx.state.allocations[id]
	if !ok {
		return Allocation{}, domain.ErrNotFound{Entity: domain.EntityAllocation, ID: id}
	}
	before := cloneAllocation(current)
	current = cloneAllocation(current)
	if err := mutator(&current); err != nil {
		return Allocation{}, err
	}
	if err := tx.checkAllocation(current); err != nil {
		return Allocation{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.allocations[id] = cloneAllocation(current)
	tx.recordChange(Change{Entity: domain.EntityAllocation, Action: domain.ActionUpdate, Before: before, After: cloneAllocation(current)})
	return cloneAllocation(current), nil
}

// DeleteAllocation removes an allocation.
func (tx *transaction) DeleteAllocation(id string) error {
	current, ok := tx.state.allocations[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityAllocation, ID: id}
	}
	delete(tx.state.allocations, id)
	tx.recordChange(Change{Entity: domain.EntityAllocation, Action: domain.ActionDelete, Before: cloneAllocation(current)})
	return nil
}

// Read helpers ---------------------------------------------------------------

// GetTalent retrieves a talent by ID from committed state.
func (s *Store) GetTalent(id string) (Talent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindTalent(id)
}

// ListTalents returns all talents from committed state.
func (s *Store) ListTalents() []Talent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListTalents()
}

// GetArea retrieves an area by ID.
func (s *Store) GetArea(id string) (Area, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindArea(id)
}

// ListAreas returns all areas.
func (s *Store) ListAreas() []Area {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListAreas()
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(id string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindProject(id)
}

// ListProjects returns all projects.
func (s *Store) ListProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListProjects()
}

// GetAllocation retrieves an allocation by ID.
func (s *Store) GetAllocation(id string) (Allocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).FindAllocation(id)
}

// ListAllocations returns all allocations.
func (s *Store) ListAllocations() []Allocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListAllocations()
}
