package core

import (
	"context"
	"staffcore/internal/infra/persistence/memory"
	"time"
)

// Logger is the minimal structured logging contract used by the service.
// Arguments are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus reports the outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service mutation.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives an entry for every mutating service call.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation latency and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan is ended exactly once with the operation error (nil on success).
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// CommitEvent summarises a committed mutation for commit hooks.
type CommitEvent struct {
	Operation string     `json:"operation"`
	Entity    EntityType `json:"entity"`
	Action    Action     `json:"action"`
	EntityID  string     `json:"entity_id"`
	At        time.Time  `json:"at"`
}

// CommitHook runs after a mutation has been committed. Hooks must not call
// back into mutating service methods.
type CommitHook func(ctx context.Context, event CommitEvent)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for audit entries and durations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAuditRecorder installs an audit recorder.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithCommitHook appends a hook invoked after every committed mutation.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Service) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

// WithColorAllocator replaces the default project color allocator.
func WithColorAllocator(colors *ColorAllocator) Option {
	return func(s *Service) {
		if colors != nil {
			s.colors = colors
		}
	}
}

// Service exposes transactional operations of the allocation engine on top
// of a PersistentStore.
type Service struct {
	store   PersistentStore
	logger  Logger
	now     func() time.Time
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	hooks   []CommitHook
	colors  *ColorAllocator
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		now:     time.Now,
		audit:   noopAudit{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		colors:  NewColorAllocator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Colors returns the project color allocator.
func (s *Service) Colors() *ColorAllocator {
	return s.colors
}

// run executes fn in a store transaction and records logs, audit, metrics and
// a trace span for the operation. fn returns the id of the primary record.
func (s *Service) run(ctx context.Context, op string, entity EntityType, action Action, fn func(tx Transaction) (string, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.now()
	var id string
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		id, err = fn(tx)
		return err
	})
	ended := s.now()
	duration := ended.Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation: op,
		Entity:    entity,
		Action:    action,
		EntityID:  id,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: ended,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.audit.Record(ctx, entry)
		s.logger.Error("operation failed", "operation", op, "entity", entity, "id", id, "error", err)
		return res, err
	}
	s.audit.Record(ctx, entry)
	for _, v := range res.Warnings() {
		s.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "entity_id", v.EntityID, "message", v.Message)
	}
	s.logger.Debug("operation committed", "operation", op, "entity", entity, "id", id, "duration", duration)

	event := CommitEvent{Operation: op, Entity: entity, Action: action, EntityID: id, At: ended}
	for _, hook := range s.hooks {
		hook(ctx, event)
	}
	return res, nil
}

// view runs fn against a consistent read snapshot.
func (s *Service) view(ctx context.Context, fn func(TransactionView) error) error {
	return s.store.View(ctx, fn)
}
