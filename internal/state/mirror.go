package state

import (
	"context"
	"fmt"
	"staffcore/internal/core"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Source supplies a consistent read of every record set.
type Source interface {
	Overview(ctx context.Context) (core.Overview, error)
}

// SourceFunc adapts a function to Source. It lets a mirror be built before
// the service whose commit hook it provides.
type SourceFunc func(ctx context.Context) (core.Overview, error)

// Overview calls f.
func (f SourceFunc) Overview(ctx context.Context) (core.Overview, error) { return f(ctx) }

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithLogger sets the mirror logger.
func WithLogger(logger core.Logger) MirrorOption {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithBackOff overrides the retry policy used by Load. The factory is called
// once per Load.
func WithBackOff(factory func() backoff.BackOff) MirrorOption {
	return func(m *Mirror) {
		if factory != nil {
			m.newBackOff = factory
		}
	}
}

// Mirror keeps the record keys of a Container in sync with a Source.
type Mirror struct {
	container  *Container
	source     Source
	logger     core.Logger
	newBackOff func() backoff.BackOff

	mu      sync.Mutex
	version uint64
}

// NewMirror binds container to source.
func NewMirror(container *Container, source Source, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		container:  container,
		source:     source,
		logger:     nopLogger{},
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = time.Minute
	return b
}

// Container returns the mirrored container.
func (m *Mirror) Container() *Container { return m.container }

// Version counts completed refreshes.
func (m *Mirror) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Load performs the initial bulk load, retrying failed reads with
// exponential backoff until the policy gives up or ctx ends.
func (m *Mirror) Load(ctx context.Context) error {
	attempt := 0
	op := func() error {
		attempt++
		return m.Refresh(ctx)
	}
	notify := func(err error, wait time.Duration) {
		m.logger.Warn("state load failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(m.newBackOff(), ctx), notify); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	m.logger.Info("state loaded", "attempts", attempt)
	return nil
}

// Refresh re-reads the source and publishes each record set to its key.
// Refreshes are serialised so listeners never observe an older set after a
// newer one.
func (m *Mirror) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	overview, err := m.source.Overview(ctx)
	if err != nil {
		return err
	}
	m.container.Set(KeyAllocations, overview.Allocations)
	m.container.Set(KeyProjects, overview.Projects)
	m.container.Set(KeyTalents, overview.Talents)
	m.container.Set(KeyAreas, overview.Areas)
	m.version++
	return nil
}

// CommitHook returns a core.CommitHook that refreshes the mirror after each
// committed mutation.
func (m *Mirror) CommitHook() core.CommitHook {
	return func(ctx context.Context, event core.CommitEvent) {
		if err := m.Refresh(context.WithoutCancel(ctx)); err != nil {
			m.logger.Error("state refresh failed", "operation", event.Operation, "error", err)
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
