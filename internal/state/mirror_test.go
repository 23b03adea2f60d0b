package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"staffcore/internal/core"

	"github.com/cenkalti/backoff/v4"
)

func newMirroredService(t *testing.T) (*core.Service, *Mirror) {
	t.Helper()
	var svc *core.Service
	mirror := NewMirror(NewContainer(), SourceFunc(func(ctx context.Context) (core.Overview, error) {
		return svc.Overview(ctx)
	}))
	svc = core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithCommitHook(mirror.CommitHook()))
	return svc, mirror
}

func TestMirrorRefreshesAfterCommit(t *testing.T) {
	ctx := context.Background()
	svc, mirror := newMirroredService(t)
	if err := mirror.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, ok := mirror.Container().Get(KeyTalents); !ok || len(v.([]core.Talent)) != 0 {
		t.Fatalf("expected empty talents after load, got %v %v", v, ok)
	}

	var notified []string
	mirror.Container().Watch([]string{KeyProjects, KeyTalents}, func(key string, _ any) {
		notified = append(notified, key)
	})

	if _, _, err := svc.CreateTalent(ctx, core.Talent{Name: "Ada"}); err != nil {
		t.Fatalf("create talent: %v", err)
	}
	v, _ := mirror.Container().Get(KeyTalents)
	talents := v.([]core.Talent)
	if len(talents) != 1 || talents[0].Name != "Ada" {
		t.Fatalf("expected mirrored talent, got %+v", talents)
	}
	if len(notified) != 2 || notified[0] != KeyProjects || notified[1] != KeyTalents {
		t.Fatalf("unexpected notifications %v", notified)
	}
	if mirror.Version() != 2 {
		t.Fatalf("expected two refreshes, got %d", mirror.Version())
	}
}

func TestMirrorSkipsFailedMutations(t *testing.T) {
	ctx := context.Background()
	svc, mirror := newMirroredService(t)
	if _, _, err := svc.CreateTalent(ctx, core.Talent{}); err == nil {
		t.Fatalf("expected validation error")
	}
	if mirror.Version() != 0 {
		t.Fatalf("expected no refresh for a failed mutation, got %d", mirror.Version())
	}
}

type flakySource struct {
	failures int
	calls    int
}

func (f *flakySource) Overview(context.Context) (core.Overview, error) {
	f.calls++
	if f.calls <= f.failures {
		return core.Overview{}, errors.New("store unavailable")
	}
	return core.Overview{Areas: []core.Area{{Name: "Backend"}}}, nil
}

func fastBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
}

func TestMirrorLoadRetries(t *testing.T) {
	src := &flakySource{failures: 2}
	mirror := NewMirror(NewContainer(), src, WithBackOff(fastBackOff))
	if err := mirror.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.calls != 3 {
		t.Fatalf("expected three attempts, got %d", src.calls)
	}
	if v, _ := mirror.Container().Get(KeyAreas); len(v.([]core.Area)) != 1 {
		t.Fatalf("expected mirrored area, got %v", v)
	}
}

func TestMirrorLoadGivesUp(t *testing.T) {
	src := &flakySource{failures: 100}
	mirror := NewMirror(NewContainer(), src, WithBackOff(fastBackOff))
	err := mirror.Load(context.Background())
	if err == nil {
		t.Fatalf("expected load to fail")
	}
	if src.calls != 6 {
		t.Fatalf("expected initial attempt plus five retries, got %d", src.calls)
	}
	if _, ok := mirror.Container().Get(KeyAreas); ok {
		t.Fatalf("expected container untouched")
	}
}
