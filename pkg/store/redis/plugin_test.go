package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/zuulview/zuulview/pkg/domain"
	"github.com/zuulview/zuulview/pkg/store"
)

func setup(t *testing.T, ttl time.Duration) (context.Context, *miniredis.Miniredis, store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return context.Background(), mr, NewPluginWithClient(rdb, ttl)
}

func TestBuildRecordRoundTrip(t *testing.T) {
	ctx, _, s := setup(t, 0)

	if _, err := s.Builds().Get(ctx, "b-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec := &store.BuildRecord{
		Build: &domain.Build{
			UUID:    "b-1",
			JobName: "unit-tests",
			Result:  "FAILURE",
			LogURL:  "https://logs.example.org/1/",
			Artifacts: []domain.Artifact{
				{Name: "Manifest", URL: "manifest.json", Metadata: map[string]any{"type": "zuul_manifest"}},
			},
		},
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.Builds().Put(ctx, "b-1", rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Builds().Get(ctx, "b-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Build.JobName != "unit-tests" {
		t.Errorf("JobName = %q", got.Build.JobName)
	}
	if got.Build.ManifestArtifact() == nil {
		t.Errorf("artifact metadata lost on round trip")
	}
}

func TestRecordsExpireWithTTL(t *testing.T) {
	ctx, mr, s := setup(t, time.Minute)

	if err := s.Builds().Put(ctx, "b-1", &store.BuildRecord{Build: &domain.Build{UUID: "b-1"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := s.Builds().Get(ctx, "b-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}

func TestStateStorage(t *testing.T) {
	ctx, _, s := setup(t, 0)

	st, err := s.States().Get(ctx, "b-1", domain.ResourceManifest)
	if err != nil {
		t.Fatalf("Get state: %v", err)
	}
	if st != domain.StateIdle {
		t.Errorf("unset state = %q, want idle", st)
	}

	if err := s.States().Set(ctx, "b-1", domain.ResourceManifest, domain.StateSucceeded); err != nil {
		t.Fatalf("Set state: %v", err)
	}
	st, _ = s.States().Get(ctx, "b-1", domain.ResourceManifest)
	if st != domain.StateSucceeded {
		t.Errorf("state = %q, want succeeded", st)
	}
}

func TestHealth(t *testing.T) {
	ctx, mr, s := setup(t, 0)

	if err := s.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	mr.Close()
	if err := s.Health(ctx); err == nil {
		t.Fatalf("expected health failure after redis shutdown")
	}
}
