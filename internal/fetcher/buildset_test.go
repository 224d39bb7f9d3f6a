package fetcher

import (
	"testing"

	"github.com/zuulview/zuulview/pkg/domain"
)

func TestFetchBuildsetMemoizedByPresence(t *testing.T) {
	api := &fakeAPI{buildsets: map[string]*domain.Buildset{
		"bs-1": {UUID: "bs-1", Result: "SUCCESS"},
	}}
	ctx, o, _, _ := setup(t, api, &fakeGetter{})

	if err := o.FetchBuildset(ctx, "acme", "bs-1", false); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if err := o.FetchBuildset(ctx, "acme", "bs-1", false); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if api.buildsetCalls != 1 {
		t.Errorf("buildset API calls = %d, want 1", api.buildsetCalls)
	}
}

func TestFetchBuildsetForceBypassesCache(t *testing.T) {
	api := &fakeAPI{buildsets: map[string]*domain.Buildset{
		"bs-1": {UUID: "bs-1", Result: "SUCCESS"},
	}}
	ctx, o, _, _ := setup(t, api, &fakeGetter{})

	if err := o.FetchBuildset(ctx, "acme", "bs-1", false); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if err := o.FetchBuildset(ctx, "acme", "bs-1", true); err != nil {
		t.Fatalf("forced fetch: %v", err)
	}
	if api.buildsetCalls != 2 {
		t.Errorf("buildset API calls = %d, want 2 with force", api.buildsetCalls)
	}
}

func TestFetchBuildsetFailure(t *testing.T) {
	api := &fakeAPI{buildsets: map[string]*domain.Buildset{}}
	ctx, o, st, rec := setup(t, api, &fakeGetter{})

	if err := o.FetchBuildset(ctx, "acme", "missing", false); err == nil {
		t.Fatalf("expected error")
	}
	state, _ := st.States().Get(ctx, "missing", domain.ResourceBuildset)
	if state != domain.StateFailed {
		t.Errorf("buildset state = %q, want failed", state)
	}
	failed := rec.byState(domain.ResourceBuildset, domain.StateFailed)
	if len(failed) != 1 || failed[0].URL == "" {
		t.Errorf("failure event = %+v, want one carrying its URL", failed)
	}
}
