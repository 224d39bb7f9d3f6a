package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/zuulview/zuulview/internal/transport"
	"github.com/zuulview/zuulview/pkg/domain"
	"github.com/zuulview/zuulview/pkg/store"
	"github.com/zuulview/zuulview/pkg/store/memory"
)

type fakeAPI struct {
	mu            sync.Mutex
	builds        map[string]*domain.Build
	buildsets     map[string]*domain.Buildset
	buildCalls    int
	buildsetCalls int
}

func (a *fakeAPI) Build(ctx context.Context, tenant, uuid string) (*domain.Build, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buildCalls++
	b, ok := a.builds[uuid]
	if !ok {
		return nil, &transport.Error{
			URL:        "https://zuul.example.org/api/tenant/" + tenant + "/build/" + uuid,
			StatusCode: 404,
			Response:   true,
			Err:        fmt.Errorf("unexpected status 404"),
		}
	}
	return b, nil
}

func (a *fakeAPI) Buildset(ctx context.Context, tenant, uuid string) (*domain.Buildset, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buildsetCalls++
	bs, ok := a.buildsets[uuid]
	if !ok {
		return nil, &transport.Error{
			URL:      "https://zuul.example.org/api/tenant/" + tenant + "/buildset/" + uuid,
			Response: true,
			Err:      fmt.Errorf("unexpected status 404"),
		}
	}
	return bs, nil
}

type scripted struct {
	body []byte
	err  error
}

type fakeGetter struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]scripted
}

func (g *fakeGetter) Get(ctx context.Context, url string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, url)
	r, ok := g.responses[url]
	if !ok {
		return nil, &transport.Error{URL: url, Err: fmt.Errorf("no route to host")}
	}
	return r.body, r.err
}

func (g *fakeGetter) callCount(url string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == url {
			n++
		}
	}
	return n
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) byState(res domain.Resource, st domain.ResourceState) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Resource == res && ev.State == st {
			out = append(out, ev)
		}
	}
	return out
}

func setup(t *testing.T, api *fakeAPI, get *fakeGetter) (context.Context, *Orchestrator, store.Store, *eventRecorder) {
	t.Helper()
	st, err := memory.NewPlugin(store.PluginConfig{})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	rec := &eventRecorder{}
	o := New(api, get, st, WithEvents(rec))
	return context.Background(), o, st, rec
}

const logBase = "https://logs.example.org/42"

func buildWithLogs(uuid string) *domain.Build {
	return &domain.Build{UUID: uuid, JobName: "unit-tests", Result: "FAILURE", LogURL: logBase + "/"}
}

func outputDoc(t *testing.T) []byte {
	t.Helper()
	doc := domain.OutputDocument{{
		Name:  "run",
		Index: 1,
		Stats: map[string]domain.PhaseStats{"node1": {Failures: 1, OK: 2}},
		Plays: []domain.Play{{
			Play: domain.Identity{ID: "p-1", Name: "deploy"},
			Tasks: []domain.Task{{
				Task:  domain.Identity{ID: "t-1", Name: "run tests"},
				Hosts: map[string]domain.HostResult{"node1": {Failed: true, RC: 1}},
			}},
		}},
	}}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal output: %v", err)
	}
	return b
}

func TestFetchBuildMemoizedByPresence(t *testing.T) {
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": buildWithLogs("b-1")}}
	ctx, o, _, _ := setup(t, api, &fakeGetter{})

	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if api.buildCalls != 1 {
		t.Errorf("build API calls = %d, want 1 (second call must be memoized)", api.buildCalls)
	}
}

func TestFetchBuildFailureReportsURLAndAborts(t *testing.T) {
	api := &fakeAPI{builds: map[string]*domain.Build{}}
	ctx, o, st, rec := setup(t, api, &fakeGetter{})

	_, err := o.FetchBuild(ctx, "acme", "missing")
	if err == nil {
		t.Fatalf("expected error")
	}

	failed := rec.byState(domain.ResourceBuild, domain.StateFailed)
	if len(failed) != 1 {
		t.Fatalf("failed events = %d, want 1", len(failed))
	}
	if failed[0].URL == "" {
		t.Errorf("failure event must carry the originating URL")
	}
	state, _ := st.States().Get(ctx, "missing", domain.ResourceBuild)
	if state != domain.StateFailed {
		t.Errorf("build state = %q, want failed", state)
	}
}

func TestFetchBuildOutputNotAvailableWithoutLogURL(t *testing.T) {
	api := &fakeAPI{builds: map[string]*domain.Build{
		"b-1": {UUID: "b-1", JobName: "unit-tests"},
	}}
	get := &fakeGetter{}
	ctx, o, st, rec := setup(t, api, get)

	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch build: %v", err)
	}
	if err := o.FetchBuildOutput(ctx, "b-1"); err != nil {
		t.Fatalf("fetch output: %v", err)
	}

	if len(get.calls) != 0 {
		t.Errorf("network calls = %v, want none", get.calls)
	}
	state, _ := st.States().Get(ctx, "b-1", domain.ResourceOutput)
	if state != domain.StateNotAvailable {
		t.Errorf("output state = %q, want not_available", state)
	}
	if got := rec.byState(domain.ResourceOutput, domain.StateFailed); len(got) != 0 {
		t.Errorf("absence must not be reported as a failure, got %v", got)
	}
}

func TestFetchBuildOutputFallsBackOnTransportFailure(t *testing.T) {
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": buildWithLogs("b-1")}}
	get := &fakeGetter{responses: map[string]scripted{
		// No entry for the .gz URL: the fake reports a transport failure.
		logBase + "/job-output.json": {body: outputDoc(t)},
	}}
	ctx, o, st, _ := setup(t, api, get)

	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch build: %v", err)
	}
	if err := o.FetchBuildOutput(ctx, "b-1"); err != nil {
		t.Fatalf("fetch output: %v", err)
	}

	if n := get.callCount(logBase + "/job-output.json.gz"); n != 1 {
		t.Errorf("compressed fetch attempts = %d, want 1", n)
	}
	if n := get.callCount(logBase + "/job-output.json"); n != 1 {
		t.Errorf("fallback fetch attempts = %d, want exactly 1", n)
	}

	out, err := st.Outputs().Get(ctx, "b-1")
	if err != nil {
		t.Fatalf("stored output: %v", err)
	}
	if out.Hosts["node1"] == nil || out.Hosts["node1"].Failures != 1 {
		t.Errorf("analysis not stored with output: %+v", out.Hosts)
	}
	if !out.ErrorIDSet().Has(domain.ErrorID{Kind: domain.ErrorIDPhase, Value: "run1"}) {
		t.Errorf("composite phase id missing from stored error ids")
	}
}

func TestFetchBuildOutputNoFallbackOnApplicationFailure(t *testing.T) {
	gzURL := logBase + "/job-output.json.gz"
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": buildWithLogs("b-1")}}
	get := &fakeGetter{responses: map[string]scripted{
		gzURL: {err: &transport.Error{URL: gzURL, StatusCode: 403, Response: true, Err: fmt.Errorf("unexpected status 403")}},
		// Would succeed if (wrongly) consulted.
		logBase + "/job-output.json": {body: outputDoc(t)},
	}}
	ctx, o, st, rec := setup(t, api, get)

	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch build: %v", err)
	}
	err := o.FetchBuildOutput(ctx, "b-1")
	if err == nil {
		t.Fatalf("expected error")
	}

	if n := get.callCount(logBase + "/job-output.json"); n != 0 {
		t.Errorf("fallback attempts = %d, want 0 for application failures", n)
	}
	state, _ := st.States().Get(ctx, "b-1", domain.ResourceOutput)
	if state != domain.StateFailed {
		t.Errorf("output state = %q, want failed", state)
	}
	failed := rec.byState(domain.ResourceOutput, domain.StateFailed)
	if len(failed) != 1 || failed[0].URL != gzURL {
		t.Errorf("failure event = %+v, want one carrying %s", failed, gzURL)
	}
}

func TestFetchBuildOutputFallbackFailureIsFinal(t *testing.T) {
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": buildWithLogs("b-1")}}
	// Neither URL scripted: both attempts are transport failures.
	get := &fakeGetter{responses: map[string]scripted{}}
	ctx, o, _, _ := setup(t, api, get)

	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch build: %v", err)
	}
	if err := o.FetchBuildOutput(ctx, "b-1"); err == nil {
		t.Fatalf("expected error")
	}
	if len(get.calls) != 2 {
		t.Errorf("fetch attempts = %d, want 2 (no second fallback)", len(get.calls))
	}
}

func TestFetchBuildManifest(t *testing.T) {
	manURL := logBase + "/manifest.json"
	man := domain.Manifest{Tree: []domain.ManifestNode{
		{Name: "docs", Mimetype: domain.MimeDirectory, Children: []domain.ManifestNode{
			{Name: "index.html", Mimetype: domain.MimePlainText},
		}},
	}}
	manBody, _ := json.Marshal(man)

	b := buildWithLogs("b-1")
	b.Artifacts = []domain.Artifact{
		{Name: "Docs preview", URL: "docs/", Metadata: map[string]any{"type": "docs_site"}},
		{Name: "Manifest", URL: "manifest.json", Metadata: map[string]any{"type": "zuul_manifest"}},
	}
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": b}}
	get := &fakeGetter{responses: map[string]scripted{manURL: {body: manBody}}}
	ctx, o, st, _ := setup(t, api, get)

	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch build: %v", err)
	}
	if err := o.FetchBuildManifest(ctx, "b-1"); err != nil {
		t.Fatalf("fetch manifest: %v", err)
	}

	if n := get.callCount(manURL); n != 1 {
		t.Errorf("manifest fetches = %d (calls %v), want the relative URL resolved against log_url", n, get.calls)
	}
	rec, err := st.Manifests().Get(ctx, "b-1")
	if err != nil {
		t.Fatalf("stored manifest: %v", err)
	}
	if _, ok := rec.Index["/docs/index.html"]; !ok {
		t.Errorf("manifest index missing leaf, got %v", rec.Index)
	}
}

func TestFetchBuildManifestNotAvailable(t *testing.T) {
	b := buildWithLogs("b-1")
	b.Artifacts = []domain.Artifact{{Name: "Docs", URL: "docs/"}}
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": b}}
	get := &fakeGetter{}
	ctx, o, st, _ := setup(t, api, get)

	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch build: %v", err)
	}
	if err := o.FetchBuildManifest(ctx, "b-1"); err != nil {
		t.Fatalf("fetch manifest: %v", err)
	}

	if len(get.calls) != 0 {
		t.Errorf("network calls = %v, want none", get.calls)
	}
	state, _ := st.States().Get(ctx, "b-1", domain.ResourceManifest)
	if state != domain.StateNotAvailable {
		t.Errorf("manifest state = %q, want not_available", state)
	}
}

func TestFetchBuildManifestFailureIsReportedNotRaised(t *testing.T) {
	b := buildWithLogs("b-1")
	b.Artifacts = []domain.Artifact{
		{Name: "Manifest", URL: "manifest.json", Metadata: map[string]any{"type": "zuul_manifest"}},
	}
	manURL := logBase + "/manifest.json"
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": b}}
	get := &fakeGetter{responses: map[string]scripted{
		manURL: {err: &transport.Error{URL: manURL, StatusCode: 500, Response: true, Err: fmt.Errorf("unexpected status 500")}},
	}}
	ctx, o, st, rec := setup(t, api, get)

	if _, err := o.FetchBuild(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch build: %v", err)
	}
	if err := o.FetchBuildManifest(ctx, "b-1"); err != nil {
		t.Errorf("manifest fetch failure must not propagate, got %v", err)
	}

	state, _ := st.States().Get(ctx, "b-1", domain.ResourceManifest)
	if state != domain.StateFailed {
		t.Errorf("manifest state = %q, want failed", state)
	}
	if got := rec.byState(domain.ResourceManifest, domain.StateFailed); len(got) != 1 {
		t.Errorf("failed events = %d, want 1", len(got))
	}
}

func TestFetchBuildAllInfoAbortsOnBuildFailure(t *testing.T) {
	api := &fakeAPI{builds: map[string]*domain.Build{}}
	get := &fakeGetter{}
	ctx, o, _, rec := setup(t, api, get)

	if err := o.FetchBuildAllInfo(ctx, "acme", "missing"); err == nil {
		t.Fatalf("expected error")
	}

	if len(get.calls) != 0 {
		t.Errorf("dependent fetches ran despite build failure: %v", get.calls)
	}
	if got := rec.byState(domain.ResourceBuild, domain.StateFailed); len(got) != 1 {
		t.Errorf("build failure events = %d, want exactly 1", len(got))
	}
	if got := rec.byState(domain.ResourceOutput, domain.StateRequested); len(got) != 0 {
		t.Errorf("output fetch must not start when the build fetch fails")
	}
}

func TestFetchBuildAllInfoFetchesBothIndependently(t *testing.T) {
	manURL := logBase + "/manifest.json"
	b := buildWithLogs("b-1")
	b.Artifacts = []domain.Artifact{
		{Name: "Manifest", URL: "manifest.json", Metadata: map[string]any{"type": "zuul_manifest"}},
	}
	manBody, _ := json.Marshal(domain.Manifest{Tree: []domain.ManifestNode{{Name: "x", Mimetype: domain.MimePlainText}}})
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": b}}
	get := &fakeGetter{responses: map[string]scripted{
		logBase + "/job-output.json.gz": {body: outputDoc(t)},
		manURL:                          {body: manBody},
	}}
	ctx, o, st, _ := setup(t, api, get)

	if err := o.FetchBuildAllInfo(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch all: %v", err)
	}

	if _, err := st.Outputs().Get(ctx, "b-1"); err != nil {
		t.Errorf("output not stored: %v", err)
	}
	if _, err := st.Manifests().Get(ctx, "b-1"); err != nil {
		t.Errorf("manifest not stored: %v", err)
	}
}

func TestFetchBuildAllInfoManifestFailureDoesNotStopOutput(t *testing.T) {
	manURL := logBase + "/manifest.json"
	b := buildWithLogs("b-1")
	b.Artifacts = []domain.Artifact{
		{Name: "Manifest", URL: "manifest.json", Metadata: map[string]any{"type": "zuul_manifest"}},
	}
	api := &fakeAPI{builds: map[string]*domain.Build{"b-1": b}}
	get := &fakeGetter{responses: map[string]scripted{
		logBase + "/job-output.json.gz": {body: outputDoc(t)},
		manURL: {err: &transport.Error{URL: manURL, StatusCode: 500, Response: true, Err: fmt.Errorf("unexpected status 500")}},
	}}
	ctx, o, st, _ := setup(t, api, get)

	if err := o.FetchBuildAllInfo(ctx, "acme", "b-1"); err != nil {
		t.Fatalf("fetch all: %v", err)
	}

	if _, err := st.Outputs().Get(ctx, "b-1"); err != nil {
		t.Errorf("output must succeed despite manifest failure: %v", err)
	}
	state, _ := st.States().Get(ctx, "b-1", domain.ResourceManifest)
	if state != domain.StateFailed {
		t.Errorf("manifest state = %q, want failed", state)
	}
}
