// Package fetcher sequences the dependent fetches that assemble a build's
// full information: the build record first, then its log output and its
// artifact manifest, which are independent of each other.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zuulview/zuulview/internal/analyze"
	"github.com/zuulview/zuulview/internal/manifest"
	"github.com/zuulview/zuulview/internal/metrics"
	"github.com/zuulview/zuulview/internal/transport"
	"github.com/zuulview/zuulview/pkg/domain"
	"github.com/zuulview/zuulview/pkg/store"
)

// API is the build record source.
type API interface {
	Build(ctx context.Context, tenant, uuid string) (*domain.Build, error)
	Buildset(ctx context.Context, tenant, uuid string) (*domain.Buildset, error)
}

// Orchestrator coordinates fetches against the build-info store. It holds no
// mutable state of its own; all memoization lives in the store, keyed by
// record presence.
type Orchestrator struct {
	api    API
	get    transport.Getter
	store  store.Store
	events Events
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithEvents sets the transition sink.
func WithEvents(ev Events) Option {
	return func(o *Orchestrator) { o.events = ev }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the receipt-timestamp clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(api API, get transport.Getter, st store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:    api,
		get:    get,
		store:  st,
		events: NopEvents{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchBuild returns the build, fetching it unless a record is already
// present in the store. On failure the build resource is marked failed, the
// failure (annotated with its request URL) is published, and the error is
// returned so dependent fetches are not attempted.
func (o *Orchestrator) FetchBuild(ctx context.Context, tenant, buildID string) (*domain.Build, error) {
	if rec, err := o.store.Builds().Get(ctx, buildID); err == nil {
		metrics.CacheHitsTotal.WithLabelValues(string(domain.ResourceBuild)).Inc()
		return rec.Build, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("read build %s: %w", buildID, err)
	}

	ctx, span := o.startSpan(ctx, "fetch_build", buildID)
	defer span.End()
	started := o.now()

	o.transition(ctx, domain.ResourceBuild, buildID, domain.StateRequested, nil)
	b, err := o.api.Build(ctx, tenant, buildID)
	if err != nil {
		o.fail(ctx, span, domain.ResourceBuild, buildID, err)
		return nil, err
	}

	rec := &store.BuildRecord{Build: b, ReceivedAt: o.now()}
	if err := o.store.Builds().Put(ctx, buildID, rec); err != nil {
		o.fail(ctx, span, domain.ResourceBuild, buildID, err)
		return nil, fmt.Errorf("store build %s: %w", buildID, err)
	}
	o.succeed(ctx, domain.ResourceBuild, buildID, rec.ReceivedAt, started)
	return b, nil
}

// FetchBuildOutput fetches and analyzes the build's playbook log. The build
// must already be present; call ordering enforces that. A build without a
// log URL concludes as not_available with no network access. The compressed
// document is tried first; only a transport-level failure (no response at
// all) triggers the single fallback to the uncompressed document.
func (o *Orchestrator) FetchBuildOutput(ctx context.Context, buildID string) error {
	rec, err := o.store.Builds().Get(ctx, buildID)
	if err != nil {
		return fmt.Errorf("output fetch requires build %s: %w", buildID, err)
	}
	build := rec.Build

	if build.LogURL == "" {
		o.transition(ctx, domain.ResourceOutput, buildID, domain.StateNotAvailable, nil)
		return nil
	}

	ctx, span := o.startSpan(ctx, "fetch_build_output", buildID)
	defer span.End()
	started := o.now()

	o.transition(ctx, domain.ResourceOutput, buildID, domain.StateRequested, nil)

	base := build.LogBaseURL()
	url := base + "/job-output.json.gz"
	body, err := o.get.Get(ctx, url)
	if err != nil && transport.IsTransportFailure(err) {
		metrics.OutputFallbacksTotal.Inc()
		url = base + "/job-output.json"
		body, err = o.get.Get(ctx, url)
	}
	if err != nil {
		o.fail(ctx, span, domain.ResourceOutput, buildID, err)
		return err
	}

	var output domain.OutputDocument
	if err := json.Unmarshal(body, &output); err != nil {
		err = &transport.Error{URL: url, Response: true, Err: fmt.Errorf("decode output: %w", err)}
		o.fail(ctx, span, domain.ResourceOutput, buildID, err)
		return err
	}

	report := analyze.Analyze(output)
	out := &store.OutputRecord{
		BuildID:    buildID,
		Output:     output,
		Hosts:      report.Hosts,
		ErrorIDs:   report.ErrorIDs.Values(),
		ReceivedAt: o.now(),
	}
	if err := o.store.Outputs().Put(ctx, buildID, out); err != nil {
		o.fail(ctx, span, domain.ResourceOutput, buildID, err)
		return fmt.Errorf("store output %s: %w", buildID, err)
	}
	o.succeed(ctx, domain.ResourceOutput, buildID, out.ReceivedAt, started)
	return nil
}

// FetchBuildManifest fetches the manifest declared by the build's artifacts
// and indexes its tree. A build with no manifest artifact concludes as
// not_available. A fetch failure marks the resource failed and is reported
// through the event sink, but not returned; the manifest is optional
// decoration of the build page.
func (o *Orchestrator) FetchBuildManifest(ctx context.Context, buildID string) error {
	rec, err := o.store.Builds().Get(ctx, buildID)
	if err != nil {
		return fmt.Errorf("manifest fetch requires build %s: %w", buildID, err)
	}
	build := rec.Build

	art := build.ManifestArtifact()
	if art == nil {
		o.transition(ctx, domain.ResourceManifest, buildID, domain.StateNotAvailable, nil)
		return nil
	}

	ctx, span := o.startSpan(ctx, "fetch_build_manifest", buildID)
	defer span.End()
	started := o.now()

	o.transition(ctx, domain.ResourceManifest, buildID, domain.StateRequested, nil)

	url := build.ResolveArtifactURL(*art)
	var man domain.Manifest
	if err := transport.GetJSON(ctx, o.get, url, &man); err != nil {
		o.fail(ctx, span, domain.ResourceManifest, buildID, err)
		return nil
	}

	mrec := &store.ManifestRecord{
		BuildID:    buildID,
		Manifest:   &man,
		Index:      manifest.Index(man.Tree),
		ReceivedAt: o.now(),
	}
	if err := o.store.Manifests().Put(ctx, buildID, mrec); err != nil {
		o.fail(ctx, span, domain.ResourceManifest, buildID, err)
		return nil
	}
	o.succeed(ctx, domain.ResourceManifest, buildID, mrec.ReceivedAt, started)
	return nil
}

// FetchBuildAllInfo awaits the build record, then fetches output and
// manifest concurrently with no join between them: each reports its own
// outcome and a failure in one does not cancel the other. A build fetch
// failure is returned immediately and neither dependent fetch runs.
func (o *Orchestrator) FetchBuildAllInfo(ctx context.Context, tenant, buildID string) error {
	if _, err := o.FetchBuild(ctx, tenant, buildID); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := o.FetchBuildOutput(ctx, buildID); err != nil {
			o.logger.Warn("build output fetch failed", "build", buildID, "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		_ = o.FetchBuildManifest(ctx, buildID)
	}()
	wg.Wait()
	return nil
}

func (o *Orchestrator) transition(ctx context.Context, res domain.Resource, key string, st domain.ResourceState, mod func(*Event)) {
	if err := o.store.States().Set(ctx, key, res, st); err != nil {
		o.logger.Warn("state write failed", "resource", res, "key", key, "err", err)
	}
	ev := newEvent(res, st, key)
	if mod != nil {
		mod(&ev)
	}
	o.events.Publish(ctx, ev)
}

func (o *Orchestrator) succeed(ctx context.Context, res domain.Resource, key string, receivedAt, started time.Time) {
	o.transition(ctx, res, key, domain.StateSucceeded, func(ev *Event) {
		ev.ReceivedAt = receivedAt
	})
	metrics.FetchesTotal.WithLabelValues(string(res), "success").Inc()
	metrics.FetchLatencySeconds.WithLabelValues(string(res)).Observe(o.now().Sub(started).Seconds())
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, res domain.Resource, key string, err error) {
	span.SetStatus(codes.Error, err.Error())
	o.transition(ctx, res, key, domain.StateFailed, func(ev *Event) {
		ev.Err = err.Error()
		ev.URL = transport.ErrorURL(err)
	})
	metrics.FetchesTotal.WithLabelValues(string(res), "failure").Inc()
	o.logger.Error("fetch failed", "resource", res, "key", key, "url", transport.ErrorURL(err), "err", err)
}

func (o *Orchestrator) startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return otel.Tracer("zuulview/fetcher").Start(ctx, "zuulview."+name,
		trace.WithAttributes(attribute.String("zuulview.key", key)),
	)
}
