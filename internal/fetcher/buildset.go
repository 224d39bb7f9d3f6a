package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/zuulview/zuulview/internal/metrics"
	"github.com/zuulview/zuulview/pkg/domain"
	"github.com/zuulview/zuulview/pkg/store"
)

// FetchBuildset fetches a buildset record unless the store already holds
// one; force bypasses that check unconditionally.
func (o *Orchestrator) FetchBuildset(ctx context.Context, tenant, buildsetID string, force bool) error {
	if !force && !o.buildsetNeedsFetch(ctx, buildsetID) {
		metrics.CacheHitsTotal.WithLabelValues(string(domain.ResourceBuildset)).Inc()
		return nil
	}

	ctx, span := o.startSpan(ctx, "fetch_buildset", buildsetID)
	defer span.End()
	started := o.now()

	o.transition(ctx, domain.ResourceBuildset, buildsetID, domain.StateRequested, nil)
	bs, err := o.api.Buildset(ctx, tenant, buildsetID)
	if err != nil {
		o.fail(ctx, span, domain.ResourceBuildset, buildsetID, err)
		return err
	}

	rec := &store.BuildsetRecord{Buildset: bs, ReceivedAt: o.now()}
	if err := o.store.Buildsets().Put(ctx, buildsetID, rec); err != nil {
		o.fail(ctx, span, domain.ResourceBuildset, buildsetID, err)
		return fmt.Errorf("store buildset %s: %w", buildsetID, err)
	}
	o.succeed(ctx, domain.ResourceBuildset, buildsetID, rec.ReceivedAt, started)
	return nil
}

// buildsetNeedsFetch decides whether a non-forced fetch should run. A
// missing record always needs a fetch. A present record never does, whether
// its last fetch is still in flight or long concluded; force is the only
// way to refresh one.
func (o *Orchestrator) buildsetNeedsFetch(ctx context.Context, buildsetID string) bool {
	if _, err := o.store.Buildsets().Get(ctx, buildsetID); errors.Is(err, store.ErrNotFound) {
		return true
	}
	st, _ := o.store.States().Get(ctx, buildsetID, domain.ResourceBuildset)
	if st == domain.StateRequested {
		return false
	}
	return false
}
