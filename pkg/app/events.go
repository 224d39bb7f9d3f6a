package app

import (
	"context"
	"log/slog"

	"github.com/zuulview/zuulview/internal/fetcher"
	"github.com/zuulview/zuulview/pkg/domain"
)

// slogEvents surfaces resource transitions through the service logger.
// Failures log at warn with their originating URL; everything else at debug.
type slogEvents struct {
	logger *slog.Logger
}

func (e slogEvents) Publish(_ context.Context, ev fetcher.Event) {
	if ev.State == domain.StateFailed {
		e.logger.Warn("resource fetch failed",
			"event_id", ev.ID, "resource", ev.Resource, "key", ev.Key, "url", ev.URL, "err", ev.Err)
		return
	}
	e.logger.Debug("resource transition",
		"event_id", ev.ID, "resource", ev.Resource, "key", ev.Key, "state", ev.State)
}
