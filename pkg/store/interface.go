// Package store is the per-build result store behind the fetch
// orchestration: presence of a record is what memoizes a fetch, and records
// are replaced wholesale, never mutated field by field.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zuulview/zuulview/pkg/domain"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("not found")

// BuildRecord is a fetched build plus its receipt timestamp.
type BuildRecord struct {
	Build      *domain.Build `json:"build"`
	ReceivedAt time.Time     `json:"receivedAt"`
}

// BuildsetRecord is a fetched buildset plus its receipt timestamp.
type BuildsetRecord struct {
	Buildset   *domain.Buildset `json:"buildset"`
	ReceivedAt time.Time        `json:"receivedAt"`
}

// OutputRecord is a build's fetched log output together with everything the
// failure analysis derived from it.
type OutputRecord struct {
	BuildID    string                       `json:"buildId"`
	Output     domain.OutputDocument        `json:"output"`
	Hosts      map[string]*domain.HostStats `json:"hosts"`
	ErrorIDs   []domain.ErrorID             `json:"errorIds"`
	ReceivedAt time.Time                    `json:"receivedAt"`
}

// ErrorIDSet rebuilds the set form of the record's error identifiers.
func (r *OutputRecord) ErrorIDSet() domain.ErrorIDSet {
	return domain.NewErrorIDSet(r.ErrorIDs...)
}

// ManifestRecord is a build's fetched manifest plus its flattened path index.
type ManifestRecord struct {
	BuildID    string           `json:"buildId"`
	Manifest   *domain.Manifest `json:"manifest"`
	Index      domain.PathIndex `json:"index"`
	ReceivedAt time.Time        `json:"receivedAt"`
}

// Store groups the per-resource storages. Implementations serialize their
// own state; callers rely on a Put being atomic (a failed fetch never leaves
// a half-written record behind, because nothing is written for failures).
type Store interface {
	Builds() BuildStorage
	Buildsets() BuildsetStorage
	Outputs() OutputStorage
	Manifests() ManifestStorage
	States() StateStorage

	// Health checks if the backend is reachable.
	Health(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// BuildStorage persists build records keyed by build uuid.
type BuildStorage interface {
	Get(ctx context.Context, uuid string) (*BuildRecord, error)
	Put(ctx context.Context, uuid string, rec *BuildRecord) error
}

// BuildsetStorage persists buildset records keyed by buildset uuid.
type BuildsetStorage interface {
	Get(ctx context.Context, uuid string) (*BuildsetRecord, error)
	Put(ctx context.Context, uuid string, rec *BuildsetRecord) error
}

// OutputStorage persists output records keyed by build uuid.
type OutputStorage interface {
	Get(ctx context.Context, buildID string) (*OutputRecord, error)
	Put(ctx context.Context, buildID string, rec *OutputRecord) error
}

// ManifestStorage persists manifest records keyed by build uuid.
type ManifestStorage interface {
	Get(ctx context.Context, buildID string) (*ManifestRecord, error)
	Put(ctx context.Context, buildID string, rec *ManifestRecord) error
}

// StateStorage tracks each resource's fetch lifecycle per build. Unset
// states read back as StateIdle.
type StateStorage interface {
	Get(ctx context.Context, id string, res domain.Resource) (domain.ResourceState, error)
	Set(ctx context.Context, id string, res domain.Resource, st domain.ResourceState) error
}
