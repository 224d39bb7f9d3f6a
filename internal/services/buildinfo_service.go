package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/zuulview/zuulview/internal/fetcher"
	"github.com/zuulview/zuulview/pkg/domain"
	"github.com/zuulview/zuulview/pkg/store"
)

// BuildInfoService answers dashboard reads, fetching through the
// orchestrator on cache misses. The returned state lets callers tell a
// legitimately absent resource from a failed one.
type BuildInfoService interface {
	GetBuild(ctx context.Context, tenant, uuid string) (*store.BuildRecord, error)
	GetOutput(ctx context.Context, tenant, uuid string) (*store.OutputRecord, domain.ResourceState, error)
	GetManifest(ctx context.Context, tenant, uuid string) (*store.ManifestRecord, domain.ResourceState, error)
	GetBuildset(ctx context.Context, tenant, uuid string, force bool) (*store.BuildsetRecord, error)
}

type buildInfoService struct {
	orch *fetcher.Orchestrator
	st   store.Store
}

func NewBuildInfoService(orch *fetcher.Orchestrator, st store.Store) BuildInfoService {
	return &buildInfoService{orch: orch, st: st}
}

func (s *buildInfoService) GetBuild(ctx context.Context, tenant, uuid string) (*store.BuildRecord, error) {
	if _, err := s.orch.FetchBuild(ctx, tenant, uuid); err != nil {
		return nil, err
	}
	return s.st.Builds().Get(ctx, uuid)
}

func (s *buildInfoService) GetOutput(ctx context.Context, tenant, uuid string) (*store.OutputRecord, domain.ResourceState, error) {
	if _, err := s.orch.FetchBuild(ctx, tenant, uuid); err != nil {
		return nil, domain.StateFailed, err
	}
	if rec, err := s.st.Outputs().Get(ctx, uuid); err == nil {
		return rec, domain.StateSucceeded, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, domain.StateFailed, err
	}

	if err := s.orch.FetchBuildOutput(ctx, uuid); err != nil {
		return nil, domain.StateFailed, err
	}
	st, _ := s.st.States().Get(ctx, uuid, domain.ResourceOutput)
	if st == domain.StateNotAvailable {
		return nil, st, nil
	}
	rec, err := s.st.Outputs().Get(ctx, uuid)
	if err != nil {
		return nil, domain.StateFailed, fmt.Errorf("output vanished after fetch: %w", err)
	}
	return rec, domain.StateSucceeded, nil
}

func (s *buildInfoService) GetManifest(ctx context.Context, tenant, uuid string) (*store.ManifestRecord, domain.ResourceState, error) {
	if _, err := s.orch.FetchBuild(ctx, tenant, uuid); err != nil {
		return nil, domain.StateFailed, err
	}
	if rec, err := s.st.Manifests().Get(ctx, uuid); err == nil {
		return rec, domain.StateSucceeded, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, domain.StateFailed, err
	}

	if err := s.orch.FetchBuildManifest(ctx, uuid); err != nil {
		return nil, domain.StateFailed, err
	}
	st, _ := s.st.States().Get(ctx, uuid, domain.ResourceManifest)
	switch st {
	case domain.StateNotAvailable, domain.StateFailed:
		return nil, st, nil
	}
	rec, err := s.st.Manifests().Get(ctx, uuid)
	if err != nil {
		return nil, domain.StateFailed, fmt.Errorf("manifest vanished after fetch: %w", err)
	}
	return rec, domain.StateSucceeded, nil
}

func (s *buildInfoService) GetBuildset(ctx context.Context, tenant, uuid string, force bool) (*store.BuildsetRecord, error) {
	if err := s.orch.FetchBuildset(ctx, tenant, uuid, force); err != nil {
		return nil, err
	}
	return s.st.Buildsets().Get(ctx, uuid)
}
