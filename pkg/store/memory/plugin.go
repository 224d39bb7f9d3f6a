// Package memory is the in-memory store plugin. It backs the CLI and tests;
// the server normally runs the redis plugin.
package memory

import (
	"context"
	"sync"

	"github.com/zuulview/zuulview/pkg/domain"
	"github.com/zuulview/zuulview/pkg/store"
)

func init() {
	store.RegisterProvider("memory", NewPlugin)
}

// Plugin implements store.Store over plain maps. A single RWMutex guards
// all of them; records are stored by reference and treated as immutable.
type Plugin struct {
	mu        sync.RWMutex
	builds    map[string]*store.BuildRecord
	buildsets map[string]*store.BuildsetRecord
	outputs   map[string]*store.OutputRecord
	manifests map[string]*store.ManifestRecord
	states    map[stateKey]domain.ResourceState
}

type stateKey struct {
	id  string
	res domain.Resource
}

// NewPlugin creates an in-memory store.
func NewPlugin(_ store.PluginConfig) (store.Store, error) {
	return &Plugin{
		builds:    make(map[string]*store.BuildRecord),
		buildsets: make(map[string]*store.BuildsetRecord),
		outputs:   make(map[string]*store.OutputRecord),
		manifests: make(map[string]*store.ManifestRecord),
		states:    make(map[stateKey]domain.ResourceState),
	}, nil
}

func (p *Plugin) Builds() store.BuildStorage       { return buildStorage{p} }
func (p *Plugin) Buildsets() store.BuildsetStorage { return buildsetStorage{p} }
func (p *Plugin) Outputs() store.OutputStorage     { return outputStorage{p} }
func (p *Plugin) Manifests() store.ManifestStorage { return manifestStorage{p} }
func (p *Plugin) States() store.StateStorage       { return stateStorage{p} }

func (p *Plugin) Health(ctx context.Context) error { return nil }
func (p *Plugin) Close() error                     { return nil }

type buildStorage struct{ p *Plugin }

func (s buildStorage) Get(_ context.Context, uuid string) (*store.BuildRecord, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	rec, ok := s.p.builds[uuid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (s buildStorage) Put(_ context.Context, uuid string, rec *store.BuildRecord) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.builds[uuid] = rec
	return nil
}

type buildsetStorage struct{ p *Plugin }

func (s buildsetStorage) Get(_ context.Context, uuid string) (*store.BuildsetRecord, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	rec, ok := s.p.buildsets[uuid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (s buildsetStorage) Put(_ context.Context, uuid string, rec *store.BuildsetRecord) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.buildsets[uuid] = rec
	return nil
}

type outputStorage struct{ p *Plugin }

func (s outputStorage) Get(_ context.Context, buildID string) (*store.OutputRecord, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	rec, ok := s.p.outputs[buildID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (s outputStorage) Put(_ context.Context, buildID string, rec *store.OutputRecord) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.outputs[buildID] = rec
	return nil
}

type manifestStorage struct{ p *Plugin }

func (s manifestStorage) Get(_ context.Context, buildID string) (*store.ManifestRecord, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	rec, ok := s.p.manifests[buildID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (s manifestStorage) Put(_ context.Context, buildID string, rec *store.ManifestRecord) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.manifests[buildID] = rec
	return nil
}

type stateStorage struct{ p *Plugin }

func (s stateStorage) Get(_ context.Context, id string, res domain.Resource) (domain.ResourceState, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	st, ok := s.p.states[stateKey{id, res}]
	if !ok {
		return domain.StateIdle, nil
	}
	return st, nil
}

func (s stateStorage) Set(_ context.Context, id string, res domain.Resource, st domain.ResourceState) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.states[stateKey{id, res}] = st
	return nil
}
