// Package redis is the redis-backed store plugin used by the serving layer:
// fetched build information is cached with a TTL so dashboard reloads do not
// hammer the upstream API.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/zuulview/zuulview/pkg/domain"
	"github.com/zuulview/zuulview/pkg/store"
)

func init() {
	store.RegisterProvider("redis", NewPlugin)
}

// Config is the plugin-specific configuration carried in the provider block.
type Config struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// Plugin implements store.Store over a redis client. Every record is one
// JSON blob under its own key, so replacement stays wholesale.
type Plugin struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPlugin creates a redis store from plugin configuration.
func NewPlugin(cfg store.PluginConfig) (store.Store, error) {
	var c Config
	if len(cfg.Config) > 0 {
		if err := json.Unmarshal(cfg.Config, &c); err != nil {
			return nil, fmt.Errorf("redis store config: %w", err)
		}
	}
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	return &Plugin{rdb: rdb, ttl: cfg.TTL}, nil
}

// NewPluginWithClient wraps an existing client; tests use it with miniredis.
func NewPluginWithClient(rdb *redis.Client, ttl time.Duration) *Plugin {
	return &Plugin{rdb: rdb, ttl: ttl}
}

func (p *Plugin) Builds() store.BuildStorage       { return jsonStorage[store.BuildRecord]{p, "zuulview:build:"} }
func (p *Plugin) Buildsets() store.BuildsetStorage { return jsonStorage[store.BuildsetRecord]{p, "zuulview:buildset:"} }
func (p *Plugin) Outputs() store.OutputStorage     { return jsonStorage[store.OutputRecord]{p, "zuulview:output:"} }
func (p *Plugin) Manifests() store.ManifestStorage { return jsonStorage[store.ManifestRecord]{p, "zuulview:manifest:"} }
func (p *Plugin) States() store.StateStorage       { return stateStorage{p} }

func (p *Plugin) Health(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func (p *Plugin) Close() error { return p.rdb.Close() }

type jsonStorage[T any] struct {
	p      *Plugin
	prefix string
}

func (s jsonStorage[T]) Get(ctx context.Context, id string) (*T, error) {
	js, err := s.p.rdb.Get(ctx, s.prefix+id).Result()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", s.prefix+id, err)
	}
	var rec T
	if err := json.Unmarshal([]byte(js), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", s.prefix+id, err)
	}
	return &rec, nil
}

func (s jsonStorage[T]) Put(ctx context.Context, id string, rec *T) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.prefix+id, err)
	}
	if err := s.p.rdb.Set(ctx, s.prefix+id, string(b), s.p.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", s.prefix+id, err)
	}
	return nil
}

type stateStorage struct{ p *Plugin }

func (s stateStorage) key(id string, res domain.Resource) string {
	return fmt.Sprintf("zuulview:state:%s:%s", id, res)
}

func (s stateStorage) Get(ctx context.Context, id string, res domain.Resource) (domain.ResourceState, error) {
	v, err := s.p.rdb.Get(ctx, s.key(id, res)).Result()
	if err == redis.Nil {
		return domain.StateIdle, nil
	}
	if err != nil {
		return domain.StateIdle, fmt.Errorf("redis GET state: %w", err)
	}
	return domain.ResourceState(v), nil
}

func (s stateStorage) Set(ctx context.Context, id string, res domain.Resource, st domain.ResourceState) error {
	if err := s.p.rdb.Set(ctx, s.key(id, res), st, s.p.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET state: %w", err)
	}
	return nil
}
