package store

import (
	"context"
	"fmt"

	"ontoforge.dev/config"
)

// Store composes every backend behind a single handle, matching the teacher's
// composite-repository pattern: each component takes one Store and degrades
// gracefully (the drift detector falls back to a Postgres dedup query without
// the cache) when an optional backend isn't configured; no pipeline stage
// reads the graph store. Versions and Admin are the
// only two that are never optional — every operation needs relational state.
type Store struct {
	Versions *VersionStore
	Runs     *RunStore
	Admin    *AdminStore
	Graph    *GraphStore // nil if Neo4j isn't configured
	Cache    *CacheStore // nil if Redis isn't configured

	pg       *PostgresPool
	docs     *DocumentStore
	graphRaw *GraphStore
	cacheRaw *CacheStore
}

// Open initializes every configured backend and wires them into a Store.
// Relational and document stores are required; graph and cache degrade to nil
// when their URI/Addr is left empty, per the Store aggregate's optionality
// contract. When loaded from the environment the graph URI has no default,
// while the cache address defaults to localhost:6379.
func Open(ctx context.Context, cfg *config.AllConfig) (*Store, error) {
	pg, err := NewPostgresPool(ctx, cfg.Relational.DSN)
	if err != nil {
		return nil, fmt.Errorf("open relational store: %w", err)
	}

	if err := migratePgxSchema(ctx, pg); err != nil {
		pg.Close()
		return nil, err
	}

	admin, err := NewAdminStore(cfg.Relational.DSN)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("open admin store: %w", err)
	}

	docs, err := NewDocumentStore(ctx, cfg.Documents.URL, cfg.Documents.Username, cfg.Documents.Password)
	if err != nil {
		pg.Close()
		_ = admin.Close()
		return nil, fmt.Errorf("open document store: %w", err)
	}

	s := &Store{
		pg:   pg,
		docs: docs,
		Admin: admin,
	}
	s.Versions = NewVersionStore(pg, docs)
	s.Runs = NewRunStore(pg)

	if cfg.Graph.URI != "" {
		graph, err := NewGraphStore(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if err != nil {
			return nil, fmt.Errorf("open graph store: %w", err)
		}
		s.Graph = graph
		s.graphRaw = graph
	}

	if cfg.Cache.Addr != "" {
		cache, err := NewCacheStore(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		s.Cache = cache
		s.cacheRaw = cache
	}

	return s, nil
}

// Postgres exposes the raw connection pool for callers that need to build
// their own backend on top of it (the async runner's StateStore, for
// instance) without duplicating Store's own open/close lifecycle.
func (s *Store) Postgres() *PostgresPool {
	return s.pg
}

// Close releases every backend's connections, best-effort: it closes each
// opened backend without stopping at the first failure and returns one error
// listing every failure reported by the cache, graph and admin stores.
func (s *Store) Close() error {
	var errs []error

	if s.cacheRaw != nil {
		if err := s.cacheRaw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.graphRaw != nil {
		if err := s.graphRaw.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	s.docs.Close()
	if err := s.Admin.Close(); err != nil {
		errs = append(errs, err)
	}
	s.pg.Close()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing store backends: %v", errs)
	}
	return nil
}
