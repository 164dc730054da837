package drift

import (
	"context"
	"fmt"
	"time"

	"ontoforge.dev/ontology"
	"ontoforge.dev/store"
	"ontoforge.dev/warehouse"
)

// dedupTTL bounds how long the Redis-side dedup index is trusted before a
// lookup falls back to the authoritative Postgres check.
const dedupTTL = 24 * time.Hour

// Detector runs the two C8 probes and persists newly discovered events,
// coalescing duplicates by {ontology, event_type, details-hash}.
type Detector struct {
	warehouse warehouse.Adapter
	cache     *store.CacheStore // nil if Redis isn't configured; falls back to runs.DriftEventExists
	runs      *store.RunStore
}

// NewDetector wires a warehouse adapter and the store's cache/run backends
// into a Detector. cache may be nil — every lookup and mark-open falls back
// to skipping the fast path and relying on runs.DriftEventExists instead.
func NewDetector(adapter warehouse.Adapter, cache *store.CacheStore, runs *store.RunStore) *Detector {
	return &Detector{warehouse: adapter, cache: cache, runs: runs}
}

// RunMapping executes the mapping-drift probe for ontologyID against
// database.schema and persists any newly discovered events.
func (d *Detector) RunMapping(ctx context.Context, ontologyID string, ir *ontology.IR, database, schema string) ([]*store.DriftEvent, error) {
	catalog, err := d.warehouse.ListCatalog(ctx, database, schema)
	if err != nil {
		return nil, fmt.Errorf("list catalog for mapping drift: %w", err)
	}
	return d.record(ctx, ontologyID, DetectMapping(ir, catalog))
}

// RunView executes the view-drift probe: export the live view and compare it
// byte-for-byte to deployedYAML. The exported YAML is used exactly as the
// warehouse returns it; it is not normalized before the comparison.
func (d *Detector) RunView(ctx context.Context, ontologyID, viewFQN string, deployedYAML []byte) ([]*store.DriftEvent, error) {
	live, err := d.warehouse.ExportExisting(ctx, viewFQN)
	if err != nil {
		return nil, fmt.Errorf("export existing view for view drift: %w", err)
	}
	ev := DetectView(viewFQN, deployedYAML, []byte(live))
	if ev == nil {
		return nil, nil
	}
	return d.record(ctx, ontologyID, []Event{*ev})
}

// record deduplicates each discovered event against the open-event index and
// persists only the ones not already open.
func (d *Detector) record(ctx context.Context, ontologyID string, events []Event) ([]*store.DriftEvent, error) {
	var persisted []*store.DriftEvent
	for _, e := range events {
		canonical, err := canonicalDetailsJSON(e.Details)
		if err != nil {
			return persisted, fmt.Errorf("marshal drift details for %s: %w", e.Type, err)
		}
		hash := detailsHash(canonical)
		eventType := store.DriftEventType(e.Type)

		if d.cache != nil {
			if _, found, err := d.cache.LookupOpenDriftEvent(ctx, ontologyID, eventType, hash); err == nil && found {
				continue
			}
		}
		if exists, err := d.runs.DriftEventExists(ctx, ontologyID, eventType, hash); err == nil && exists {
			continue
		}

		ev, err := d.runs.WriteDriftEvent(ctx, ontologyID, eventType, canonical, hash)
		if err != nil {
			return persisted, fmt.Errorf("write drift event %s: %w", e.Type, err)
		}
		if d.cache != nil {
			_ = d.cache.MarkDriftEventOpen(ctx, ontologyID, eventType, hash, ev.ID, dedupTTL)
		}
		persisted = append(persisted, ev)
	}
	return persisted, nil
}
