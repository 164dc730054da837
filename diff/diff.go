// Package diff implements the C4 diff engine: given two normalized ontology IRs,
// it produces a deterministic, ordered list of classified changes plus summary
// counts. Callers are expected to pass already-normalized IRs (ontology.Normalize)
// so that identical inputs always yield byte-identical output.
package diff

import (
	"sort"

	"ontoforge.dev/ontology"
)

// Severity classifies a Change as safe to promote automatically or not.
type Severity string

const (
	Breaking    Severity = "breaking"
	NonBreaking Severity = "non-breaking"
)

// Kind enumerates the change taxonomy.
type Kind string

const (
	ObjectAdded                 Kind = "object.added"
	ObjectRemoved                Kind = "object.removed"
	ObjectRenamed                Kind = "object.renamed"
	PropertyAdded                Kind = "property.added"
	PropertyRemoved              Kind = "property.removed"
	PropertyTypeChanged          Kind = "property.type_changed"
	PropertyNullableChanged      Kind = "property.nullable_changed"
	PropertyRequiredChanged      Kind = "property.required_changed"
	IdentifierChanged            Kind = "identifier.changed"
	RelationshipAdded            Kind = "relationship.added"
	RelationshipRemoved          Kind = "relationship.removed"
	RelationshipJoinKeysChanged  Kind = "relationship.joinkeys_changed"
	RelationshipCardinalityChanged Kind = "relationship.cardinality_changed"
	MetricAdded                  Kind = "metric.added"
	MetricRemoved                Kind = "metric.removed"
	MetricExpressionChanged      Kind = "metric.expression_changed"
	MetricGrainChanged           Kind = "metric.grain_changed"
	DimensionAdded                Kind = "dimension.added"
	DimensionRemoved              Kind = "dimension.removed"
	DimensionSourceChanged        Kind = "dimension.source_changed"
)

// Change is a single classified difference between two versions.
type Change struct {
	Path     string   `json:"path"`
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// Summary aggregates the change list into counts consumed by the evaluator and by
// API/CLI callers that just want a breaking/non-breaking verdict.
type Summary struct {
	Counts           map[Kind]int `json:"counts"`
	TotalBreaking    int          `json:"total_breaking"`
	TotalNonBreaking int          `json:"total_non_breaking"`
	HasBreaking      bool         `json:"has_breaking"`
}

// Result is the full C4 output for a (old, new) version pair.
type Result struct {
	Changes []Change `json:"changes"`
	Summary Summary  `json:"summary"`
}

func (r *Result) add(path string, kind Kind, severity Severity, detail string) {
	r.Changes = append(r.Changes, Change{Path: path, Kind: kind, Severity: severity, Detail: detail})
}

func finalize(r *Result) *Result {
	r.Summary.Counts = map[Kind]int{}
	for _, c := range r.Changes {
		r.Summary.Counts[c.Kind]++
		if c.Severity == Breaking {
			r.Summary.TotalBreaking++
		} else {
			r.Summary.TotalNonBreaking++
		}
	}
	r.Summary.HasBreaking = r.Summary.TotalBreaking > 0
	return r
}

// Compute classifies every difference between old and new. Both IRs must already
// be normalized (sorted, defaulted) — Compute does not normalize its inputs, so
// that determinism is provable from Normalize's own idempotence property alone.
func Compute(old, new *ontology.IR) *Result {
	r := &Result{}

	diffObjects(r, old, new)
	diffRelationships(r, old.Relationships, new.Relationships)
	diffMetrics(r, old.Metrics, new.Metrics)
	diffDimensions(r, old.Dimensions, new.Dimensions)

	return finalize(r)
}

func objectNames(objs []ontology.Object) map[string]*ontology.Object {
	m := make(map[string]*ontology.Object, len(objs))
	for i := range objs {
		m[objs[i].Name] = &objs[i]
	}
	return m
}

func propertyNameSet(o *ontology.Object) map[string]bool {
	s := make(map[string]bool, len(o.Properties))
	for _, p := range o.Properties {
		s[p.Name] = true
	}
	return s
}

func propertyOverlap(a, b *ontology.Object) float64 {
	as, bs := propertyNameSet(a), propertyNameSet(b)
	union := map[string]bool{}
	common := 0
	for n := range as {
		union[n] = true
		if bs[n] {
			common++
		}
	}
	for n := range bs {
		union[n] = true
	}
	if len(union) == 0 {
		return 1
	}
	return float64(common) / float64(len(union))
}

func identifiersEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffObjects(r *Result, old, new *ontology.IR) {
	oldMap := objectNames(old.Objects)
	newMap := objectNames(new.Objects)

	var removedNames, addedNames []string
	for name := range oldMap {
		if _, ok := newMap[name]; !ok {
			removedNames = append(removedNames, name)
		}
	}
	for name := range newMap {
		if _, ok := oldMap[name]; !ok {
			addedNames = append(addedNames, name)
		}
	}
	sort.Strings(removedNames)
	sort.Strings(addedNames)

	renamedOld := map[string]bool{}
	renamedNew := map[string]bool{}

	for _, oldName := range removedNames {
		oldObj := oldMap[oldName]
		var candidates []string
		for _, newName := range addedNames {
			if renamedNew[newName] {
				continue
			}
			newObj := newMap[newName]
			if identifiersEqual(oldObj.Identifiers, newObj.Identifiers) && propertyOverlap(oldObj, newObj) >= 0.8 {
				candidates = append(candidates, newName)
			}
		}
		if len(candidates) == 1 {
			renamedOld[oldName] = true
			renamedNew[candidates[0]] = true
			r.add("/objects/"+oldName, ObjectRenamed, Breaking, "renamed to "+candidates[0])
		}
	}

	for _, name := range removedNames {
		if !renamedOld[name] {
			r.add("/objects/"+name, ObjectRemoved, Breaking, "")
		}
	}
	for _, name := range addedNames {
		if !renamedNew[name] {
			r.add("/objects/"+name, ObjectAdded, NonBreaking, "")
		}
	}

	var commonNames []string
	for name := range oldMap {
		if _, ok := newMap[name]; ok {
			commonNames = append(commonNames, name)
		}
	}
	sort.Strings(commonNames)
	for _, name := range commonNames {
		diffObjectBody(r, oldMap[name], newMap[name])
	}
}

func diffObjectBody(r *Result, old, new *ontology.Object) {
	base := "/objects/" + old.Name

	if !identifiersEqual(old.Identifiers, new.Identifiers) {
		r.add(base+"/identifiers", IdentifierChanged, Breaking, "")
	}

	oldProps := make(map[string]ontology.Property, len(old.Properties))
	for _, p := range old.Properties {
		oldProps[p.Name] = p
	}
	newProps := make(map[string]ontology.Property, len(new.Properties))
	for _, p := range new.Properties {
		newProps[p.Name] = p
	}

	var removed, added, common []string
	for n := range oldProps {
		if _, ok := newProps[n]; ok {
			common = append(common, n)
		} else {
			removed = append(removed, n)
		}
	}
	for n := range newProps {
		if _, ok := oldProps[n]; !ok {
			added = append(added, n)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	sort.Strings(common)

	for _, n := range added {
		p := newProps[n]
		ploc := base + "/properties/" + n
		severity := NonBreaking
		if !p.Nullable && p.Required {
			severity = Breaking
		}
		r.add(ploc, PropertyAdded, severity, "")
	}
	for _, n := range removed {
		r.add(base+"/properties/"+n, PropertyRemoved, Breaking, "")
	}
	for _, n := range common {
		diffProperty(r, base+"/properties/"+n, oldProps[n], newProps[n])
	}
}

var safeWidenings = map[[2]string]bool{
	{"integer", "decimal"}:  true,
	{"integer", "number"}:   true,
	{"decimal", "number"}:   true,
	{"date", "timestamp"}:   true,
}

func diffProperty(r *Result, loc string, old, new ontology.Property) {
	if old.Type != new.Type {
		severity := Breaking
		if safeWidenings[[2]string{old.Type, new.Type}] {
			severity = NonBreaking
		}
		r.add(loc+"/type", PropertyTypeChanged, severity, old.Type+" -> "+new.Type)
	}
	if old.Nullable != new.Nullable {
		severity := NonBreaking
		if old.Nullable && !new.Nullable {
			severity = Breaking
		}
		r.add(loc+"/nullable", PropertyNullableChanged, severity, "")
	}
	if old.Required != new.Required {
		severity := NonBreaking
		if !old.Required && new.Required {
			severity = Breaking
		}
		r.add(loc+"/required", PropertyRequiredChanged, severity, "")
	}
}

func joinKeysEqual(a, b []ontology.JoinKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffRelationships(r *Result, old, new []ontology.Relationship) {
	oldMap := make(map[string]ontology.Relationship, len(old))
	for _, rel := range old {
		oldMap[rel.Name] = rel
	}
	newMap := make(map[string]ontology.Relationship, len(new))
	for _, rel := range new {
		newMap[rel.Name] = rel
	}

	var removed, added, common []string
	for n := range oldMap {
		if _, ok := newMap[n]; ok {
			common = append(common, n)
		} else {
			removed = append(removed, n)
		}
	}
	for n := range newMap {
		if _, ok := oldMap[n]; !ok {
			added = append(added, n)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	sort.Strings(common)

	for _, n := range added {
		r.add("/relationships/"+n, RelationshipAdded, NonBreaking, "")
	}
	for _, n := range removed {
		r.add("/relationships/"+n, RelationshipRemoved, Breaking, "")
	}
	for _, n := range common {
		o, nw := oldMap[n], newMap[n]
		loc := "/relationships/" + n
		if !joinKeysEqual(o.JoinKeys, nw.JoinKeys) {
			r.add(loc+"/joinKeys", RelationshipJoinKeysChanged, Breaking, "")
		}
		if o.Cardinality != nw.Cardinality && o.Cardinality != "" && nw.Cardinality != "" {
			severity := NonBreaking
			if ontology.CardinalityRank[nw.Cardinality] > ontology.CardinalityRank[o.Cardinality] {
				severity = Breaking
			}
			r.add(loc+"/cardinality", RelationshipCardinalityChanged, severity, o.Cardinality+" -> "+nw.Cardinality)
		}
	}
}

func grainEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffMetrics(r *Result, old, new []ontology.Metric) {
	oldMap := make(map[string]ontology.Metric, len(old))
	for _, m := range old {
		oldMap[m.Name] = m
	}
	newMap := make(map[string]ontology.Metric, len(new))
	for _, m := range new {
		newMap[m.Name] = m
	}

	var removed, added, common []string
	for n := range oldMap {
		if _, ok := newMap[n]; ok {
			common = append(common, n)
		} else {
			removed = append(removed, n)
		}
	}
	for n := range newMap {
		if _, ok := oldMap[n]; !ok {
			added = append(added, n)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	sort.Strings(common)

	for _, n := range added {
		r.add("/metrics/"+n, MetricAdded, NonBreaking, "")
	}
	for _, n := range removed {
		r.add("/metrics/"+n, MetricRemoved, Breaking, "")
	}
	for _, n := range common {
		o, nw := oldMap[n], newMap[n]
		loc := "/metrics/" + n
		if o.Expression != nw.Expression {
			r.add(loc+"/expression", MetricExpressionChanged, Breaking, "")
		}
		if !grainEqual(o.Grain, nw.Grain) {
			r.add(loc+"/grain", MetricGrainChanged, Breaking, "")
		}
	}
}

func diffDimensions(r *Result, old, new []ontology.Dimension) {
	oldMap := make(map[string]ontology.Dimension, len(old))
	for _, d := range old {
		oldMap[d.Name] = d
	}
	newMap := make(map[string]ontology.Dimension, len(new))
	for _, d := range new {
		newMap[d.Name] = d
	}

	var removed, added, common []string
	for n := range oldMap {
		if _, ok := newMap[n]; ok {
			common = append(common, n)
		} else {
			removed = append(removed, n)
		}
	}
	for n := range newMap {
		if _, ok := oldMap[n]; !ok {
			added = append(added, n)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	sort.Strings(common)

	for _, n := range added {
		r.add("/dimensions/"+n, DimensionAdded, NonBreaking, "")
	}
	for _, n := range removed {
		r.add("/dimensions/"+n, DimensionRemoved, Breaking, "")
	}
	for _, n := range common {
		if oldMap[n].SourceProperty != newMap[n].SourceProperty {
			r.add("/dimensions/"+n+"/sourceProperty", DimensionSourceChanged, Breaking, "")
		}
	}
}
