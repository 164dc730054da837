package ontology

import (
	"fmt"
	"regexp"
	"strings"

	"ontoforge.dev/ontoerrors"
)

var namePattern = regexp.MustCompile(NamePattern)

// Issue is a single structural or referential validation failure, reported at a
// JSON-pointer-style location so callers can point a user at the offending field.
type Issue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// InvalidJSONErr wraps a JSON decode failure as a structural error.
func InvalidJSONErr(cause error) error {
	return ontoerrors.InvalidStructureErr("malformed ODL document: %v", cause)
}

// BuildIR validates doc in two layers — structural then referential — and returns
// a fully-populated IR, or the first layer's failures. Results are never partial:
// a structural failure never proceeds to referential checks.
func BuildIR(doc *Document) (*IR, error) {
	if issues := validateStructure(doc); len(issues) > 0 {
		return nil, ontoerrors.InvalidStructureErr("ODL document failed structural validation").WithDetails(issuesDetail(issues))
	}

	ir := toIR(doc)

	if issues := validateReferences(ir); len(issues) > 0 {
		return nil, ontoerrors.InvalidReferenceErr("ODL document failed referential validation").WithDetails(issuesDetail(issues))
	}

	return ir, nil
}

func issuesDetail(issues []Issue) map[string]any {
	return map[string]any{"issues": issues}
}

func validateStructure(doc *Document) []Issue {
	var issues []Issue
	add := func(loc, format string, args ...any) {
		issues = append(issues, Issue{Location: loc, Message: fmt.Sprintf(format, args...)})
	}

	if doc.Version == "" {
		add("/version", "version is required")
	}

	seenObjects := map[string]bool{}
	for i, o := range doc.Objects {
		loc := fmt.Sprintf("/objects/%d", i)
		if !namePattern.MatchString(o.Name) {
			add(loc+"/name", "object name %q does not match %s", o.Name, NamePattern)
		}
		if seenObjects[o.Name] {
			add(loc+"/name", "duplicate object name %q", o.Name)
		}
		seenObjects[o.Name] = true

		if len(o.Identifiers) == 0 {
			add(loc+"/identifiers", "object %q must declare at least one identifier", o.Name)
		}

		propNames := map[string]bool{}
		for j, p := range o.Properties {
			ploc := fmt.Sprintf("%s/properties/%d", loc, j)
			if !namePattern.MatchString(p.Name) {
				add(ploc+"/name", "property name %q does not match %s", p.Name, NamePattern)
			}
			if propNames[p.Name] {
				add(ploc+"/name", "duplicate property name %q on object %q", p.Name, o.Name)
			}
			propNames[p.Name] = true
			if p.Type == "" || !AllowedPropertyTypes[p.Type] {
				add(ploc+"/type", "property %q has unrecognized type %q", p.Name, p.Type)
			}
		}

		for _, id := range o.Identifiers {
			if !propNames[id] {
				add(loc+"/identifiers", "identifier %q is not a declared property of object %q", id, o.Name)
			}
		}
	}

	seenRel := map[string]bool{}
	for i, r := range doc.Relationships {
		loc := fmt.Sprintf("/relationships/%d", i)
		if !namePattern.MatchString(r.Name) {
			add(loc+"/name", "relationship name %q does not match %s", r.Name, NamePattern)
		}
		if seenRel[r.Name] {
			add(loc+"/name", "duplicate relationship name %q", r.Name)
		}
		seenRel[r.Name] = true
		if r.Cardinality != "" && !AllowedCardinalities[r.Cardinality] {
			add(loc+"/cardinality", "relationship %q has unrecognized cardinality %q", r.Name, r.Cardinality)
		}
	}

	seenMetric := map[string]bool{}
	for i, m := range doc.Metrics {
		loc := fmt.Sprintf("/metrics/%d", i)
		if !namePattern.MatchString(m.Name) {
			add(loc+"/name", "metric name %q does not match %s", m.Name, NamePattern)
		}
		if seenMetric[m.Name] {
			add(loc+"/name", "duplicate metric name %q", m.Name)
		}
		seenMetric[m.Name] = true
		if m.Type != "" && !AllowedMetricTypes[m.Type] {
			add(loc+"/type", "metric %q has unrecognized type %q", m.Name, m.Type)
		}
	}

	seenDim := map[string]bool{}
	for i, d := range doc.Dimensions {
		loc := fmt.Sprintf("/dimensions/%d", i)
		if !namePattern.MatchString(d.Name) {
			add(loc+"/name", "dimension name %q does not match %s", d.Name, NamePattern)
		}
		if seenDim[d.Name] {
			add(loc+"/name", "duplicate dimension name %q", d.Name)
		}
		seenDim[d.Name] = true
	}

	return issues
}

func toIR(doc *Document) *IR {
	ir := &IR{
		Version:     doc.Version,
		Name:        doc.Name,
		Description: doc.Description,
	}

	for _, o := range doc.Objects {
		obj := Object{
			Name:        o.Name,
			Description: o.Description,
			Identifiers: append([]string(nil), o.Identifiers...),
		}
		if o.Mapping != nil {
			obj.Mapping = &ObjectMapping{Table: o.Mapping.Table, Schema: o.Mapping.Schema, Database: o.Mapping.Database}
		}
		for _, p := range o.Properties {
			obj.Properties = append(obj.Properties, Property{
				Name:        p.Name,
				Type:        p.Type,
				Description: p.Description,
				Nullable:    p.Nullable == nil || *p.Nullable,
				Required:    p.Required != nil && *p.Required,
			})
		}
		ir.Objects = append(ir.Objects, obj)
	}

	for _, r := range doc.Relationships {
		rel := Relationship{
			Name:        r.Name,
			From:        r.From,
			To:          r.To,
			Cardinality: r.Cardinality,
			Description: r.Description,
		}
		for _, jk := range r.JoinKeys {
			rel.JoinKeys = append(rel.JoinKeys, JoinKey{From: jk[0], To: jk[1]})
		}
		ir.Relationships = append(ir.Relationships, rel)
	}

	for _, m := range doc.Metrics {
		ir.Metrics = append(ir.Metrics, Metric{
			Name:        m.Name,
			Expression:  m.Expression,
			Grain:       append([]string(nil), m.Grain...),
			Type:        m.Type,
			Format:      m.Format,
			Description: m.Description,
		})
	}

	for _, d := range doc.Dimensions {
		ir.Dimensions = append(ir.Dimensions, Dimension{
			Name:           d.Name,
			SourceProperty: d.SourceProperty,
			Type:           d.Type,
			Description:    d.Description,
		})
	}

	if doc.TargetMapping != nil {
		ir.TargetMapping = &TargetMapping{
			Database:      doc.TargetMapping.Database,
			Schema:        doc.TargetMapping.Schema,
			Warehouse:     doc.TargetMapping.Warehouse,
			TableMappings: doc.TargetMapping.TableMappings,
		}
	}

	return ir
}

// TypesCompatible implements the joinKey type-compatibility rule: string↔string
// or exact match; decimal and number are interchangeable; everything else must
// match exactly.
func TypesCompatible(a, b string) bool {
	if a == b {
		return true
	}
	numeric := map[string]bool{"decimal": true, "number": true}
	return numeric[a] && numeric[b]
}

func validateReferences(ir *IR) []Issue {
	var issues []Issue
	add := func(loc, format string, args ...any) {
		issues = append(issues, Issue{Location: loc, Message: fmt.Sprintf(format, args...)})
	}

	for i, r := range ir.Relationships {
		loc := fmt.Sprintf("/relationships/%d", i)
		fromObj, fromOK := ir.Object(r.From)
		if !fromOK {
			add(loc+"/from", "relationship %q references unknown object %q", r.Name, r.From)
		}
		toObj, toOK := ir.Object(r.To)
		if !toOK {
			add(loc+"/to", "relationship %q references unknown object %q", r.Name, r.To)
		}
		if !fromOK || !toOK {
			continue
		}
		for j, jk := range r.JoinKeys {
			jloc := fmt.Sprintf("%s/joinKeys/%d", loc, j)
			fromProp, ok := fromObj.Property(jk.From)
			if !ok {
				add(jloc, "join key property %q not declared on object %q", jk.From, fromObj.Name)
				continue
			}
			toProp, ok := toObj.Property(jk.To)
			if !ok {
				add(jloc, "join key property %q not declared on object %q", jk.To, toObj.Name)
				continue
			}
			if !TypesCompatible(fromProp.Type, toProp.Type) {
				add(jloc, "join key types incompatible: %s.%s (%s) vs %s.%s (%s)",
					fromObj.Name, jk.From, fromProp.Type, toObj.Name, jk.To, toProp.Type)
			}
		}
	}

	for i, d := range ir.Dimensions {
		loc := fmt.Sprintf("/dimensions/%d", i)
		objName, propName, ok := strings.Cut(d.SourceProperty, ".")
		if !ok {
			add(loc+"/sourceProperty", "dimension %q sourceProperty %q must be of the form Object.property", d.Name, d.SourceProperty)
			continue
		}
		obj, ok := ir.Object(objName)
		if !ok {
			add(loc+"/sourceProperty", "dimension %q references unknown object %q", d.Name, objName)
			continue
		}
		if _, ok := obj.Property(propName); !ok {
			add(loc+"/sourceProperty", "dimension %q references unknown property %q on object %q", d.Name, propName, objName)
		}
	}

	for i, m := range ir.Metrics {
		loc := fmt.Sprintf("/metrics/%d", i)
		if len(m.Grain) == 0 {
			add(loc+"/grain", "metric %q must declare a non-empty grain", m.Name)
		}
		for _, g := range m.Grain {
			if _, ok := ir.Object(g); !ok {
				add(loc+"/grain", "metric %q grain references unknown object %q", m.Name, g)
			}
		}
	}

	if ir.TargetMapping != nil {
		for objName := range ir.TargetMapping.TableMappings {
			if _, ok := ir.Object(objName); !ok {
				add("/targetMapping/tableMappings", "tableMappings references unknown object %q", objName)
			}
		}
	}

	return issues
}
