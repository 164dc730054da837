package evaluator

import (
	"fmt"
	"strings"

	"ontoforge.dev/ontology"
)

// Category groups gates into the three predefined bundles.
type Category string

const (
	Structural    Category = "structural"
	Semantic      Category = "semantic"
	Deployability Category = "deployability"
)

// Level is the severity a gate reports on failure.
type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Outcome is one gate's verdict against a given IR.
type Outcome struct {
	Level   Level  `json:"level"`
	Message string `json:"message,omitempty"`
}

func ok() Outcome { return Outcome{Level: LevelOK} }

func failed(level Level, format string, args ...any) Outcome {
	return Outcome{Level: level, Message: fmt.Sprintf(format, args...)}
}

// Gate is a single named predicate, scoped to one category.
type Gate struct {
	ID       string
	Category Category
	Run      func(ir *ontology.IR) Outcome
}

var forbiddenExpressionTokens = []string{";", "DROP ", "GRANT "}

// gates lists every predefined gate in a fixed, deterministic order. Bundles are
// simply filters over this list by Category, so adding a gate to a bundle is a
// one-line addition here rather than a second registry to keep in sync.
var gates = []Gate{
	{ID: "no_duplicate_names", Category: Structural, Run: gateNoDuplicateNames},
	{ID: "object_has_identifier", Category: Structural, Run: gateObjectHasIdentifier},
	{ID: "identifier_refers_to_property", Category: Structural, Run: gateIdentifierRefersToProperty},
	{ID: "property_type_nonempty", Category: Structural, Run: gatePropertyTypeNonempty},

	{ID: "relationship_joinkeys_compatible", Category: Semantic, Run: gateRelationshipJoinKeysCompatible},
	{ID: "dimension_resolvable", Category: Semantic, Run: gateDimensionResolvable},
	{ID: "metric_grain_valid", Category: Semantic, Run: gateMetricGrainValid},
	{ID: "metric_expression_safe", Category: Semantic, Run: gateMetricExpressionSafe},

	{ID: "object_table_mapping", Category: Deployability, Run: gateObjectTableMapping},
	{ID: "database_schema_set", Category: Deployability, Run: gateDatabaseSchemaSet},
	{ID: "warehouse_specified", Category: Deployability, Run: gateWarehouseSpecified},
}

func gateNoDuplicateNames(ir *ontology.IR) Outcome {
	dup := func(names []string) string {
		seen := map[string]bool{}
		for _, n := range names {
			if seen[n] {
				return n
			}
			seen[n] = true
		}
		return ""
	}

	var objNames, relNames, metricNames, dimNames []string
	for _, o := range ir.Objects {
		objNames = append(objNames, o.Name)
	}
	for _, r := range ir.Relationships {
		relNames = append(relNames, r.Name)
	}
	for _, m := range ir.Metrics {
		metricNames = append(metricNames, m.Name)
	}
	for _, d := range ir.Dimensions {
		dimNames = append(dimNames, d.Name)
	}

	if n := dup(objNames); n != "" {
		return failed(LevelError, "duplicate object name %q", n)
	}
	if n := dup(relNames); n != "" {
		return failed(LevelError, "duplicate relationship name %q", n)
	}
	if n := dup(metricNames); n != "" {
		return failed(LevelError, "duplicate metric name %q", n)
	}
	if n := dup(dimNames); n != "" {
		return failed(LevelError, "duplicate dimension name %q", n)
	}
	return ok()
}

func gateObjectHasIdentifier(ir *ontology.IR) Outcome {
	for _, o := range ir.Objects {
		if len(o.Identifiers) == 0 {
			return failed(LevelError, "object %q has no identifiers", o.Name)
		}
	}
	return ok()
}

func gateIdentifierRefersToProperty(ir *ontology.IR) Outcome {
	for _, o := range ir.Objects {
		for _, id := range o.Identifiers {
			if _, found := o.Property(id); !found {
				return failed(LevelError, "object %q identifier %q is not a declared property", o.Name, id)
			}
		}
	}
	return ok()
}

func gatePropertyTypeNonempty(ir *ontology.IR) Outcome {
	for _, o := range ir.Objects {
		for _, p := range o.Properties {
			if p.Type == "" {
				return failed(LevelError, "object %q property %q has no type", o.Name, p.Name)
			}
		}
	}
	return ok()
}

func gateRelationshipJoinKeysCompatible(ir *ontology.IR) Outcome {
	for _, r := range ir.Relationships {
		fromObj, ok1 := ir.Object(r.From)
		toObj, ok2 := ir.Object(r.To)
		if !ok1 || !ok2 {
			return failed(LevelError, "relationship %q references an undeclared object", r.Name)
		}
		for _, jk := range r.JoinKeys {
			fromProp, ok1 := fromObj.Property(jk.From)
			toProp, ok2 := toObj.Property(jk.To)
			if !ok1 || !ok2 {
				return failed(LevelError, "relationship %q join key references an undeclared property", r.Name)
			}
			if !ontology.TypesCompatible(fromProp.Type, toProp.Type) {
				return failed(LevelError, "relationship %q join key types incompatible: %s vs %s", r.Name, fromProp.Type, toProp.Type)
			}
		}
	}
	return ok()
}

func gateDimensionResolvable(ir *ontology.IR) Outcome {
	for _, d := range ir.Dimensions {
		objName, propName, found := strings.Cut(d.SourceProperty, ".")
		if !found {
			return failed(LevelError, "dimension %q sourceProperty %q is malformed", d.Name, d.SourceProperty)
		}
		obj, ok := ir.Object(objName)
		if !ok {
			return failed(LevelError, "dimension %q references undeclared object %q", d.Name, objName)
		}
		if _, ok := obj.Property(propName); !ok {
			return failed(LevelError, "dimension %q references undeclared property %q", d.Name, d.SourceProperty)
		}
	}
	return ok()
}

func gateMetricGrainValid(ir *ontology.IR) Outcome {
	for _, m := range ir.Metrics {
		if len(m.Grain) == 0 {
			return failed(LevelError, "metric %q has empty grain", m.Name)
		}
		for _, g := range m.Grain {
			if _, ok := ir.Object(g); !ok {
				return failed(LevelError, "metric %q grain references undeclared object %q", m.Name, g)
			}
		}
	}
	return ok()
}

func gateMetricExpressionSafe(ir *ontology.IR) Outcome {
	for _, m := range ir.Metrics {
		if strings.TrimSpace(m.Expression) == "" {
			return failed(LevelError, "metric %q has an empty expression", m.Name)
		}
		upper := strings.ToUpper(m.Expression)
		for _, tok := range forbiddenExpressionTokens {
			if strings.Contains(upper, strings.ToUpper(tok)) {
				return failed(LevelError, "metric %q expression contains forbidden token %q", m.Name, strings.TrimSpace(tok))
			}
		}
	}
	return ok()
}

func gateObjectTableMapping(ir *ontology.IR) Outcome {
	for _, o := range ir.Objects {
		if o.Mapping != nil && o.Mapping.Table != "" {
			continue
		}
		if ir.TargetMapping != nil {
			if _, mapped := ir.TargetMapping.TableMappings[o.Name]; mapped {
				continue
			}
		}
		return failed(LevelError, "object %q has no table mapping", o.Name)
	}
	return ok()
}

func gateDatabaseSchemaSet(ir *ontology.IR) Outcome {
	globalSet := ir.TargetMapping != nil && ir.TargetMapping.Database != "" && ir.TargetMapping.Schema != ""
	for _, o := range ir.Objects {
		perObjectSet := o.Mapping != nil && o.Mapping.Database != "" && o.Mapping.Schema != ""
		if !globalSet && !perObjectSet {
			return failed(LevelError, "object %q has no database/schema, neither globally nor per-object", o.Name)
		}
	}
	return ok()
}

func gateWarehouseSpecified(ir *ontology.IR) Outcome {
	if ir.TargetMapping == nil || ir.TargetMapping.Warehouse == "" {
		return failed(LevelWarning, "no warehouse specified in targetMapping")
	}
	return ok()
}
