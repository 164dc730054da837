package compiler

import (
	"fmt"
	"sort"
	"strings"

	"ontoforge.dev/ontology"
)

// Compile produces the LogicalModel for one version. ir must already have
// passed the C1 Validator and a C5 Evaluate call under the chosen profile —
// Compile assumes TargetMapping, identifiers, and join keys are well-formed
// and does not re-validate them.
func Compile(ir *ontology.IR, versionNumber int, contentHash string) (*LogicalModel, error) {
	if ir.TargetMapping == nil {
		return nil, fmt.Errorf("compile %s: no targetMapping set", ir.Name)
	}

	model := &LogicalModel{
		SourceOntology: ir.Name,
		VersionNumber:  versionNumber,
		ContentHash:    contentHash,
		Database:       ir.TargetMapping.Database,
		Schema:         ir.TargetMapping.Schema,
		Warehouse:      ir.TargetMapping.Warehouse,
	}

	tableByObject := make(map[string]Table, len(ir.Objects))
	for _, obj := range ir.Objects {
		t := compileTable(ir, obj)
		tableByObject[obj.Name] = t
		model.Tables = append(model.Tables, t)
	}
	sort.Slice(model.Tables, func(i, j int) bool { return model.Tables[i].Object < model.Tables[j].Object })

	ordered, usedTopological := orderRelationships(ir.Relationships)
	if usedTopological {
		model.JoinOrderNote = "join order computed via topological sort over the relationship graph"
	} else {
		model.JoinOrderNote = "relationship graph contains a cycle; join order falls back to lexicographic order by relationship name"
	}
	for _, rel := range ordered {
		fromTable, ok := tableByObject[rel.From]
		if !ok {
			return nil, fmt.Errorf("compile relationship %s: unknown object %s", rel.Name, rel.From)
		}
		toTable, ok := tableByObject[rel.To]
		if !ok {
			return nil, fmt.Errorf("compile relationship %s: unknown object %s", rel.Name, rel.To)
		}
		join := Join{
			Name:        rel.Name,
			FromTable:   qualifiedTable(fromTable),
			ToTable:     qualifiedTable(toTable),
			Cardinality: rel.Cardinality,
		}
		for _, jk := range rel.JoinKeys {
			join.JoinKeys = append(join.JoinKeys, JoinKeyPair{From: jk.From, To: jk.To})
		}
		model.Joins = append(model.Joins, join)
	}

	for _, m := range ir.Metrics {
		model.Metrics = append(model.Metrics, CompiledMetric{
			Name:       m.Name,
			Expression: m.Expression,
			Grain:      append([]string(nil), m.Grain...),
			Type:       m.Type,
			Format:     m.Format,
		})
	}
	sort.Slice(model.Metrics, func(i, j int) bool { return model.Metrics[i].Name < model.Metrics[j].Name })

	for _, d := range ir.Dimensions {
		objName, propName, ok := strings.Cut(d.SourceProperty, ".")
		if !ok {
			return nil, fmt.Errorf("compile dimension %s: sourceProperty %q must be Object.property", d.Name, d.SourceProperty)
		}
		table, ok := tableByObject[objName]
		if !ok {
			return nil, fmt.Errorf("compile dimension %s: unknown object %s", d.Name, objName)
		}
		model.Dimensions = append(model.Dimensions, CompiledDimension{
			Name:   d.Name,
			Table:  qualifiedTable(table),
			Column: propName,
			Type:   d.Type,
		})
	}
	sort.Slice(model.Dimensions, func(i, j int) bool { return model.Dimensions[i].Name < model.Dimensions[j].Name })

	return model, nil
}

func compileTable(ir *ontology.IR, obj ontology.Object) Table {
	t := Table{
		Object:     obj.Name,
		Name:       ir.TableFor(&obj),
		Database:   ir.TargetMapping.Database,
		Schema:     ir.TargetMapping.Schema,
		PrimaryKey: append([]string(nil), obj.Identifiers...),
	}
	if obj.Mapping != nil {
		if obj.Mapping.Database != "" {
			t.Database = obj.Mapping.Database
		}
		if obj.Mapping.Schema != "" {
			t.Schema = obj.Mapping.Schema
		}
	}
	for _, p := range obj.Properties {
		t.Columns = append(t.Columns, Column{Name: p.Name, Type: p.Type, Nullable: p.Nullable, Required: p.Required})
	}
	sort.Slice(t.Columns, func(i, j int) bool { return t.Columns[i].Name < t.Columns[j].Name })
	return t
}

func qualifiedTable(t Table) string {
	return fmt.Sprintf("%s.%s.%s", t.Database, t.Schema, t.Name)
}
