package drift

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"ontoforge.dev/ontology"
	"ontoforge.dev/store"
	"ontoforge.dev/warehouse"
)

// renameThreshold is the maximum Levenshtein edit distance between a dropped
// and an added column name, at identical coarse type, for the pair to be
// reported as a rename instead of two separate events.
const renameThreshold = 2

type droppedColumn struct {
	object, table, column string
}

type addedColumn struct {
	object, table, column, coarseType string
}

// DetectMapping compares every object's declared properties against the
// warehouse catalog for its mapped table, in deterministic (sorted-by-name)
// object order. A table absent from the catalog entirely is TABLE_MISSING;
// otherwise columns are compared name-for-name with a coarse type
// equivalence, and a drop+add pair within renameThreshold edit distance at
// matching type is coalesced into a single COLUMN_RENAMED event instead of a
// COLUMN_DROPPED/COLUMN_ADDED pair.
func DetectMapping(ir *ontology.IR, catalog map[string]map[string]warehouse.CatalogColumn) []Event {
	objects := append([]ontology.Object(nil), ir.Objects...)
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })

	var events []Event
	for _, obj := range objects {
		table := ir.TableFor(&obj)
		cols, ok := catalog[table]
		if !ok {
			events = append(events, Event{Type: string(store.TableMissing), Details: TableMissingDetails{Object: obj.Name, Table: table}})
			continue
		}

		declared := map[string]ontology.Property{}
		for _, p := range obj.Properties {
			declared[p.Name] = p
		}

		var dropped []droppedColumn
		var added []addedColumn

		for name, prop := range declared {
			col, ok := cols[name]
			if !ok {
				dropped = append(dropped, droppedColumn{object: obj.Name, table: table, column: name})
				continue
			}
			if coarseEquivalent(prop.Type) != col.Type {
				events = append(events, Event{
					Type: string(store.ColumnTypeChanged),
					Details: ColumnTypeChangedDetails{
						Object: obj.Name, Table: table, Column: name,
						OldType: col.Type, NewType: coarseEquivalent(prop.Type),
					},
				})
			}
		}
		for name, col := range cols {
			if _, ok := declared[name]; !ok {
				added = append(added, addedColumn{object: obj.Name, table: table, column: name, coarseType: col.Type})
			}
		}

		sort.Slice(dropped, func(i, j int) bool { return dropped[i].column < dropped[j].column })
		sort.Slice(added, func(i, j int) bool { return added[i].column < added[j].column })

		consumedAdded := map[int]bool{}
		for _, d := range dropped {
			renamedTo := -1
			bestDist := renameThreshold + 1
			for i, a := range added {
				if consumedAdded[i] || a.coarseType != coarseEquivalent(declared[d.column].Type) {
					continue
				}
				dist := levenshtein.ComputeDistance(d.column, a.column)
				if dist <= renameThreshold && dist < bestDist {
					bestDist = dist
					renamedTo = i
				}
			}
			if renamedTo >= 0 {
				consumedAdded[renamedTo] = true
				events = append(events, Event{
					Type: string(store.ColumnRenamed),
					Details: ColumnRenamedDetails{
						Object: d.object, Table: d.table, From: d.column, To: added[renamedTo].column,
						Type: added[renamedTo].coarseType,
					},
				})
				continue
			}
			events = append(events, Event{Type: string(store.ColumnDropped), Details: ColumnDroppedDetails{Object: d.object, Table: d.table, Column: d.column}})
		}
		for i, a := range added {
			if consumedAdded[i] {
				continue
			}
			events = append(events, Event{Type: string(store.ColumnAdded), Details: ColumnAddedDetails{Object: a.object, Table: a.table, Column: a.column, Type: a.coarseType}})
		}
	}
	return events
}

// coarseEquivalent maps an ontology property type to the same coarse
// equivalence class the warehouse catalog's columns are already reported in
// (see warehouse.coarseType): varchar/string->string, number/decimal->decimal,
// boolean->boolean, date/timestamp->date.
func coarseEquivalent(propType string) string {
	switch propType {
	case "string", "varchar", "text", "char":
		return "string"
	case "number", "decimal", "numeric", "float", "double", "int", "integer", "bigint":
		return "decimal"
	case "boolean", "bool":
		return "boolean"
	case "date", "timestamp", "datetime":
		return "date"
	default:
		return propType
	}
}
