// Package ontology implements the ontology intermediate representation (IR), the
// structural and referential validator that builds it from an ODL document, and
// the canonical normalizer used for reproducible hashing and diffing.
package ontology

// AllowedPropertyTypes enumerates the property types recognized by structural
// validation.
var AllowedPropertyTypes = map[string]bool{
	"string": true, "number": true, "integer": true, "decimal": true,
	"boolean": true, "date": true, "timestamp": true, "time": true,
	"array": true, "object": true,
}

// AllowedCardinalities enumerates the relationship cardinalities recognized by
// structural validation.
var AllowedCardinalities = map[string]bool{
	"one_to_one": true, "one_to_many": true, "many_to_one": true, "many_to_many": true,
}

// AllowedMetricTypes enumerates the metric types recognized by structural
// validation.
var AllowedMetricTypes = map[string]bool{
	"sum": true, "count": true, "average": true, "min": true, "max": true,
	"distinct_count": true, "custom": true,
}

// CardinalityRank orders cardinalities from loosest to strictest, used by the diff
// engine to classify relationship.cardinality_changed.
var CardinalityRank = map[string]int{
	"many_to_many": 0, "one_to_many": 1, "many_to_one": 1, "one_to_one": 2,
}

// NamePattern is the allowed identifier shape for every named entity in an IR.
const NamePattern = `^[A-Za-z][A-Za-z0-9_]*$`

// Property is a single field on an Object.
type Property struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Nullable    bool   `yaml:"nullable" json:"nullable"`
	Required    bool   `yaml:"required" json:"required"`
}

// ObjectMapping carries per-object warehouse overrides.
type ObjectMapping struct {
	Table    string `yaml:"table,omitempty" json:"table,omitempty"`
	Schema   string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
}

// Object is a declared entity with an ordered identifier list and a property set.
type Object struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Identifiers []string   `yaml:"identifiers" json:"identifiers"`
	Properties  []Property `yaml:"properties" json:"properties"`
	Mapping     *ObjectMapping `yaml:"mapping,omitempty" json:"mapping,omitempty"`
}

// Property looks up a property by name, returning (prop, true) if found.
func (o *Object) Property(name string) (Property, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// JoinKey is one (fromProperty, toProperty) pair in a relationship's joinKeys list.
type JoinKey struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Relationship links two objects over one or more join key pairs.
type Relationship struct {
	Name        string    `yaml:"name" json:"name"`
	From        string    `yaml:"from" json:"from"`
	To          string    `yaml:"to" json:"to"`
	JoinKeys    []JoinKey `yaml:"joinKeys" json:"joinKeys"`
	Cardinality string    `yaml:"cardinality,omitempty" json:"cardinality,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// Metric is a named, SQL-like aggregate expression meaningful at a grain of objects.
type Metric struct {
	Name        string   `yaml:"name" json:"name"`
	Expression  string   `yaml:"expression" json:"expression"`
	Grain       []string `yaml:"grain" json:"grain"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Format      string   `yaml:"format,omitempty" json:"format,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Dimension resolves to a single object's property.
type Dimension struct {
	Name           string `yaml:"name" json:"name"`
	SourceProperty string `yaml:"sourceProperty" json:"sourceProperty"`
	Type           string `yaml:"type,omitempty" json:"type,omitempty"`
	Description    string `yaml:"description,omitempty" json:"description,omitempty"`
}

// TargetMapping carries the warehouse-wide defaults and the object→table map.
type TargetMapping struct {
	Database      string            `yaml:"database" json:"database"`
	Schema        string            `yaml:"schema" json:"schema"`
	Warehouse     string            `yaml:"warehouse,omitempty" json:"warehouse,omitempty"`
	TableMappings map[string]string `yaml:"tableMappings,omitempty" json:"tableMappings,omitempty"`
}

// IR is the fully validated, in-memory representation of one ODL document.
type IR struct {
	Version       string          `yaml:"version" json:"version"`
	Name          string          `yaml:"name,omitempty" json:"name,omitempty"`
	Description   string          `yaml:"description,omitempty" json:"description,omitempty"`
	Objects       []Object        `yaml:"objects" json:"objects"`
	Relationships []Relationship  `yaml:"relationships" json:"relationships"`
	Metrics       []Metric        `yaml:"metrics" json:"metrics"`
	Dimensions    []Dimension     `yaml:"dimensions" json:"dimensions"`
	TargetMapping *TargetMapping  `yaml:"targetMapping,omitempty" json:"targetMapping,omitempty"`
}

// Object looks up a declared object by name.
func (ir *IR) Object(name string) (*Object, bool) {
	for i := range ir.Objects {
		if ir.Objects[i].Name == name {
			return &ir.Objects[i], true
		}
	}
	return nil, false
}

// TableFor resolves the logical table name the compiler should use for an object,
// preferring the per-object mapping, then the global tableMappings entry, then
// a snake_case fallback of the object name.
func (ir *IR) TableFor(obj *Object) string {
	if obj.Mapping != nil && obj.Mapping.Table != "" {
		return obj.Mapping.Table
	}
	if ir.TargetMapping != nil {
		if table, ok := ir.TargetMapping.TableMappings[obj.Name]; ok {
			return table
		}
	}
	return snakeCase(obj.Name)
}

func snakeCase(name string) string {
	out := make([]byte, 0, len(name)+4)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			out = append(out, c-'A'+'a')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
