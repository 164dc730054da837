// Package compiler implements the C6 Compiler: it turns a version's validated
// ontology IR into an ArtifactBundle — a compiled semantic model (YAML) plus
// the SQL scripts that verify, deploy, and roll it back against a target
// warehouse. The compiler is pure: identical IR, version metadata, and
// environment list always produce byte-identical bundle content.
package compiler

// Column is one compiled table column, mapped column-for-column from an
// Object's properties.
type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
	Required bool   `yaml:"required"`
}

// Table is the logical mapping of one Object: a warehouse table with a
// primary key drawn from the object's identifiers.
type Table struct {
	Object     string   `yaml:"object"`
	Database   string   `yaml:"database"`
	Schema     string   `yaml:"schema"`
	Name       string   `yaml:"table"`
	PrimaryKey []string `yaml:"primaryKey"`
	Columns    []Column `yaml:"columns"`
}

// JoinKeyPair is one (from, to) column pair in a compiled join.
type JoinKeyPair struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Join is the compiled form of a Relationship: a path between two mapped
// tables over the declared join keys, with cardinality carried as metadata.
type Join struct {
	Name        string        `yaml:"name"`
	FromTable   string        `yaml:"fromTable"`
	ToTable     string        `yaml:"toTable"`
	JoinKeys    []JoinKeyPair `yaml:"joinKeys"`
	Cardinality string        `yaml:"cardinality,omitempty"`
}

// CompiledMetric is a Metric emitted at its declared grain, its raw
// expression preserved verbatim for the target warehouse to evaluate.
type CompiledMetric struct {
	Name       string   `yaml:"name"`
	Expression string   `yaml:"expression"`
	Grain      []string `yaml:"grain"`
	Type       string   `yaml:"type,omitempty"`
	Format     string   `yaml:"format,omitempty"`
}

// CompiledDimension resolves Object.property to a mapped table and column.
type CompiledDimension struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
	Type   string `yaml:"type,omitempty"`
}

// LogicalModel is the compiled semantic model for one version: every Object,
// Relationship, Metric and Dimension resolved to warehouse-addressable form.
type LogicalModel struct {
	SourceOntology string   `yaml:"-"`
	VersionNumber  int      `yaml:"-"`
	ContentHash    string   `yaml:"-"`
	Database       string   `yaml:"database"`
	Schema         string   `yaml:"schema"`
	Warehouse      string   `yaml:"warehouse,omitempty"`
	Tables         []Table  `yaml:"tables"`
	Joins          []Join   `yaml:"joins,omitempty"`
	Metrics        []CompiledMetric    `yaml:"metrics,omitempty"`
	Dimensions     []CompiledDimension `yaml:"dimensions,omitempty"`

	// JoinOrderNote records whether join order came from a topological sort
	// or fell back to lexicographic order because the relationship graph has
	// a cycle. A cycle is not a compile failure — it's recorded as metadata.
	JoinOrderNote string `yaml:"-"`
}
