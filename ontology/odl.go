package ontology

import "encoding/json"

// Document is the raw, JSON-compatible ODL shape accepted at the service boundary
// (see the ODL document interface). It is the only dynamic-to-static conversion
// point in the pipeline — everything downstream operates on the typed IR.
type Document struct {
	Version       string              `json:"version"`
	Name          string              `json:"name,omitempty"`
	Description   string              `json:"description,omitempty"`
	Objects       []ObjectDoc         `json:"objects"`
	Relationships []RelationshipDoc   `json:"relationships"`
	Metrics       []MetricDoc         `json:"metrics"`
	Dimensions    []DimensionDoc      `json:"dimensions"`
	TargetMapping *TargetMappingDoc   `json:"targetMapping,omitempty"`
}

type PropertyDoc struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Nullable    *bool   `json:"nullable,omitempty"`
	Required    *bool   `json:"required,omitempty"`
}

type ObjectMappingDoc struct {
	Table    string `json:"table,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Database string `json:"database,omitempty"`
}

type ObjectDoc struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Identifiers []string          `json:"identifiers"`
	Properties  []PropertyDoc     `json:"properties"`
	Mapping     *ObjectMappingDoc `json:"mapping,omitempty"`
}

type RelationshipDoc struct {
	Name        string     `json:"name"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	JoinKeys    [][2]string `json:"joinKeys"`
	Cardinality string     `json:"cardinality,omitempty"`
	Description string     `json:"description,omitempty"`
}

type MetricDoc struct {
	Name        string   `json:"name"`
	Expression  string   `json:"expression"`
	Grain       []string `json:"grain"`
	Type        string   `json:"type,omitempty"`
	Format      string   `json:"format,omitempty"`
	Description string   `json:"description,omitempty"`
}

type DimensionDoc struct {
	Name           string `json:"name"`
	SourceProperty string `json:"sourceProperty"`
	Type           string `json:"type,omitempty"`
	Description    string `json:"description,omitempty"`
}

type TargetMappingDoc struct {
	Database      string            `json:"database"`
	Schema        string            `json:"schema"`
	Warehouse     string            `json:"warehouse,omitempty"`
	TableMappings map[string]string `json:"tableMappings,omitempty"`
}

// ParseDocument decodes a raw ODL payload into its dynamic document form. Callers
// always follow this with BuildIR for structural and referential validation —
// ParseDocument itself only reports malformed JSON.
func ParseDocument(payload []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, InvalidJSONErr(err)
	}
	return &doc, nil
}
