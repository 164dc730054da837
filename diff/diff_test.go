package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontoforge.dev/ontology"
)

func baseIR() *ontology.IR {
	return &ontology.IR{
		Version: "1.0",
		Name:    "retail",
		Objects: []ontology.Object{
			{
				Name:        "Customer",
				Identifiers: []string{"id"},
				Properties: []ontology.Property{
					{Name: "email", Type: "string", Nullable: true},
					{Name: "id", Type: "string", Nullable: false, Required: true},
				},
			},
			{
				Name:        "Order",
				Identifiers: []string{"id"},
				Properties: []ontology.Property{
					{Name: "customer_id", Type: "string", Nullable: false},
					{Name: "id", Type: "string", Nullable: false, Required: true},
				},
			},
		},
		Relationships: []ontology.Relationship{
			{
				Name:        "placed_by",
				From:        "Order",
				To:          "Customer",
				JoinKeys:    []ontology.JoinKey{{From: "customer_id", To: "id"}},
				Cardinality: "many_to_one",
			},
		},
		Metrics: []ontology.Metric{
			{Name: "OrderCount", Expression: "count(*)", Grain: []string{"Order"}, Type: "count"},
		},
	}
}

func TestCompute_NoChanges(t *testing.T) {
	old := baseIR()
	new := baseIR()
	result := Compute(old, new)
	assert.Empty(t, result.Changes)
	assert.False(t, result.Summary.HasBreaking)
}

func TestCompute_ObjectAdded(t *testing.T) {
	old := baseIR()
	new := baseIR()
	new.Objects = append(new.Objects, ontology.Object{Name: "Product", Identifiers: []string{"id"},
		Properties: []ontology.Property{{Name: "id", Type: "string"}}})

	result := Compute(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ObjectAdded, result.Changes[0].Kind)
	assert.Equal(t, NonBreaking, result.Changes[0].Severity)
	assert.False(t, result.Summary.HasBreaking)
}

func TestCompute_ObjectRenamed(t *testing.T) {
	old := baseIR()
	new := baseIR()
	new.Objects[1].Name = "PurchaseOrder"

	result := Compute(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ObjectRenamed, result.Changes[0].Kind)
	assert.Equal(t, Breaking, result.Changes[0].Severity)
	assert.True(t, result.Summary.HasBreaking)
}

func TestCompute_RenameTieBreakRefused(t *testing.T) {
	old := baseIR()
	new := baseIR()
	// Two candidates with identical identifiers and full property overlap with
	// Order: neither is a unique match, so both sides report removed/added.
	new.Objects[1].Name = "PurchaseOrder"
	dup := new.Objects[1]
	dup.Name = "SalesOrder"
	new.Objects = append(new.Objects, dup)

	result := Compute(old, new)
	var kinds []Kind
	for _, c := range result.Changes {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, ObjectRemoved)
	assert.Contains(t, kinds, ObjectAdded)
	assert.NotContains(t, kinds, ObjectRenamed)
}

func TestCompute_PropertyAddedRequiredNonNullableIsBreaking(t *testing.T) {
	old := baseIR()
	new := baseIR()
	new.Objects[0].Properties = append(new.Objects[0].Properties, ontology.Property{
		Name: "loyalty_tier", Type: "string", Nullable: false, Required: true,
	})

	result := Compute(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, PropertyAdded, result.Changes[0].Kind)
	assert.Equal(t, Breaking, result.Changes[0].Severity)
}

func TestCompute_PropertyTypeWideningIsSafe(t *testing.T) {
	old := baseIR()
	new := baseIR()
	old.Objects[0].Properties[1] = ontology.Property{Name: "id", Type: "integer", Nullable: false, Required: true}
	new.Objects[0].Properties[1] = ontology.Property{Name: "id", Type: "decimal", Nullable: false, Required: true}

	result := Compute(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, PropertyTypeChanged, result.Changes[0].Kind)
	assert.Equal(t, NonBreaking, result.Changes[0].Severity)
}

func TestCompute_RelationshipCardinalityStricterIsBreaking(t *testing.T) {
	old := baseIR()
	new := baseIR()
	new.Relationships[0].Cardinality = "one_to_one"

	result := Compute(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, RelationshipCardinalityChanged, result.Changes[0].Kind)
	assert.Equal(t, Breaking, result.Changes[0].Severity)
}

func TestCompute_RelationshipCardinalityLooserIsNonBreaking(t *testing.T) {
	old := baseIR()
	new := baseIR()
	old.Relationships[0].Cardinality = "one_to_one"
	new.Relationships[0].Cardinality = "many_to_one"

	result := Compute(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, RelationshipCardinalityChanged, result.Changes[0].Kind)
	assert.Equal(t, NonBreaking, result.Changes[0].Severity)
}

func TestCompute_MetricExpressionChanged(t *testing.T) {
	old := baseIR()
	new := baseIR()
	new.Metrics[0].Expression = "sum(amount)"

	result := Compute(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, MetricExpressionChanged, result.Changes[0].Kind)
	assert.Equal(t, Breaking, result.Changes[0].Severity)
}

func TestCompute_Deterministic(t *testing.T) {
	old := baseIR()
	new := baseIR()
	new.Objects[0].Properties[0].Nullable = false

	r1 := Compute(old, new)
	r2 := Compute(old, new)
	assert.Equal(t, r1.Changes, r2.Changes)
	assert.Equal(t, r1.Summary, r2.Summary)
}
