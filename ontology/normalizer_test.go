package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontoforge.dev/ontoerrors"
)

func retailDocument() *Document {
	return &Document{
		Version: "1.0",
		Name:    "retail",
		Objects: []ObjectDoc{
			{
				Name:        "Customer",
				Identifiers: []string{"id"},
				Properties: []PropertyDoc{
					{Name: "id", Type: "string"},
					{Name: "email", Type: "string"},
				},
			},
			{
				Name:        "Order",
				Identifiers: []string{"id"},
				Properties: []PropertyDoc{
					{Name: "id", Type: "string"},
					{Name: "customer_id", Type: "string"},
				},
			},
		},
		Relationships: []RelationshipDoc{
			{
				Name:     "placed_by",
				From:     "Order",
				To:       "Customer",
				JoinKeys: [][2]string{{"customer_id", "id"}},
			},
		},
		Metrics: []MetricDoc{
			{Name: "OrderCount", Expression: "count(*)", Grain: []string{"Order"}, Type: "count"},
		},
		TargetMapping: &TargetMappingDoc{
			Database: "RETAIL_DB",
			Schema:   "PUBLIC",
		},
	}
}

func TestBuildIR_Valid(t *testing.T) {
	ir, err := BuildIR(retailDocument())
	require.NoError(t, err)
	require.Len(t, ir.Objects, 2)
	assert.True(t, ir.Objects[0].Properties[0].Nullable, "nullable defaults to true")
	assert.False(t, ir.Objects[0].Properties[0].Required, "required defaults to false")
}

func TestBuildIR_InvalidReference(t *testing.T) {
	doc := retailDocument()
	doc.Dimensions = []DimensionDoc{{Name: "BadDim", SourceProperty: "Order.nonexistent"}}

	_, err := BuildIR(doc)
	require.Error(t, err)
	assert.True(t, errorHasCode(err, "INVALID_REFERENCE"))
}

func TestBuildIR_InvalidStructure(t *testing.T) {
	doc := retailDocument()
	doc.Objects[0].Name = "1Customer"

	_, err := BuildIR(doc)
	require.Error(t, err)
	assert.True(t, errorHasCode(err, "INVALID_STRUCTURE"))
}

func TestNormalize_Idempotent(t *testing.T) {
	ir, err := BuildIR(retailDocument())
	require.NoError(t, err)

	once := Normalize(ir)
	twice := Normalize(once)

	b1, err := Serialize(once)
	require.NoError(t, err)
	b2, err := Serialize(twice)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestNormalize_OrdersObjectsByName(t *testing.T) {
	doc := retailDocument()
	// Swap declaration order; normalization must still produce Customer before Order.
	doc.Objects[0], doc.Objects[1] = doc.Objects[1], doc.Objects[0]

	ir, err := BuildIR(doc)
	require.NoError(t, err)
	norm := Normalize(ir)

	require.Len(t, norm.Objects, 2)
	assert.Equal(t, "Customer", norm.Objects[0].Name)
	assert.Equal(t, "Order", norm.Objects[1].Name)
}

func TestContentHash_StableAcrossRuns(t *testing.T) {
	ir, err := BuildIR(retailDocument())
	require.NoError(t, err)
	canonical, err := Serialize(Normalize(ir))
	require.NoError(t, err)

	h1 := ContentHash(canonical)
	h2 := ContentHash(canonical)
	assert.Equal(t, h1, h2)
}

func errorHasCode(err error, code string) bool {
	return ontoerrors.As(err, ontoerrors.Code(code))
}
