package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalDetailsJSON_SpacesAfterColonAndComma(t *testing.T) {
	out, err := canonicalDetailsJSON(ColumnAddedDetails{Object: "Customer", Table: "customer", Column: "id", Type: "string"})
	require.NoError(t, err)
	assert.Equal(t, `{"object": "Customer", "table": "customer", "column": "id", "type": "string"}`, string(out))
}

func TestDetailsHash_StableForIdenticalInput(t *testing.T) {
	a, err := canonicalDetailsJSON(ColumnAddedDetails{Object: "Customer", Table: "customer", Column: "id", Type: "string"})
	require.NoError(t, err)
	b, err := canonicalDetailsJSON(ColumnAddedDetails{Object: "Customer", Table: "customer", Column: "id", Type: "string"})
	require.NoError(t, err)
	assert.Equal(t, detailsHash(a), detailsHash(b))
}

func TestDetailsHash_DiffersForDifferentInput(t *testing.T) {
	a, err := canonicalDetailsJSON(ColumnAddedDetails{Object: "Customer", Table: "customer", Column: "id", Type: "string"})
	require.NoError(t, err)
	b, err := canonicalDetailsJSON(ColumnAddedDetails{Object: "Order", Table: "order", Column: "id", Type: "string"})
	require.NoError(t, err)
	assert.NotEqual(t, detailsHash(a), detailsHash(b))
}
