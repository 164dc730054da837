package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontoforge.dev/store"
)

func TestDetectView_NoEventWhenIdentical(t *testing.T) {
	yaml := []byte("database: RETAIL_DB\nschema: PUBLIC\n")
	ev := DetectView("RETAIL_DB.PUBLIC.retail_view", yaml, yaml)
	assert.Nil(t, ev)
}

func TestDetectView_ReportsDivergence(t *testing.T) {
	want := []byte("database: RETAIL_DB\nschema: PUBLIC\n")
	got := []byte("database: RETAIL_DB\nschema: STAGING\n")
	ev := DetectView("RETAIL_DB.PUBLIC.retail_view", want, got)
	require.NotNil(t, ev)
	assert.Equal(t, string(store.YAMLDiverged), ev.Type)
	details := ev.Details.(YAMLDivergedDetails)
	assert.Contains(t, details.Diff, "-schema: PUBLIC")
	assert.Contains(t, details.Diff, "+schema: STAGING")
}
