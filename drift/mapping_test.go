package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontoforge.dev/ontology"
	"ontoforge.dev/store"
	"ontoforge.dev/warehouse"
)

func customerIR() *ontology.IR {
	return &ontology.IR{
		Name: "retail",
		Objects: []ontology.Object{
			{
				Name:        "Customer",
				Identifiers: []string{"id"},
				Properties: []ontology.Property{
					{Name: "id", Type: "string"},
					{Name: "email_address", Type: "string"},
				},
			},
		},
		TargetMapping: &ontology.TargetMapping{Database: "RETAIL_DB", Schema: "PUBLIC"},
	}
}

func TestDetectMapping_TableMissing(t *testing.T) {
	events := DetectMapping(customerIR(), map[string]map[string]warehouse.CatalogColumn{})
	require.Len(t, events, 1)
	assert.Equal(t, string(store.TableMissing), events[0].Type)
}

func TestDetectMapping_ColumnAddedAndDropped(t *testing.T) {
	catalog := map[string]map[string]warehouse.CatalogColumn{
		"customer": {
			"id":         {Name: "id", Type: "string"},
			"created_at": {Name: "created_at", Type: "date"},
		},
	}
	events := DetectMapping(customerIR(), catalog)

	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Type)
	}
	assert.Contains(t, kinds, string(store.ColumnDropped)) // email_address missing from catalog
	assert.Contains(t, kinds, string(store.ColumnAdded))   // created_at not declared
}

func TestDetectMapping_RenameHeuristicCoalescesDropAndAdd(t *testing.T) {
	catalog := map[string]map[string]warehouse.CatalogColumn{
		"customer": {
			"id":    {Name: "id", Type: "string"},
			"email": {Name: "email", Type: "string"},
		},
	}
	ir := &ontology.IR{
		Name: "retail",
		Objects: []ontology.Object{
			{
				Name:        "Customer",
				Identifiers: []string{"id"},
				Properties: []ontology.Property{
					{Name: "id", Type: "string"},
					{Name: "emial", Type: "string"}, // typo, distance 2 from "email"
				},
			},
		},
		TargetMapping: &ontology.TargetMapping{Database: "RETAIL_DB", Schema: "PUBLIC"},
	}
	events := DetectMapping(ir, catalog)
	require.Len(t, events, 1)
	assert.Equal(t, string(store.ColumnRenamed), events[0].Type)
	renamed := events[0].Details.(ColumnRenamedDetails)
	assert.Equal(t, "emial", renamed.From)
	assert.Equal(t, "email", renamed.To)
}

func TestDetectMapping_ColumnTypeChanged(t *testing.T) {
	catalog := map[string]map[string]warehouse.CatalogColumn{
		"customer": {
			"id":            {Name: "id", Type: "string"},
			"email_address": {Name: "email_address", Type: "decimal"},
		},
	}
	events := DetectMapping(customerIR(), catalog)
	var found bool
	for _, e := range events {
		if e.Type == string(store.ColumnTypeChanged) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectMapping_NoDriftWhenIdentical(t *testing.T) {
	catalog := map[string]map[string]warehouse.CatalogColumn{
		"customer": {
			"id":            {Name: "id", Type: "string"},
			"email_address": {Name: "email_address", Type: "string"},
		},
	}
	events := DetectMapping(customerIR(), catalog)
	assert.Empty(t, events)
}
