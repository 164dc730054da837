package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontoforge.dev/ontology"
)

func retailIR() *ontology.IR {
	return &ontology.IR{
		Name: "retail",
		Objects: []ontology.Object{
			{
				Name:        "Customer",
				Identifiers: []string{"id"},
				Properties: []ontology.Property{
					{Name: "id", Type: "string"},
					{Name: "email", Type: "string"},
				},
			},
			{
				Name:        "Order",
				Identifiers: []string{"id"},
				Properties: []ontology.Property{
					{Name: "id", Type: "string"},
					{Name: "customer_id", Type: "string"},
				},
			},
			{
				Name:        "Product",
				Identifiers: []string{"id"},
				Properties:  []ontology.Property{{Name: "id", Type: "string"}},
			},
		},
		Relationships: []ontology.Relationship{
			{Name: "placed_by", From: "Order", To: "Customer", JoinKeys: []ontology.JoinKey{{From: "customer_id", To: "id"}}, Cardinality: "many_to_one"},
			{Name: "includes", From: "Order", To: "Product", JoinKeys: []ontology.JoinKey{{From: "product_id", To: "id"}}, Cardinality: "many_to_many"},
		},
		Metrics: []ontology.Metric{
			{Name: "OrderCount", Expression: "count(*)", Grain: []string{"Order"}, Type: "count"},
		},
		Dimensions: []ontology.Dimension{
			{Name: "CustomerEmail", SourceProperty: "Customer.email", Type: "string"},
		},
		TargetMapping: &ontology.TargetMapping{Database: "RETAIL_DB", Schema: "PUBLIC"},
	}
}

func TestTopologicalObjectOrder_DAG(t *testing.T) {
	rels := []ontology.Relationship{
		{Name: "a", From: "X", To: "Y"},
		{Name: "b", From: "Y", To: "Z"},
	}
	order, ok := topologicalObjectOrder(rels)
	require.True(t, ok)
	assert.Equal(t, []string{"X", "Y", "Z"}, order)
}

func TestTopologicalObjectOrder_Cycle(t *testing.T) {
	rels := []ontology.Relationship{
		{Name: "a", From: "X", To: "Y"},
		{Name: "b", From: "Y", To: "X"},
	}
	_, ok := topologicalObjectOrder(rels)
	assert.False(t, ok)
}

func TestOrderRelationships_FallsBackToLexicographicOnCycle(t *testing.T) {
	rels := []ontology.Relationship{
		{Name: "zeta", From: "X", To: "Y"},
		{Name: "alpha", From: "Y", To: "X"},
	}
	ordered, usedTopological := orderRelationships(rels)
	assert.False(t, usedTopological)
	require.Len(t, ordered, 2)
	assert.Equal(t, "alpha", ordered[0].Name)
	assert.Equal(t, "zeta", ordered[1].Name)
}

func TestOrderRelationships_Deterministic(t *testing.T) {
	rels := retailIR().Relationships
	a, _ := orderRelationships(rels)
	b, _ := orderRelationships(rels)
	assert.Equal(t, a, b)
}

func TestCompile_LogicalMapping(t *testing.T) {
	ir := retailIR()
	model, err := Compile(ir, 1, "deadbeef")
	require.NoError(t, err)

	require.Len(t, model.Tables, 3)
	assert.Equal(t, "RETAIL_DB", model.Database)
	assert.Equal(t, "PUBLIC", model.Schema)

	var orderTable *Table
	for i := range model.Tables {
		if model.Tables[i].Object == "Order" {
			orderTable = &model.Tables[i]
		}
	}
	require.NotNil(t, orderTable)
	assert.Equal(t, []string{"id"}, orderTable.PrimaryKey)
	assert.Equal(t, "RETAIL_DB", orderTable.Database)
}

func TestCompile_ObjectMappingOverridesDatabaseAndSchema(t *testing.T) {
	ir := retailIR()
	ir.Objects[0].Mapping = &ontology.ObjectMapping{Database: "OTHER_DB", Schema: "OTHER_SCHEMA", Table: "customers"}
	model, err := Compile(ir, 1, "deadbeef")
	require.NoError(t, err)

	var customerTable *Table
	for i := range model.Tables {
		if model.Tables[i].Object == "Customer" {
			customerTable = &model.Tables[i]
		}
	}
	require.NotNil(t, customerTable)
	assert.Equal(t, "OTHER_DB", customerTable.Database)
	assert.Equal(t, "OTHER_SCHEMA", customerTable.Schema)
	assert.Equal(t, "customers", customerTable.Name)
}

func TestCompile_DimensionResolvesToMappedTableAndColumn(t *testing.T) {
	model, err := Compile(retailIR(), 1, "deadbeef")
	require.NoError(t, err)
	require.Len(t, model.Dimensions, 1)
	assert.Equal(t, "email", model.Dimensions[0].Column)
	assert.Contains(t, model.Dimensions[0].Table, "RETAIL_DB.PUBLIC.")
}

func TestCompile_DimensionUnknownObjectFails(t *testing.T) {
	ir := retailIR()
	ir.Dimensions[0].SourceProperty = "Nonexistent.email"
	_, err := Compile(ir, 1, "deadbeef")
	assert.Error(t, err)
}

func TestCompile_IsPure(t *testing.T) {
	ir := retailIR()
	a, err := Compile(ir, 3, "hash123")
	require.NoError(t, err)
	b, err := Compile(ir, 3, "hash123")
	require.NoError(t, err)

	ya, err := SerializeYAML(a)
	require.NoError(t, err)
	yb, err := SerializeYAML(b)
	require.NoError(t, err)
	assert.Equal(t, ya, yb)
}

func TestSerializeYAML_HeaderCarriesSourceVersionHash(t *testing.T) {
	model, err := Compile(retailIR(), 7, "cafef00d")
	require.NoError(t, err)
	out, err := SerializeYAML(model)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "# source: retail")
	assert.Contains(t, s, "# version: 7")
	assert.Contains(t, s, "# contentHash: cafef00d")
}

func TestVerifySQL_TargetsDatabaseSchemaOnly(t *testing.T) {
	target := ViewTarget{Database: "RETAIL_DB", Schema: "PUBLIC", ViewName: "retail_view"}
	sql := VerifySQL(target, "yaml-body")
	assert.Contains(t, sql, "RETAIL_DB.PUBLIC")
	assert.Contains(t, sql, "verify_only=>TRUE")
	assert.NotContains(t, sql, "retail_view")
}

func TestDeploySQL_TargetsFullyQualifiedView(t *testing.T) {
	target := ViewTarget{Database: "RETAIL_DB", Schema: "PUBLIC", ViewName: "retail_view"}
	sql := DeploySQL(target, "yaml-body")
	assert.Contains(t, sql, "RETAIL_DB.PUBLIC.retail_view")
	assert.Contains(t, sql, "verify_only=>FALSE")
}

func TestRollbackSQL_DropOnlyWhenNoSnapshot(t *testing.T) {
	target := ViewTarget{Database: "RETAIL_DB", Schema: "PUBLIC", ViewName: "retail_view"}
	sql := RollbackSQL(target, "")
	assert.Contains(t, sql, "DROP SEMANTIC VIEW IF EXISTS RETAIL_DB.PUBLIC.retail_view")
	assert.NotContains(t, sql, "CREATE_SEMANTIC_VIEW_FROM_YAML")
}

func TestRollbackSQL_RecreatesFromSnapshotWhenPresent(t *testing.T) {
	target := ViewTarget{Database: "RETAIL_DB", Schema: "PUBLIC", ViewName: "retail_view"}
	sql := RollbackSQL(target, "old-yaml")
	assert.Contains(t, sql, "DROP SEMANTIC VIEW IF EXISTS RETAIL_DB.PUBLIC.retail_view")
	assert.Contains(t, sql, "CREATE_SEMANTIC_VIEW_FROM_YAML")
}

func TestBuildBundle_SingleEnvironmentScriptsAtRoot(t *testing.T) {
	model, err := Compile(retailIR(), 1, "deadbeef")
	require.NoError(t, err)
	modelYAML, err := SerializeYAML(model)
	require.NoError(t, err)

	bundle, err := BuildBundle(model, modelYAML, []Environment{
		{Name: "", Target: ViewTarget{Database: "RETAIL_DB", Schema: "PUBLIC", ViewName: "retail_view"}},
	}, "")
	require.NoError(t, err)

	files, err := bundle.Files()
	require.NoError(t, err)
	assert.Contains(t, files, "verify.sql")
	assert.Contains(t, files, "deploy.sql")
	assert.Contains(t, files, "rollback.sql")
	assert.NotContains(t, files, "rollback_semantic_model.yaml")
}

func TestBuildBundle_PromotionBundleUsesPerEnvSubdirectories(t *testing.T) {
	model, err := Compile(retailIR(), 1, "deadbeef")
	require.NoError(t, err)
	modelYAML, err := SerializeYAML(model)
	require.NoError(t, err)

	bundle, err := BuildBundle(model, modelYAML, []Environment{
		{Name: "staging", Target: ViewTarget{Database: "STG_DB", Schema: "PUBLIC", ViewName: "retail_view"}},
		{Name: "prod", Target: ViewTarget{Database: "PROD_DB", Schema: "PUBLIC", ViewName: "retail_view"}},
	}, "captured-old-yaml")
	require.NoError(t, err)

	files, err := bundle.Files()
	require.NoError(t, err)
	assert.Contains(t, files, "staging/verify.sql")
	assert.Contains(t, files, "prod/deploy.sql")
	assert.Contains(t, files, "semantic_model.yaml")
	assert.Contains(t, files, "rollback_semantic_model.yaml")
	assert.NotContains(t, files, "verify.sql")
}

func TestBuildBundle_ContentHashIsPure(t *testing.T) {
	model, err := Compile(retailIR(), 1, "deadbeef")
	require.NoError(t, err)
	modelYAML, err := SerializeYAML(model)
	require.NoError(t, err)
	envs := []Environment{{Name: "", Target: ViewTarget{Database: "RETAIL_DB", Schema: "PUBLIC", ViewName: "retail_view"}}}

	a, err := BuildBundle(model, modelYAML, envs, "")
	require.NoError(t, err)
	b, err := BuildBundle(model, modelYAML, envs, "")
	require.NoError(t, err)
	assert.Equal(t, a.ContentHash, b.ContentHash)
}

func TestBuildBundle_RequiresAtLeastOneEnvironment(t *testing.T) {
	model, err := Compile(retailIR(), 1, "deadbeef")
	require.NoError(t, err)
	modelYAML, err := SerializeYAML(model)
	require.NoError(t, err)
	_, err = BuildBundle(model, modelYAML, nil, "")
	assert.Error(t, err)
}
