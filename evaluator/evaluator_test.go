package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontoforge.dev/ontology"
)

func validIR() *ontology.IR {
	return &ontology.IR{
		Version: "1.0",
		Name:    "retail",
		Objects: []ontology.Object{
			{
				Name:        "Customer",
				Identifiers: []string{"id"},
				Properties: []ontology.Property{
					{Name: "id", Type: "string"},
					{Name: "email", Type: "string", Nullable: true},
				},
			},
		},
		TargetMapping: &ontology.TargetMapping{
			Database:      "RETAIL_DB",
			Schema:        "PUBLIC",
			Warehouse:     "WH_SMALL",
			TableMappings: map[string]string{"Customer": "customers"},
		},
	}
}

func TestEvaluate_AllGatesPass(t *testing.T) {
	result := Evaluate(validIR(), Standard)
	assert.True(t, result.Passed)
	assert.Nil(t, result.FirstFailure)
	for _, catGates := range result.Metrics {
		for _, outcome := range catGates {
			assert.Equal(t, LevelOK, outcome.Level)
		}
	}
}

func TestEvaluate_MissingWarehouseWarnsOnly(t *testing.T) {
	ir := validIR()
	ir.TargetMapping.Warehouse = ""

	standard := Evaluate(ir, Standard)
	assert.True(t, standard.Passed, "standard profile ignores warnings")

	strict := Evaluate(ir, Strict)
	assert.False(t, strict.Passed, "strict profile fails on any warning")
	require.NotNil(t, strict.FirstFailure)
	assert.Equal(t, "warehouse_specified", strict.FirstFailure.GateID)
}

func TestEvaluate_MissingTableMappingFailsDeployability(t *testing.T) {
	ir := validIR()
	ir.TargetMapping.TableMappings = map[string]string{}

	lenient := Evaluate(ir, Lenient)
	assert.False(t, lenient.Passed)
	require.NotNil(t, lenient.FirstFailure)
	assert.Equal(t, Deployability, lenient.FirstFailure.Category)
}

func TestEvaluate_LenientIgnoresStructuralErrors(t *testing.T) {
	ir := validIR()
	ir.Objects[0].Identifiers = nil

	lenient := Evaluate(ir, Lenient)
	assert.True(t, lenient.Passed, "lenient only scores deployability errors")

	standard := Evaluate(ir, Standard)
	assert.False(t, standard.Passed)
	require.NotNil(t, standard.FirstFailure)
	assert.Equal(t, Structural, standard.FirstFailure.Category)
}

func TestEvaluate_ForbiddenMetricExpressionToken(t *testing.T) {
	ir := validIR()
	ir.Metrics = []ontology.Metric{{Name: "Bad", Expression: "count(*); DROP TABLE customers", Grain: []string{"Customer"}}}

	result := Evaluate(ir, Standard)
	assert.False(t, result.Passed)
	require.NotNil(t, result.FirstFailure)
	assert.Equal(t, "metric_expression_safe", result.FirstFailure.GateID)
}

func TestEvaluate_MetricsAlwaysReportTrueLevel(t *testing.T) {
	ir := validIR()
	ir.TargetMapping.Warehouse = ""

	result := Evaluate(ir, Lenient)
	assert.True(t, result.Passed)
	assert.Equal(t, LevelWarning, result.Metrics[Deployability]["warehouse_specified"].Level,
		"metrics reflect the true outcome regardless of profile")
}
