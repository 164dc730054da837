package regression

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ontoforge.dev/store"
	"ontoforge.dev/warehouse"
)

type fakeViews struct {
	deployed *store.DeployedView
}

func (f *fakeViews) GetDeployedViewByFQN(ctx context.Context, database, schema, viewName string) (*store.DeployedView, error) {
	if f.deployed == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.deployed, nil
}

type fakeAskAdapter struct {
	sql      string
	answer   string
	err      error
	delay    time.Duration
	lastCall string
}

func (f *fakeAskAdapter) Verify(ctx context.Context, yaml, database, schema string) (*warehouse.VerifyResult, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAskAdapter) Deploy(ctx context.Context, yaml, database, schema, viewName string) (*warehouse.DeployResult, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAskAdapter) ExportExisting(ctx context.Context, viewFQN string) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeAskAdapter) ListCatalog(ctx context.Context, database, schema string) (map[string]map[string]warehouse.CatalogColumn, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAskAdapter) Ask(ctx context.Context, viewFQN, question string) (*warehouse.AskResult, error) {
	f.lastCall = question
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &warehouse.AskResult{SQL: f.sql, Answer: f.answer, LatencyMS: 5}, nil
}

func deployedViews() *fakeViews {
	return &fakeViews{deployed: &store.DeployedView{Database: "RETAIL_DB", Schema: "PUBLIC", ViewName: "retail_view"}}
}

func TestRun_ForbiddenWhenViewNotDeployed(t *testing.T) {
	adapter := &fakeAskAdapter{}
	_, err := Run(context.Background(), adapter, &fakeViews{}, "RETAIL_DB", "PUBLIC", "retail_view", nil, 0)
	require.Error(t, err)
}

func TestRun_PassesWhenExpectationsMet(t *testing.T) {
	adapter := &fakeAskAdapter{sql: "SELECT * FROM customer", answer: "there are 42 customers"}
	questions := []Question{
		{Question: "how many customers?", ExpectedTables: []string{"customer"}, ExpectedAnswerSnippet: "42"},
	}
	report, err := Run(context.Background(), adapter, deployedViews(), "RETAIL_DB", "PUBLIC", "retail_view", questions, 0)
	require.NoError(t, err)
	assert.True(t, report.OverallPass)
	assert.Equal(t, 1, report.PassCount)
	assert.Equal(t, 0, report.FailCount)
}

func TestRun_FailsWhenExpectedTableMissing(t *testing.T) {
	adapter := &fakeAskAdapter{sql: "SELECT * FROM orders", answer: "42"}
	questions := []Question{
		{Question: "how many customers?", ExpectedTables: []string{"customer"}},
	}
	report, err := Run(context.Background(), adapter, deployedViews(), "RETAIL_DB", "PUBLIC", "retail_view", questions, 0)
	require.NoError(t, err)
	assert.False(t, report.OverallPass)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Passed)
	assert.True(t, strings.Contains(report.Results[0].FailureReasons[0], "customer"))
}

func TestRun_FailsOnAskError(t *testing.T) {
	adapter := &fakeAskAdapter{err: errors.New("warehouse unreachable")}
	questions := []Question{{Question: "how many customers?"}}
	report, err := Run(context.Background(), adapter, deployedViews(), "RETAIL_DB", "PUBLIC", "retail_view", questions, 0)
	require.NoError(t, err)
	assert.False(t, report.OverallPass)
	assert.Contains(t, report.Results[0].FailureReasons[0], "ask failed")
}

func TestRun_PerQuestionTimeoutCancelsAsk(t *testing.T) {
	adapter := &fakeAskAdapter{delay: 50 * time.Millisecond, sql: "SELECT 1", answer: "ok"}
	questions := []Question{{Question: "slow question"}}
	report, err := Run(context.Background(), adapter, deployedViews(), "RETAIL_DB", "PUBLIC", "retail_view", questions, 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, report.Results[0].Passed)
	assert.Contains(t, report.Results[0].FailureReasons[0], "ask failed")
}

func TestJUnitXML_ContainsFailureForFailedQuestion(t *testing.T) {
	report := &Report{
		QuestionCount: 1,
		FailCount:     1,
		Results: []QuestionResult{
			{Question: "q1", Passed: false, FailureReasons: []string{"expected table %q not referenced"}},
		},
	}
	out, err := JUnitXML("regression", report)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<failure")
	assert.Contains(t, string(out), "q1")
}
