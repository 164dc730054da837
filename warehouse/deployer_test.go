package warehouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	existingYAML string
	existingErr  error
	verifyResult *VerifyResult
	verifyErr    error
	deployResult *DeployResult
	deployErr    error

	deployCalled bool
}

func (f *fakeAdapter) Verify(ctx context.Context, yamlBody, database, schema string) (*VerifyResult, error) {
	return f.verifyResult, f.verifyErr
}

func (f *fakeAdapter) Deploy(ctx context.Context, yamlBody, database, schema, viewName string) (*DeployResult, error) {
	f.deployCalled = true
	return f.deployResult, f.deployErr
}

func (f *fakeAdapter) ExportExisting(ctx context.Context, viewFQN string) (string, error) {
	if f.existingErr != nil {
		return "", f.existingErr
	}
	return f.existingYAML, nil
}

func (f *fakeAdapter) ListCatalog(ctx context.Context, database, schema string) (map[string]map[string]CatalogColumn, error) {
	return nil, nil
}

func (f *fakeAdapter) Ask(ctx context.Context, viewFQN, question string) (*AskResult, error) {
	return nil, nil
}

func TestDeploy_CapturesRollbackYAMLWhenViewExists(t *testing.T) {
	a := &fakeAdapter{
		existingYAML: "old-yaml",
		verifyResult: &VerifyResult{OK: true},
		deployResult: &DeployResult{OK: true},
	}
	out, err := Deploy(context.Background(), a, "new-yaml", "DB", "SCHEMA", "view")
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "old-yaml", out.RollbackYAML)
	assert.False(t, out.RollbackUnavailable)
	assert.True(t, a.deployCalled)
}

func TestDeploy_RollbackUnavailableOnFirstDeploy(t *testing.T) {
	a := &fakeAdapter{
		existingErr:  ErrNotFound,
		verifyResult: &VerifyResult{OK: true},
		deployResult: &DeployResult{OK: true},
	}
	out, err := Deploy(context.Background(), a, "new-yaml", "DB", "SCHEMA", "view")
	require.NoError(t, err)
	assert.True(t, out.RollbackUnavailable)
	assert.Empty(t, out.RollbackYAML)
}

func TestDeploy_StopsBeforeDeployOnVerifyFailure(t *testing.T) {
	a := &fakeAdapter{
		existingErr:  ErrNotFound,
		verifyResult: &VerifyResult{OK: false, Errors: []string{"bad column"}},
	}
	out, err := Deploy(context.Background(), a, "new-yaml", "DB", "SCHEMA", "view")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, []string{"bad column"}, out.Errors)
	assert.False(t, a.deployCalled)
}

func TestDeploy_VerifyTransportErrorNeverReachesDeploy(t *testing.T) {
	a := &fakeAdapter{
		existingErr: ErrNotFound,
		verifyErr:   errors.New("connection reset"),
	}
	_, err := Deploy(context.Background(), a, "new-yaml", "DB", "SCHEMA", "view")
	assert.Error(t, err)
	assert.False(t, a.deployCalled)
}

func TestDeploy_DeployFailureReportsErrorsWithoutRetry(t *testing.T) {
	a := &fakeAdapter{
		existingErr:  ErrNotFound,
		verifyResult: &VerifyResult{OK: true},
		deployResult: &DeployResult{OK: false, Errors: []string{"permission denied"}},
	}
	out, err := Deploy(context.Background(), a, "new-yaml", "DB", "SCHEMA", "view")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, []string{"permission denied"}, out.Errors)
}
