package warehouse

import (
	"context"
	"errors"
	"fmt"

	"ontoforge.dev/ontoerrors"
)

// DeployOutcome is the result of a full export/verify/deploy sequence.
type DeployOutcome struct {
	OK                  bool
	Errors              []string
	Warnings            []string
	RollbackYAML        string // captured pre-deploy snapshot; empty if none existed
	RollbackUnavailable bool   // true when export_existing returned NOT_FOUND
}

// Deploy runs the C7 deployment policy: export the existing view first (to
// capture rollback material), then verify, then deploy — stopping at the
// first failure without ever touching the live view. Deploy itself is never
// retried; Verify and ExportExisting retry transport errors per Adapter's
// retry policy.
func Deploy(ctx context.Context, adapter Adapter, yamlBody, database, schema, viewName string) (*DeployOutcome, error) {
	viewFQN := fmt.Sprintf("%s.%s.%s", database, schema, viewName)
	out := &DeployOutcome{}

	existing, err := adapter.ExportExisting(ctx, viewFQN)
	switch {
	case err == nil:
		out.RollbackYAML = existing
	case errors.Is(err, ErrNotFound):
		out.RollbackUnavailable = true
	default:
		return nil, ontoerrors.DeployFailed("export_existing failed for %s: %v", viewFQN, err)
	}

	verify, err := adapter.Verify(ctx, yamlBody, database, schema)
	if err != nil {
		return nil, ontoerrors.VerifyFailed("verify transport error for %s.%s: %v", database, schema, err)
	}
	out.Warnings = verify.Warnings
	if !verify.OK {
		out.Errors = verify.Errors
		return out, nil
	}

	deploy, err := adapter.Deploy(ctx, yamlBody, database, schema, viewName)
	if err != nil {
		return nil, ontoerrors.DeployFailed("deploy transport error for %s: %v", viewFQN, err)
	}
	if !deploy.OK {
		out.Errors = deploy.Errors
		return out, nil
	}

	out.OK = true
	return out, nil
}
