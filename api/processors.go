// Package api wires the compiler, warehouse, drift and regression packages
// into the async runner's task dispatch, and exposes the HTTP surface a
// caller submits work through. Processors decode their task's Args, do the
// stage's work, and return a JSON result blob — the runner owns everything
// else about a task's lifecycle.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ontoforge.dev/async"
	"ontoforge.dev/bundlestore"
	"ontoforge.dev/compiler"
	"ontoforge.dev/drift"
	"ontoforge.dev/evaluator"
	"ontoforge.dev/metrics"
	"ontoforge.dev/ontoerrors"
	"ontoforge.dev/ontology"
	"ontoforge.dev/regression"
	"ontoforge.dev/store"
	"ontoforge.dev/warehouse"
)

// loadIR fetches a version's canonical payload and rebuilds its normalized IR
// — every stage operates on the same normalized form CreateVersion computed,
// never on a caller-supplied document.
func loadIR(ctx context.Context, st *store.Store, versionID string) (*ontology.IR, *store.Version, error) {
	v, err := st.Versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load version %s: %w", versionID, err)
	}
	payload, err := st.Versions.GetPayload(ctx, v)
	if err != nil {
		return nil, nil, fmt.Errorf("load payload for version %s: %w", versionID, err)
	}
	doc, err := ontology.ParseDocument(payload)
	if err != nil {
		return nil, nil, err
	}
	ir, err := ontology.BuildIR(doc)
	if err != nil {
		return nil, nil, err
	}
	return ontology.Normalize(ir), v, nil
}

// CompileArgs is the payload for a KindCompile task.
type CompileArgs struct {
	VersionID    string                `json:"version_id"`
	Environments []compiler.Environment `json:"environments"`
	Bucket       string                `json:"bucket"`
}

// CompileResult is the JSON result of a successful compile task.
type CompileResult struct {
	ArtifactBundleID string `json:"artifact_bundle_id"`
	ContentHash      string `json:"content_hash"`
	StorageKey       string `json:"storage_key"`
	SizeBytes        int64  `json:"size_bytes"`
}

// CompileProcessor runs the C6 compiler against a version's IR and uploads
// the resulting bundle to bundlestore, indexing it in the admin store.
type CompileProcessor struct {
	Store   *store.Store
	Bundles *bundlestore.Store
	Metrics *metrics.Metrics
}

func (p *CompileProcessor) Process(ctx context.Context, task *async.Task, checkCanceled async.CancelChecker) (json.RawMessage, error) {
	var args CompileArgs
	if err := json.Unmarshal(task.Args, &args); err != nil {
		return nil, ontoerrors.InvalidStructureErr("decode compile args: %v", err)
	}

	started := time.Now()
	target := ""
	if len(args.Environments) > 0 {
		target = args.Environments[0].Target.ViewName
	}

	run, err := p.Store.Runs.WriteCompileRun(ctx, args.VersionID, target, task.Args)
	if err != nil {
		return nil, err
	}

	result, procErr := p.compile(ctx, &args, checkCanceled)

	status := store.CompileSuccess
	artifactRef, errText := "", ""
	if procErr != nil {
		status = store.CompileFailed
		errText = procErr.Error()
	} else {
		artifactRef = result.StorageKey
	}
	_ = p.Store.Runs.UpdateCompileRunStatus(ctx, run.ID, status, artifactRef, errText)
	if p.Metrics != nil {
		p.Metrics.RecordCompile(target, string(status), time.Since(started))
	}
	if procErr != nil {
		return nil, procErr
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal compile result: %w", err)
	}
	return raw, nil
}

func (p *CompileProcessor) compile(ctx context.Context, args *CompileArgs, checkCanceled async.CancelChecker) (*CompileResult, error) {
	ir, v, err := loadIR(ctx, p.Store, args.VersionID)
	if err != nil {
		return nil, err
	}
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}

	model, err := compiler.Compile(ir, v.VersionNumber, v.ContentHash)
	if err != nil {
		return nil, ontoerrors.CompileFailed("%v", err)
	}
	modelYAML, err := compiler.SerializeYAML(model)
	if err != nil {
		return nil, ontoerrors.CompileFailed("serialize model yaml: %v", err)
	}

	envs := args.Environments
	if len(envs) == 0 {
		envs = []compiler.Environment{{Name: "", Target: compiler.ViewTarget{
			Database: model.Database, Schema: model.Schema, ViewName: v.OntologyID,
		}}}
	}

	bundle, err := compiler.BuildBundle(model, modelYAML, envs, "")
	if err != nil {
		return nil, ontoerrors.CompileFailed("build bundle: %v", err)
	}
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}

	files, err := bundle.Files()
	if err != nil {
		return nil, ontoerrors.CompileFailed("render bundle files: %v", err)
	}
	zipped, err := bundlestore.Zip(files)
	if err != nil {
		return nil, ontoerrors.CompileFailed("zip bundle: %v", err)
	}

	storageKey, err := p.Bundles.Put(ctx, bundle.ContentHash, zipped)
	if err != nil {
		return nil, ontoerrors.CompileFailed("upload bundle: %v", err)
	}

	rec, err := p.Store.Admin.RecordArtifactBundle(ctx, "", bundle.ContentHash, storageKey, int64(len(zipped)))
	if err != nil {
		return nil, err
	}

	return &CompileResult{
		ArtifactBundleID: rec.ID,
		ContentHash:      bundle.ContentHash,
		StorageKey:       storageKey,
		SizeBytes:        rec.SizeBytes,
	}, nil
}

// EvalArgs is the payload for a KindEval task.
type EvalArgs struct {
	VersionID string             `json:"version_id"`
	Profile   evaluator.Profile `json:"profile"`
}

// EvalProcessor runs the C5 gate engine and persists the verdict.
type EvalProcessor struct {
	Store   *store.Store
	Metrics *metrics.Metrics
}

func (p *EvalProcessor) Process(ctx context.Context, task *async.Task, checkCanceled async.CancelChecker) (json.RawMessage, error) {
	var args EvalArgs
	if err := json.Unmarshal(task.Args, &args); err != nil {
		return nil, ontoerrors.InvalidStructureErr("decode eval args: %v", err)
	}

	ir, _, err := loadIR(ctx, p.Store, args.VersionID)
	if err != nil {
		return nil, err
	}
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}

	result := evaluator.Evaluate(ir, args.Profile)
	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return nil, fmt.Errorf("marshal eval metrics: %w", err)
	}
	if _, err := p.Store.Runs.WriteEvalRun(ctx, args.VersionID, string(args.Profile), metricsJSON, result.Passed); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal eval result: %w", err)
	}
	return raw, nil
}

// DeployArgs is the payload for a KindDeploy task.
type DeployArgs struct {
	VersionID  string `json:"version_id"`
	YAMLBody   string `json:"yaml_body"`
	Database   string `json:"database"`
	Schema     string `json:"schema"`
	ViewName   string `json:"view_name"`
	OntologyID string `json:"ontology_id"`
}

// DeployProcessor runs the C7 export/verify/deploy sequence and, on success,
// records the resulting DeployedView.
type DeployProcessor struct {
	Store     *store.Store
	Warehouse warehouse.Adapter
	Metrics   *metrics.Metrics
}

func (p *DeployProcessor) Process(ctx context.Context, task *async.Task, checkCanceled async.CancelChecker) (json.RawMessage, error) {
	var args DeployArgs
	if err := json.Unmarshal(task.Args, &args); err != nil {
		return nil, ontoerrors.InvalidStructureErr("decode deploy args: %v", err)
	}
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	outcome, err := warehouse.Deploy(ctx, p.Warehouse, args.YAMLBody, args.Database, args.Schema, args.ViewName)
	if err != nil {
		if p.Metrics != nil {
			p.Metrics.RecordDeploy("error", false, time.Since(started))
		}
		return nil, err
	}

	status := "failed"
	if outcome.OK {
		status = "success"
		if _, err := p.Store.Admin.RecordDeployedView(ctx, args.VersionID, args.OntologyID, args.Database, args.Schema, args.ViewName); err != nil {
			return nil, err
		}
	}
	if p.Metrics != nil {
		p.Metrics.RecordDeploy(status, outcome.RollbackYAML != "", time.Since(started))
	}

	raw, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("marshal deploy outcome: %w", err)
	}
	if !outcome.OK {
		return raw, ontoerrors.DeployFailed("%v", outcome.Errors)
	}
	return raw, nil
}

// DriftArgs is the payload for a KindDrift task.
type DriftArgs struct {
	OntologyID   string `json:"ontology_id"`
	VersionID    string `json:"version_id"`
	Database     string `json:"database"`
	Schema       string `json:"schema"`
	ViewFQN      string `json:"view_fqn,omitempty"`
	DeployedYAML string `json:"deployed_yaml,omitempty"`
}

// DriftProcessor runs the C8 mapping and view probes for an ontology.
type DriftProcessor struct {
	Store     *store.Store
	Warehouse warehouse.Adapter
	Metrics   *metrics.Metrics
}

func (p *DriftProcessor) Process(ctx context.Context, task *async.Task, checkCanceled async.CancelChecker) (json.RawMessage, error) {
	var args DriftArgs
	if err := json.Unmarshal(task.Args, &args); err != nil {
		return nil, ontoerrors.InvalidStructureErr("decode drift args: %v", err)
	}

	ir, _, err := loadIR(ctx, p.Store, args.VersionID)
	if err != nil {
		return nil, err
	}
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}

	detector := drift.NewDetector(p.Warehouse, p.Store.Cache, p.Store.Runs)
	started := time.Now()

	mappingEvents, err := detector.RunMapping(ctx, args.OntologyID, ir, args.Database, args.Schema)
	if err != nil {
		return nil, fmt.Errorf("run mapping drift probe: %w", err)
	}
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}

	var viewEvents []*store.DriftEvent
	if args.ViewFQN != "" {
		viewEvents, err = detector.RunView(ctx, args.OntologyID, args.ViewFQN, []byte(args.DeployedYAML))
		if err != nil {
			return nil, fmt.Errorf("run view drift probe: %w", err)
		}
	}

	events := append(mappingEvents, viewEvents...)
	if p.Metrics != nil {
		p.Metrics.DriftScanLength.WithLabelValues("combined").Observe(time.Since(started).Seconds())
		for _, ev := range events {
			p.Metrics.RecordDriftEvent(string(ev.EventType))
		}
	}

	raw, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("marshal drift events: %w", err)
	}
	return raw, nil
}

// RegressionArgs is the payload for a KindRegression task.
type RegressionArgs struct {
	VersionID string                `json:"version_id"`
	Database  string                `json:"database"`
	Schema    string                `json:"schema"`
	ViewName  string                `json:"view_name"`
	Questions []regression.Question `json:"questions"`
}

// RegressionProcessor runs the C9 regression suite against a deployed view.
// Bundles is optional — when nil, no JUnit report is produced and the run's
// JUnitRef stays empty.
type RegressionProcessor struct {
	Store     *store.Store
	Warehouse warehouse.Adapter
	Bundles   *bundlestore.Store
	Metrics   *metrics.Metrics
}

func (p *RegressionProcessor) Process(ctx context.Context, task *async.Task, checkCanceled async.CancelChecker) (json.RawMessage, error) {
	var args RegressionArgs
	if err := json.Unmarshal(task.Args, &args); err != nil {
		return nil, ontoerrors.InvalidStructureErr("decode regression args: %v", err)
	}
	if err := checkCanceled(ctx); err != nil {
		return nil, err
	}

	report, err := regression.Run(ctx, p.Warehouse, p.Store.Admin, args.Database, args.Schema, args.ViewName, args.Questions, 0)
	if err != nil {
		return nil, err
	}

	viewFQN := fmt.Sprintf("%s.%s.%s", args.Database, args.Schema, args.ViewName)
	var junitRef string
	if p.Bundles != nil {
		if junit, err := regression.JUnitXML(viewFQN, report); err == nil {
			key := fmt.Sprintf("regression/%s-%s.xml", args.VersionID, task.ID)
			if ref, err := p.Bundles.PutReport(ctx, key, junit, "application/xml"); err == nil {
				junitRef = ref
			}
		}
	}

	resultsJSON, err := json.Marshal(report.Results)
	if err != nil {
		return nil, fmt.Errorf("marshal regression results: %w", err)
	}

	run := &store.RegressionRun{
		VersionID:     args.VersionID,
		ViewID:        viewFQN,
		QuestionCount: report.QuestionCount,
		PassCount:     report.PassCount,
		FailCount:     report.FailCount,
		Results:       resultsJSON,
		OverallPass:   report.OverallPass,
		TotalLatency:  report.TotalLatencyMS,
		JUnitRef:      junitRef,
	}
	if err := p.Store.Runs.WriteRegressionRun(ctx, run); err != nil {
		return nil, err
	}
	if p.Metrics != nil {
		p.Metrics.RecordRegression(viewFQN, report.PassCount, report.QuestionCount, time.Duration(report.TotalLatencyMS)*time.Millisecond)
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal regression report: %w", err)
	}
	if !report.OverallPass {
		return raw, ontoerrors.RegressionFailedErr(report.FailCount, report.QuestionCount)
	}
	return raw, nil
}
