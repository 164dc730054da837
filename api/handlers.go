package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"ontoforge.dev/async"
	"ontoforge.dev/diff"
	"ontoforge.dev/evaluator"
	"ontoforge.dev/metrics"
	"ontoforge.dev/ontoerrors"
	"ontoforge.dev/ontology"
	"ontoforge.dev/store"
)

// Handlers holds the dependencies every route needs, the same single-struct
// shape as the teacher's api.Handlers — widened from {RabbitMQ, CouchDB, JWT}
// to the lifecycle engine's store/runner/metrics trio.
type Handlers struct {
	Store   *store.Store
	Runner  *async.Runner
	Metrics *metrics.Metrics
}

// Health reports liveness; it never touches a backend, matching the
// teacher's bare "OK!" health route.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func errToHTTP(err error) (int, map[string]any) {
	if tagged, ok := err.(*ontoerrors.Error); ok {
		status := http.StatusInternalServerError
		switch tagged.Code {
		case ontoerrors.InvalidStructure, ontoerrors.InvalidReference, ontoerrors.DuplicateContent:
			status = http.StatusBadRequest
		case ontoerrors.Timeout:
			status = http.StatusGatewayTimeout
		case ontoerrors.Canceled:
			status = http.StatusConflict
		}
		return status, map[string]any{"code": tagged.Code, "message": tagged.Message, "details": tagged.Details}
	}
	return http.StatusInternalServerError, map[string]any{"code": "INTERNAL", "message": err.Error()}
}

func (h *Handlers) fail(c echo.Context, err error) error {
	status, body := errToHTTP(err)
	return c.JSON(status, body)
}

type createWorkspaceRequest struct {
	Name string `json:"name"`
}

func (h *Handlers) CreateWorkspace(c echo.Context) error {
	var req createWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	ws, err := h.Store.Admin.CreateWorkspace(c.Request().Context(), req.Name)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, ws)
}

func (h *Handlers) GetWorkspace(c echo.Context) error {
	ws, err := h.Store.Admin.GetWorkspace(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ws)
}

type createOntologyRequest struct {
	Name string `json:"name"`
}

func (h *Handlers) CreateOntology(c echo.Context) error {
	var req createOntologyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	o, err := h.Store.Admin.CreateOntology(c.Request().Context(), c.Param("workspaceId"), req.Name)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handlers) GetOntology(c echo.Context) error {
	o, err := h.Store.Admin.GetOntology(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handlers) ListOntologies(c echo.Context) error {
	out, err := h.Store.Admin.ListOntologies(c.Request().Context(), c.Param("workspaceId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) DeactivateOntology(c echo.Context) error {
	if err := h.Store.Admin.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateVersion accepts a raw ODL document body, runs it through the C1
// validator and C2/C3 normalization+hashing pipeline, and records it.
func (h *Handlers) CreateVersion(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "failed to read request body"})
	}
	author := c.QueryParam("author")
	notes := c.QueryParam("notes")

	v, err := h.Store.Versions.CreateVersion(c.Request().Context(), c.Param("ontologyId"), body, author, notes)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handlers) GetVersion(c echo.Context) error {
	v, err := h.Store.Versions.GetVersion(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handlers) ListVersions(c echo.Context) error {
	out, err := h.Store.Versions.ListVersions(c.Request().Context(), c.Param("ontologyId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// DiffVersions runs the C4 diff engine between two versions, both already
// normalized at CreateVersion time.
func (h *Handlers) DiffVersions(c echo.Context) error {
	ctx := c.Request().Context()
	oldIR, err := h.loadIRForHandler(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	newIR, err := h.loadIRForHandler(ctx, c.Param("otherId"))
	if err != nil {
		return h.fail(c, err)
	}
	result := diff.Compute(oldIR, newIR)
	return c.JSON(http.StatusOK, result)
}

type evaluateRequest struct {
	Profile evaluator.Profile `json:"profile"`
}

// EvaluateVersion runs the C5 gate engine synchronously — unlike compile,
// deploy, drift and regression, evaluation is fast enough to answer inline.
func (h *Handlers) EvaluateVersion(c echo.Context) error {
	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	if req.Profile == "" {
		req.Profile = evaluator.Standard
	}
	ctx := c.Request().Context()
	ir, err := h.loadIRForHandler(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	result := evaluator.Evaluate(ir, req.Profile)

	metricsJSON, err := marshalEvalMetrics(result)
	if err != nil {
		return h.fail(c, err)
	}
	if _, err := h.Store.Runs.WriteEvalRun(ctx, c.Param("id"), string(req.Profile), metricsJSON, result.Passed); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func marshalEvalMetrics(result *evaluator.Result) ([]byte, error) {
	return json.Marshal(result.Metrics)
}

func (h *Handlers) loadIRForHandler(ctx context.Context, versionID string) (*ontology.IR, error) {
	v, err := h.Store.Versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	payload, err := h.Store.Versions.GetPayload(ctx, v)
	if err != nil {
		return nil, err
	}
	doc, err := ontology.ParseDocument(payload)
	if err != nil {
		return nil, err
	}
	ir, err := ontology.BuildIR(doc)
	if err != nil {
		return nil, err
	}
	return ontology.Normalize(ir), nil
}

func (h *Handlers) SubmitCompile(c echo.Context) error {
	var args CompileArgs
	if err := c.Bind(&args); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	id, err := h.Runner.Submit(c.Request().Context(), async.KindCompile, c.QueryParam("workspace_id"), args)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": id})
}

func (h *Handlers) SubmitDeploy(c echo.Context) error {
	var args DeployArgs
	if err := c.Bind(&args); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	id, err := h.Runner.Submit(c.Request().Context(), async.KindDeploy, c.QueryParam("workspace_id"), args)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": id})
}

func (h *Handlers) SubmitDrift(c echo.Context) error {
	var args DriftArgs
	if err := c.Bind(&args); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	id, err := h.Runner.Submit(c.Request().Context(), async.KindDrift, c.QueryParam("workspace_id"), args)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": id})
}

func (h *Handlers) SubmitRegression(c echo.Context) error {
	var args RegressionArgs
	if err := c.Bind(&args); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	id, err := h.Runner.Submit(c.Request().Context(), async.KindRegression, c.QueryParam("workspace_id"), args)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": id})
}

func (h *Handlers) TaskStatus(c echo.Context) error {
	task, err := h.Runner.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handlers) CancelTask(c echo.Context) error {
	if err := h.Runner.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handlers) ListLifecycleEvents(c echo.Context) error {
	out, err := h.Store.Admin.ListLifecycleEvents(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
