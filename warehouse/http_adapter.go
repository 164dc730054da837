package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter is a thin JSON client over the warehouse's semantic-view
// management endpoints. Verify, ExportExisting and ListCatalog wrap their HTTP
// call in the retry policy; Deploy and Ask make a single call, never retried.
type HTTPAdapter struct {
	baseURL string
	client  *http.Client
	retry   RetryPolicy
}

// NewHTTPAdapter builds an HTTPAdapter targeting baseURL (e.g.
// https://warehouse.internal/semantic). A 30s per-call timeout matches the
// teacher's HTTPExecutor default.
func NewHTTPAdapter(baseURL string) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   DefaultRetryPolicy(),
	}
}

type verifyRequest struct {
	YAML     string `json:"yaml"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
}

type verifyResponse struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (a *HTTPAdapter) Verify(ctx context.Context, yamlBody, database, schema string) (*VerifyResult, error) {
	var resp verifyResponse
	err := withRetry(ctx, defaultLogger(), a.retry, func() error {
		r, err := a.post(ctx, "/verify", verifyRequest{YAML: yamlBody, Database: database, Schema: schema})
		if err != nil {
			return err
		}
		return json.Unmarshal(r, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &VerifyResult{OK: resp.OK, Errors: resp.Errors, Warnings: resp.Warnings}, nil
}

type deployRequest struct {
	YAML     string `json:"yaml"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
	ViewName string `json:"viewName"`
}

type deployResponse struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// Deploy is never retried — see Adapter.Deploy.
func (a *HTTPAdapter) Deploy(ctx context.Context, yamlBody, database, schema, viewName string) (*DeployResult, error) {
	r, err := a.post(ctx, "/deploy", deployRequest{YAML: yamlBody, Database: database, Schema: schema, ViewName: viewName})
	if err != nil {
		return nil, err
	}
	var resp deployResponse
	if err := json.Unmarshal(r, &resp); err != nil {
		return nil, err
	}
	return &DeployResult{OK: resp.OK, Errors: resp.Errors}, nil
}

type exportResponse struct {
	Found bool   `json:"found"`
	YAML  string `json:"yaml"`
}

func (a *HTTPAdapter) ExportExisting(ctx context.Context, viewFQN string) (string, error) {
	var resp exportResponse
	err := withRetry(ctx, defaultLogger(), a.retry, func() error {
		r, err := a.get(ctx, "/export_existing", map[string]string{"view": viewFQN})
		if err != nil {
			return err
		}
		return json.Unmarshal(r, &resp)
	})
	if err != nil {
		return "", err
	}
	if !resp.Found {
		return "", ErrNotFound
	}
	return resp.YAML, nil
}

type catalogColumnWire struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (a *HTTPAdapter) ListCatalog(ctx context.Context, database, schema string) (map[string]map[string]CatalogColumn, error) {
	var resp map[string][]catalogColumnWire
	err := withRetry(ctx, defaultLogger(), a.retry, func() error {
		r, err := a.get(ctx, "/catalog", map[string]string{"database": database, "schema": schema})
		if err != nil {
			return err
		}
		return json.Unmarshal(r, &resp)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]CatalogColumn, len(resp))
	for table, cols := range resp {
		byName := make(map[string]CatalogColumn, len(cols))
		for _, c := range cols {
			byName[c.Name] = CatalogColumn{Name: c.Name, Type: coarseType(c.Type)}
		}
		out[table] = byName
	}
	return out, nil
}

type askResponse struct {
	SQL       string `json:"sql"`
	Answer    string `json:"answer"`
	LatencyMS int64  `json:"latencyMs"`
}

func (a *HTTPAdapter) Ask(ctx context.Context, viewFQN, question string) (*AskResult, error) {
	r, err := a.post(ctx, "/ask", map[string]string{"view": viewFQN, "question": question})
	if err != nil {
		return nil, err
	}
	var resp askResponse
	if err := json.Unmarshal(r, &resp); err != nil {
		return nil, err
	}
	return &AskResult{SQL: resp.SQL, Answer: resp.Answer, LatencyMS: resp.LatencyMS}, nil
}

// coarseType maps a warehouse-reported column type to the equivalence class
// the drift detector compares: varchar->string, number/decimal->decimal,
// boolean->boolean, date/timestamp->date.
func coarseType(t string) string {
	switch strings.ToLower(t) {
	case "varchar", "text", "string", "char":
		return "string"
	case "number", "decimal", "numeric", "float", "double", "int", "integer", "bigint":
		return "decimal"
	case "boolean", "bool":
		return "boolean"
	case "date", "timestamp", "timestamp_ntz", "timestamp_tz", "datetime":
		return "date"
	default:
		return strings.ToLower(t)
	}
}

func (a *HTTPAdapter) post(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a *HTTPAdapter) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	return a.do(req)
}

func (a *HTTPAdapter) do(req *http.Request) ([]byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &transportError{cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{cause: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &transportError{cause: fmt.Errorf("warehouse endpoint returned %d: %s", resp.StatusCode, body)}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("warehouse endpoint returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
