package regression

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ontoforge.dev/ontoerrors"
	"ontoforge.dev/store"
	"ontoforge.dev/warehouse"
)

// DefaultPerQuestionTimeout bounds a single Ask call when the caller doesn't
// supply one.
const DefaultPerQuestionTimeout = 60 * time.Second

// ViewLookup resolves whether a fully-qualified view has a live DeployedView
// record. Satisfied by *store.AdminStore; narrowed to an interface so tests
// can fake it without a database.
type ViewLookup interface {
	GetDeployedViewByFQN(ctx context.Context, database, schema, viewName string) (*store.DeployedView, error)
}

// Run replays questions against viewFQN (database.schema.view_name) and
// reports pass/fail per question. Running against a view with no
// DeployedView record is forbidden — the regression runner only ever
// evaluates a view that has actually gone live.
func Run(ctx context.Context, adapter warehouse.Adapter, views ViewLookup, database, schema, viewName string, questions []Question, perQuestionTimeout time.Duration) (*Report, error) {
	if _, err := views.GetDeployedViewByFQN(ctx, database, schema, viewName); err != nil {
		return nil, ontoerrors.InvalidReferenceErr("regression target %s.%s.%s has no deployed view record: %v", database, schema, viewName, err)
	}
	if perQuestionTimeout <= 0 {
		perQuestionTimeout = DefaultPerQuestionTimeout
	}

	viewFQN := fmt.Sprintf("%s.%s.%s", database, schema, viewName)
	report := &Report{QuestionCount: len(questions)}

	for _, q := range questions {
		result := runOne(ctx, adapter, viewFQN, q, perQuestionTimeout)
		report.Results = append(report.Results, result)
		report.TotalLatencyMS += result.LatencyMS
		if result.Passed {
			report.PassCount++
		} else {
			report.FailCount++
		}
	}
	report.OverallPass = report.FailCount == 0
	return report, nil
}

func runOne(ctx context.Context, adapter warehouse.Adapter, viewFQN string, q Question, timeout time.Duration) QuestionResult {
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	ask, err := adapter.Ask(qctx, viewFQN, q.Question)
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		return QuestionResult{
			Question:       q.Question,
			Passed:         false,
			FailureReasons: []string{fmt.Sprintf("ask failed: %v", err)},
			LatencyMS:      elapsed,
		}
	}

	result := QuestionResult{
		Question:  q.Question,
		SQL:       ask.SQL,
		Answer:    ask.Answer,
		LatencyMS: ask.LatencyMS,
	}
	if result.LatencyMS == 0 {
		result.LatencyMS = elapsed
	}

	var reasons []string
	lowerSQL := strings.ToLower(ask.SQL)
	for _, table := range q.ExpectedTables {
		if !strings.Contains(lowerSQL, strings.ToLower(table)) {
			reasons = append(reasons, fmt.Sprintf("expected table %q not referenced in SQL", table))
		}
	}
	for _, pattern := range q.ExpectedSQLPatterns {
		if !strings.Contains(ask.SQL, pattern) {
			reasons = append(reasons, fmt.Sprintf("expected SQL pattern %q not found", pattern))
		}
	}
	if q.ExpectedAnswerSnippet != "" && !strings.Contains(ask.Answer, q.ExpectedAnswerSnippet) {
		reasons = append(reasons, fmt.Sprintf("expected answer snippet %q not found", q.ExpectedAnswerSnippet))
	}

	result.FailureReasons = reasons
	result.Passed = len(reasons) == 0
	return result
}
