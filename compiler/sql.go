package compiler

import "fmt"

// ViewTarget names where a compiled semantic view lives and what it's called.
type ViewTarget struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
	ViewName string `json:"view_name"`
}

func (t ViewTarget) databaseSchema() string {
	return fmt.Sprintf("%s.%s", t.Database, t.Schema)
}

func (t ViewTarget) qualified() string {
	return fmt.Sprintf("%s.%s.%s", t.Database, t.Schema, t.ViewName)
}

// VerifySQL calls the warehouse's semantic-view verification procedure in
// verify-only mode against database.schema, without creating the view.
func VerifySQL(target ViewTarget, yamlLiteral string) string {
	return fmt.Sprintf(
		"CALL SYSTEM$CREATE_SEMANTIC_VIEW_FROM_YAML(%s, %s, verify_only=>TRUE);\n",
		sqlStringLiteral(target.databaseSchema()), sqlStringLiteral(yamlLiteral),
	)
}

// DeploySQL calls the same procedure in non-verify mode, targeting the fully
// qualified view name.
func DeploySQL(target ViewTarget, yamlLiteral string) string {
	return fmt.Sprintf(
		"CALL SYSTEM$CREATE_SEMANTIC_VIEW_FROM_YAML(%s, %s, verify_only=>FALSE);\n",
		sqlStringLiteral(target.qualified()), sqlStringLiteral(yamlLiteral),
	)
}

// RollbackSQL drops the deployed view and, if a pre-deploy snapshot of the
// view was captured (rollbackYAML non-empty), re-creates it from that
// snapshot. An empty rollbackYAML means export_existing returned NOT_FOUND at
// deploy time — the drop is all that can be offered, and ROLLBACK_UNAVAILABLE
// is flagged elsewhere as a warning, never a failure.
func RollbackSQL(target ViewTarget, rollbackYAML string) string {
	sql := fmt.Sprintf("DROP SEMANTIC VIEW IF EXISTS %s;\n", target.qualified())
	if rollbackYAML == "" {
		return sql
	}
	sql += fmt.Sprintf(
		"CALL SYSTEM$CREATE_SEMANTIC_VIEW_FROM_YAML(%s, %s, verify_only=>FALSE);\n",
		sqlStringLiteral(target.qualified()), sqlStringLiteral(rollbackYAML),
	)
	return sql
}

// sqlStringLiteral quotes s as a single-quoted SQL string literal, doubling
// any embedded single quotes.
func sqlStringLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
