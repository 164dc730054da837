package compiler

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SerializeYAML renders model as byte-stable YAML with the same normalization
// discipline as ontology.Serialize: two-space indent, LF line endings, no
// trailing whitespace. A leading header comment carries the source ontology
// name, version number, and content hash so a reader of the compiled artifact
// can trace it back to its ontology version without opening the bundle
// manifest.
func SerializeYAML(model *LogicalModel) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(model); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	lines := strings.Split(buf.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	body := strings.Join(lines, "\n")

	header := fmt.Sprintf(
		"# source: %s\n# version: %d\n# contentHash: %s\n",
		model.SourceOntology, model.VersionNumber, model.ContentHash,
	)
	return []byte(header + body), nil
}
