package ontology

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Normalize produces the canonical form of ir: objects, properties, relationships,
// metrics and dimensions ordered lexicographically by name; joinKeys pairs kept in
// their semantic order but the outer list sorted by (from, to) property name;
// booleans defaulted explicitly; strings trimmed. Normalize(Normalize(x)) must
// equal Normalize(x) byte-for-byte once serialized.
func Normalize(ir *IR) *IR {
	out := &IR{
		Version:       strings.TrimSpace(ir.Version),
		Name:          strings.TrimSpace(ir.Name),
		Description:   ir.Description,
		TargetMapping: ir.TargetMapping,
	}

	out.Objects = append([]Object(nil), ir.Objects...)
	for i := range out.Objects {
		out.Objects[i] = normalizeObject(out.Objects[i])
	}
	sort.Slice(out.Objects, func(i, j int) bool { return out.Objects[i].Name < out.Objects[j].Name })

	out.Relationships = append([]Relationship(nil), ir.Relationships...)
	for i := range out.Relationships {
		out.Relationships[i] = normalizeRelationship(out.Relationships[i])
	}
	sort.Slice(out.Relationships, func(i, j int) bool { return out.Relationships[i].Name < out.Relationships[j].Name })

	out.Metrics = append([]Metric(nil), ir.Metrics...)
	for i := range out.Metrics {
		out.Metrics[i].Name = strings.TrimSpace(out.Metrics[i].Name)
		out.Metrics[i].Expression = strings.TrimSpace(out.Metrics[i].Expression)
		grain := append([]string(nil), out.Metrics[i].Grain...)
		sort.Strings(grain)
		out.Metrics[i].Grain = grain
	}
	sort.Slice(out.Metrics, func(i, j int) bool { return out.Metrics[i].Name < out.Metrics[j].Name })

	out.Dimensions = append([]Dimension(nil), ir.Dimensions...)
	sort.Slice(out.Dimensions, func(i, j int) bool { return out.Dimensions[i].Name < out.Dimensions[j].Name })

	if out.TargetMapping != nil && out.TargetMapping.TableMappings != nil {
		sorted := make(map[string]string, len(out.TargetMapping.TableMappings))
		for k, v := range out.TargetMapping.TableMappings {
			sorted[k] = v
		}
		tm := *out.TargetMapping
		tm.TableMappings = sorted
		out.TargetMapping = &tm
	}

	return out
}

func normalizeObject(o Object) Object {
	o.Name = strings.TrimSpace(o.Name)
	ids := append([]string(nil), o.Identifiers...)
	o.Identifiers = ids

	props := append([]Property(nil), o.Properties...)
	for i := range props {
		props[i].Name = strings.TrimSpace(props[i].Name)
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	o.Properties = props
	return o
}

func normalizeRelationship(r Relationship) Relationship {
	r.Name = strings.TrimSpace(r.Name)
	keys := append([]JoinKey(nil), r.JoinKeys...)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})
	r.JoinKeys = keys
	return r
}

// Serialize renders ir as byte-stable YAML: UTF-8, LF line endings, two-space
// indent, no trailing whitespace. Callers pass an already-Normalize'd IR; Serialize
// does not normalize on its own so the normalization step stays explicit and
// testable in isolation.
func Serialize(ir *IR) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ir); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	lines := strings.Split(buf.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// ContentHash returns the hex-encoded sha256 digest of canonical bytes, used as
// the version's content hash and as the basis for artifact-bundle addressing.
func ContentHash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
