package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Environment names one deployment target within a bundle: a promotion bundle
// carries one per environment (dev, staging, prod, ...), each with its own
// database/schema/view_name; a single-environment bundle carries exactly one
// with an empty Name, so its scripts sit at the bundle root instead of a
// named subdirectory.
type Environment struct {
	Name   string     `json:"name"`
	Target ViewTarget `json:"target"`
}

// BundleMetadata is the manifest written alongside the compiled artifacts.
type BundleMetadata struct {
	SourceOntology string   `json:"sourceOntology"`
	VersionNumber  int      `json:"versionNumber"`
	ContentHash    string   `json:"contentHash"`
	Environments   []string `json:"environments"`
	RollbackAvailable bool  `json:"rollbackAvailable"`
}

// ArtifactBundle is C6's output: a compiled semantic model plus the SQL
// scripts to verify, deploy, and roll it back, optionally repeated per
// environment. Bundles are content-addressed by the hash of their
// concatenated canonical files, so identical inputs with the same set of
// environments always produce an identical bundle hash; adding, removing or
// renaming an environment changes the hash.
type ArtifactBundle struct {
	Metadata          BundleMetadata
	SemanticModelYAML []byte
	RollbackYAML      []byte // optional, empty when no prior view existed
	Environments      map[string]envScripts
	envOrder          []string
	ContentHash       string
}

type envScripts struct {
	VerifySQL   string
	DeploySQL   string
	RollbackSQL string
}

// BuildBundle assembles an ArtifactBundle from a compiled model, its
// rendered YAML, and one Environment per deployment target. rollbackYAML is
// the pre-deploy export of the existing view, or empty if none existed
// (ROLLBACK_UNAVAILABLE is then a caller-level warning, not a bundle error).
func BuildBundle(model *LogicalModel, modelYAML []byte, envs []Environment, rollbackYAML string) (*ArtifactBundle, error) {
	if len(envs) == 0 {
		return nil, fmt.Errorf("build bundle %s: at least one environment is required", model.SourceOntology)
	}

	b := &ArtifactBundle{
		SemanticModelYAML: modelYAML,
		Environments:      make(map[string]envScripts, len(envs)),
	}
	if rollbackYAML != "" {
		b.RollbackYAML = []byte(rollbackYAML)
	}

	names := make([]string, 0, len(envs))
	for _, env := range envs {
		b.Environments[env.Name] = envScripts{
			VerifySQL:   VerifySQL(env.Target, string(modelYAML)),
			DeploySQL:   DeploySQL(env.Target, string(modelYAML)),
			RollbackSQL: RollbackSQL(env.Target, rollbackYAML),
		}
		names = append(names, env.Name)
	}
	sort.Strings(names)
	b.envOrder = names

	b.Metadata = BundleMetadata{
		SourceOntology:    model.SourceOntology,
		VersionNumber:     model.VersionNumber,
		ContentHash:       model.ContentHash,
		Environments:      names,
		RollbackAvailable: rollbackYAML != "",
	}

	hash, err := b.computeHash()
	if err != nil {
		return nil, err
	}
	b.ContentHash = hash
	return b, nil
}

// Files renders the bundle's file tree as a path -> content map, matching the
// layout a single-environment bundle (scripts at root) or a promotion bundle
// (shared YAML at root, per-env scripts in <env>/ subdirectories).
func (b *ArtifactBundle) Files() (map[string][]byte, error) {
	files := map[string][]byte{
		"semantic_model.yaml": b.SemanticModelYAML,
	}
	if len(b.RollbackYAML) > 0 {
		files["rollback_semantic_model.yaml"] = b.RollbackYAML
	}

	metadata, err := json.MarshalIndent(b.Metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal bundle metadata: %w", err)
	}
	files["metadata.json"] = metadata

	promotion := len(b.envOrder) > 1 || (len(b.envOrder) == 1 && b.envOrder[0] != "")
	for _, name := range b.envOrder {
		scripts := b.Environments[name]
		prefix := ""
		if promotion {
			prefix = name + "/"
		}
		files[prefix+"verify.sql"] = []byte(scripts.VerifySQL)
		files[prefix+"deploy.sql"] = []byte(scripts.DeploySQL)
		files[prefix+"rollback.sql"] = []byte(scripts.RollbackSQL)
	}
	return files, nil
}

// computeHash hashes the bundle's canonical files concatenated in sorted
// path order, so the hash is independent of map iteration order and stable
// across repeated compiles of identical input.
func (b *ArtifactBundle) computeHash() (string, error) {
	files, err := b.Files()
	if err != nil {
		return "", err
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(files[p])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
