// Package bundlestore packages a compiled ArtifactBundle into a zip archive
// and content-addresses it in object storage, so a promotion pipeline can
// hand a single storage key to every downstream consumer (the API, the CLI,
// an external CI job) instead of re-serializing the bundle's files each time.
package bundlestore

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
)

// Zip packages a bundle's files into a single zip archive, one entry per
// path, sorted so the archive's byte layout doesn't depend on map iteration
// order — the mirror of the teacher's own zip-slip-safe UnZip, run in reverse.
func Zip(files map[string][]byte) ([]byte, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, p := range paths {
		entry, err := w.Create(p)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", p, err)
		}
		if _, err := entry.Write(files[p]); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", p, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Unzip reverses Zip, returning each archived path's contents keyed by the
// path stored in the archive. Rejects any entry whose name would escape the
// archive root (zip slip), the same check the teacher's UnZip performs
// against a filesystem target directory — here there is no filesystem target,
// so the check is simply "no path separator escapes upward".
func Unzip(archive []byte) (map[string][]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open zip archive: %w", err)
	}

	out := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		if isZipSlip(f.Name) {
			return nil, fmt.Errorf("zip entry %q escapes archive root", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, copyErr := buf.ReadFrom(rc)
		rc.Close()
		if copyErr != nil {
			return nil, fmt.Errorf("read zip entry %s: %w", f.Name, copyErr)
		}
		out[f.Name] = buf.Bytes()
	}
	return out, nil
}

func isZipSlip(name string) bool {
	depth := 0
	for _, part := range splitPath(name) {
		switch part {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}

func splitPath(name string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			parts = append(parts, name[start:i])
			start = i + 1
		}
	}
	parts = append(parts, name[start:])
	return parts
}
