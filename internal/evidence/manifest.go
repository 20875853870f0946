package evidence

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// SchemaVersion identifies the manifest format. Bump only with a migration
// story: emitted manifests must remain verifiable byte-for-byte by older
// auditors.
const SchemaVersion = "1"

// ManifestEntry describes one emitted file.
type ManifestEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int    `json:"bytes"`
}

// Manifest is the top-level audit index for a bundle.
type Manifest struct {
	SchemaVersion string          `json:"schema_version"`
	RunRef        string          `json:"run_ref"`
	Files         []ManifestEntry `json:"files"`
}

// BuildManifest encodes a byte-stable manifest: entries sorted by path,
// fixed two-space indentation, trailing newline. Same inputs always produce
// identical bytes.
func BuildManifest(runRef string, entries []ManifestEntry) ([]byte, error) {
	sorted := make([]ManifestEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	m := Manifest{
		SchemaVersion: SchemaVersion,
		RunRef:        runRef,
		Files:         sorted,
	}
	return stableMarshal(m)
}

// stableMarshal is the single JSON encoder for bundle files: stdlib
// MarshalIndent with two-space indent and a trailing newline. Struct field
// order is fixed by the type definitions, which is what makes the output a
// stable contract.
func stableMarshal(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(data)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
