// Package evidence externalizes a processing run for audit: hashes, linkage
// tuples, the decision trace, and a byte-stable manifest, laid out in a
// fixed directory structure.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"

	"dicom-deident/internal/trace"
)

// Bundle directory layout. The layout and the manifest format are persisted
// contracts: prior audits must stay verifiable against newer code.
var bundleDirs = []string{
	"CONFIG", "INPUT", "OUTPUT", "DECISIONS", "LINKAGE", "QA", "SIGNATURE",
}

// Linkage ties one input record to its de-identified output without naming
// either: truncated input digest on one side, remapped reference on the
// other.
type Linkage struct {
	InputHash  string `json:"input_hash"`
	OutputRef  string `json:"output_ref"`
	OutputHash string `json:"output_hash"`
}

// RecordHash is one file-level digest entry.
type RecordHash struct {
	Ref    string `json:"ref"`
	SHA256 string `json:"sha256"`
	Bytes  int    `json:"bytes"`
}

// QASummary is the reviewer-facing counts block.
type QASummary struct {
	RecordsProcessed int            `json:"records_processed"`
	RecordsFailed    int            `json:"records_failed"`
	DecisionCount    int            `json:"decision_count"`
	ByAction         map[string]int `json:"by_action"`
	ByReason         map[string]int `json:"by_reason"`
}

// ConfigSnapshot is the reproducibility block. The salt is deliberately
// absent; it must never be written anywhere.
type ConfigSnapshot struct {
	Profile       string `json:"profile"`
	Strict        bool   `json:"strict"`
	ShiftMinDays  int    `json:"shift_min_days"`
	ShiftMaxDays  int    `json:"shift_max_days"`
	SchemaVersion string `json:"schema_version"`
}

// Bundle is everything one run externalizes.
type Bundle struct {
	RunRef    string
	Config    ConfigSnapshot
	Inputs    []RecordHash
	Outputs   []RecordHash
	Linkages  []Linkage
	Decisions []trace.Decision
	QA        QASummary
}

// Writer emits bundles under a base directory, one subdirectory per run.
type Writer struct {
	baseDir string
}

// NewWriter creates a bundle writer rooted at baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Write emits the bundle and its manifest. Returns the bundle directory.
func (w *Writer) Write(b *Bundle) (string, error) {
	if b.RunRef == "" {
		return "", fmt.Errorf("bundle has no run reference")
	}

	dir := filepath.Join(w.baseDir, b.RunRef)
	for _, d := range bundleDirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0755); err != nil {
			return "", fmt.Errorf("could not create bundle directory: %w", err)
		}
	}

	b.Config.SchemaVersion = SchemaVersion

	files := []struct {
		path string
		data interface{}
	}{
		{filepath.Join("CONFIG", "run.json"), b.Config},
		{filepath.Join("INPUT", "hashes.json"), b.Inputs},
		{filepath.Join("OUTPUT", "hashes.json"), b.Outputs},
		{filepath.Join("LINKAGE", "linkage.json"), b.Linkages},
		{filepath.Join("DECISIONS", "decisions.json"), b.Decisions},
		{filepath.Join("QA", "summary.json"), b.QA},
	}

	var entries []ManifestEntry
	for _, f := range files {
		data, err := stableMarshal(f.data)
		if err != nil {
			return "", fmt.Errorf("could not encode %s: %w", f.path, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.path), data, 0644); err != nil {
			return "", fmt.Errorf("could not write %s: %w", f.path, err)
		}
		entries = append(entries, ManifestEntry{
			Path:   f.path,
			SHA256: digest(data),
			Bytes:  len(data),
		})
	}

	manifestBytes, err := BuildManifest(b.RunRef, entries)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), manifestBytes, 0644); err != nil {
		return "", fmt.Errorf("could not write manifest: %w", err)
	}

	// The signature file seals the manifest; verifying it transitively
	// verifies every listed file.
	sig := digest(manifestBytes) + "\n"
	if err := os.WriteFile(filepath.Join(dir, "SIGNATURE", "manifest.sha256"), []byte(sig), 0644); err != nil {
		return "", fmt.Errorf("could not write signature: %w", err)
	}

	return dir, nil
}
