package vcs

import (
	"fmt"
	"strings"

	"github.com/gitlite/gitlite/internal/models"
	"github.com/pmezard/go-difflib/difflib"
)

// DiffStats counts added and removed lines in a delta.
type DiffStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// DiffResult is the outcome of comparing two versions of a file. For binary
// versions no line delta is produced and Binary is set instead.
type DiffResult struct {
	FileID   int64     `json:"file_id"`
	Filename string    `json:"filename"`
	Version1 int       `json:"version1"`
	Version2 int       `json:"version2"`
	Binary   bool      `json:"binary"`
	Diff     string    `json:"diff"`
	Compact  string    `json:"compact"`
	Stats    DiffStats `json:"stats"`
}

// diffContext is the number of context lines around each hunk.
const diffContext = 3

// UnifiedDiff produces a unified-style line delta between two text contents.
// Output is deterministic for a given ordered pair. The engine never reorders
// its inputs: the caller must pass the chronologically earlier content first,
// otherwise the delta is simply reported with the roles swapped.
func UnifiedDiff(a, b, fromFile, toFile string, context int) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  context,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("generate unified diff: %w", err)
	}
	return text, nil
}

// DiffVersions compares the payloads of two versions of the same file. Binary
// versions are not diffable; the result then carries only the structural
// "binary contents differ" signal. Ordering of v1/v2 is the caller's
// contract (see UnifiedDiff).
func DiffVersions(filename string, v1, v2 *models.Version) (*DiffResult, error) {
	if v1.FileID != v2.FileID {
		return nil, fmt.Errorf("%w: versions belong to different files", ErrValidation)
	}

	result := &DiffResult{
		FileID:   v1.FileID,
		Filename: filename,
		Version1: v1.VersionNumber,
		Version2: v2.VersionNumber,
	}

	if v1.IsBinary() || v2.IsBinary() {
		result.Binary = true
		return result, nil
	}

	var a, b string
	if v1.ContentText != nil {
		a = *v1.ContentText
	}
	if v2.ContentText != nil {
		b = *v2.ContentText
	}

	fromFile := fmt.Sprintf("%s@v%d", filename, v1.VersionNumber)
	toFile := fmt.Sprintf("%s@v%d", filename, v2.VersionNumber)

	full, err := UnifiedDiff(a, b, fromFile, toFile, diffContext)
	if err != nil {
		return nil, err
	}
	compact, err := UnifiedDiff(a, b, fromFile, toFile, 0)
	if err != nil {
		return nil, err
	}

	result.Diff = full
	result.Compact = compact
	result.Stats = countChanges(full)
	return result, nil
}

// countChanges tallies added and removed lines in a unified diff, skipping
// the ---/+++ header lines.
func countChanges(diff string) DiffStats {
	var stats DiffStats
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			stats.Additions++
		case strings.HasPrefix(line, "-"):
			stats.Deletions++
		}
	}
	return stats
}
