package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"market-etl/internal/observability"
	"market-etl/internal/pipeline"
)

// WriteRun writes every table as <outputDir>/<run_id>/<table>.csv and, when
// docsDir is set, copies the files into docsDir. Returns the run directory.
func WriteRun(t *pipeline.Tables, outputDir, docsDir string) (string, error) {
	if t.Metadata == nil {
		return "", fmt.Errorf("tables have no run metadata")
	}
	versionDir := filepath.Join(outputDir, t.Metadata.RunID)
	for _, dir := range []string{versionDir, docsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}

	for _, table := range pipeline.TableNames {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, table, t); err != nil {
			return "", fmt.Errorf("render %s: %w", table, err)
		}

		name := table + ".csv"
		if err := os.WriteFile(filepath.Join(versionDir, name), buf.Bytes(), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
		if docsDir != "" {
			if err := os.WriteFile(filepath.Join(docsDir, name), buf.Bytes(), 0o644); err != nil {
				return "", fmt.Errorf("copy %s to docs: %w", name, err)
			}
		}
		observability.RecordExport("csv")
	}
	return versionDir, nil
}
