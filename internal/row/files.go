package row

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PartFilePattern matches the part files an emitter writes into a batch
// directory. Part numbers are monotonic within one capture session.
const PartFilePattern = "rows_part_*.json"

// PartFileName returns the file name for part n.
func PartFileName(n int) string {
	return fmt.Sprintf("rows_part_%d.json", n)
}

// WritePartFile serializes rows as a JSON array to path, atomically via a
// temp file in the same directory so a watcher never observes a half-written
// part.
func WritePartFile(path string, rows []RowRecord) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding part file: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "rows_part-*.json.tmp")
	if err != nil {
		return fmt.Errorf("writing part file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing part file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("writing part file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("writing part file: %w", err)
	}
	return nil
}

// ReadPartFile reads a JSON array of RowRecords from path.
func ReadPartFile(path string) ([]RowRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading part file: %w", err)
	}
	var rows []RowRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing part file %s: %w", path, err)
	}
	return rows, nil
}

// WriteStitched writes the stitched rows file.
func WriteStitched(path string, rows []StitchedRow) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding stitched file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing stitched file: %w", err)
	}
	return nil
}

// ReadStitched reads a stitched rows file.
func ReadStitched(path string) ([]StitchedRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stitched file: %w", err)
	}
	var rows []StitchedRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing stitched file %s: %w", path, err)
	}
	return rows, nil
}

// WriteCleaned writes the final cleaned conversation file.
func WriteCleaned(path string, msgs []CleanedMessage) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cleaned file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cleaned file: %w", err)
	}
	return nil
}

// ReadCleaned reads a cleaned conversation file.
func ReadCleaned(path string) ([]CleanedMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cleaned file: %w", err)
	}
	var msgs []CleanedMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parsing cleaned file %s: %w", path, err)
	}
	return msgs, nil
}
