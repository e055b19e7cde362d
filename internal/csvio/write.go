package csvio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Write serializes rows to the vendor wire format: a UTF-8 byte order mark,
// comma delimiters regardless of what was detected on read, one trailing \n
// per row, and fields containing a comma, quote, or newline wrapped in
// quotes with interior quotes doubled.
func Write(rows [][]string) []byte {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	for _, row := range rows {
		for i, field := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(escapeField(field))
		}
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

// WriteFile writes rows to path atomically: the bytes land in a temp file
// in the same directory, which is renamed over the target only after a
// successful write. A half-written output file is never observable.
func WriteFile(path string, rows [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(Write(rows)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace csv file: %w", err)
	}
	return nil
}

// escapeField quotes a field when the wire format requires it.
func escapeField(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
