package csvio

import (
	"fmt"
	"strings"
)

// Validation limits.
var (
	// MaxColumns flags a header wider than any sheet the studio's vendors
	// actually produce; beyond it the file is almost certainly tokenized
	// with the wrong delimiter.
	MaxColumns = 100

	// maxMismatchDetails caps per-row width mismatch reporting; the rest
	// collapse into a single summary line.
	maxMismatchDetails = 10
)

// ValidationReport summarizes structural checks over a parsed document.
type ValidationReport struct {
	HeaderCount int
	Errors      []string
	Warnings    []string
}

// OK reports whether validation found no errors. Warnings alone do not
// fail a file.
func (r *ValidationReport) OK() bool {
	return len(r.Errors) == 0
}

// Validate runs the structural checks on doc, independent of whether the
// parse itself was clean: header presence, column-count sanity, and per-row
// width mismatches against the header. The first maxMismatchDetails
// mismatches are reported individually with their line numbers; the
// remainder are summarized.
func Validate(doc *Document) *ValidationReport {
	report := &ValidationReport{HeaderCount: len(doc.Headers)}

	if len(doc.Headers) == 0 || allBlank(doc.Headers) {
		report.Errors = append(report.Errors, "no headers found")
	}
	if len(doc.Headers) > MaxColumns {
		report.Errors = append(report.Errors,
			fmt.Sprintf("%d columns exceeds the %d column limit; check the delimiter", len(doc.Headers), MaxColumns))
	}

	mismatches := 0
	for _, rw := range doc.rowWidths {
		if rw.width == len(doc.Headers) {
			continue
		}
		mismatches++
		if mismatches <= maxMismatchDetails {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("line %d has %d fields, expected %d", rw.line, rw.width, len(doc.Headers)))
		}
	}
	if extra := mismatches - maxMismatchDetails; extra > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("and %d more rows with mismatched field counts", extra))
	}

	if doc.Truncated {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("file truncated at %d rows", len(doc.Rows)))
	}

	return report
}

// ValidateFile parses and validates the file at path in one step. Parse
// failures come back as the error; structural findings land in the report.
func ValidateFile(path string) (*ValidationReport, error) {
	doc, err := ParseFile(path, ParseOptions{})
	if err != nil {
		return nil, err
	}
	return Validate(doc), nil
}

func allBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
