// Package csvio reads and writes the delimited text files the studio
// exchanges with print vendors.
//
// Vendor rosters arrive with unpredictable delimiters and encodings, so
// reading is detection-first: DetectDelimiter scores candidate separators by
// per-line consistency, and DecodeText sniffs byte order marks before
// falling back through a chain of legacy encodings. Generated files going
// the other direction are strict: always UTF-8 with a byte order mark,
// always comma-delimited, always \n line endings.
//
// Parse loads a whole file; ParseFile switches to chunked streaming above
// LargeFileThreshold so a runaway export cannot exhaust memory. Structural
// problems found while reading never abort the parse: short rows are padded,
// long rows truncated, and each adjustment is recorded as a warning for the
// operator to review.
package csvio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Tunables for parsing behavior. Declared as vars so tests can lower the
// thresholds without allocating gigabyte fixtures.
var (
	// LargeFileThreshold is the input size above which ParseFile switches
	// from whole-file decoding to chunked streaming.
	LargeFileThreshold int64 = 100 * 1024 * 1024

	// MaxParsedRows hard-caps accumulated data rows. Parsing stops with a
	// truncation warning once the cap is reached, bounding memory for
	// degenerate inputs.
	MaxParsedRows = 100_000
)

// Warning records a non-fatal structural problem found while parsing.
type Warning struct {
	Line    int    // 1-based logical line in the source; the header is line 1
	Message string
}

// Document is one parsed delimited file.
type Document struct {
	Headers   []string
	Rows      [][]string
	Warnings  []Warning
	Delimiter string
	Encoding  Encoding
	Truncated bool  // row cap reached, input not fully consumed
	BytesRead int64 // bytes consumed on the streaming path, 0 otherwise

	rowWidths []rowWidth // pre-normalization field counts, consumed by Validate
}

// rowWidth pairs a data row's source line with its field count before
// normalization.
type rowWidth struct {
	line  int
	width int
}

// ParseOptions adjust parsing. The zero value detects everything.
type ParseOptions struct {
	// Delimiter forces a field separator instead of detecting one.
	Delimiter string
	// MaxRows overrides MaxParsedRows when positive.
	MaxRows int
}

// ErrEmptyFile reports an input with no bytes at all.
var ErrEmptyFile = errors.New("empty file")

// ErrNoHeaders reports an input with no non-blank lines to take headers from.
var ErrNoHeaders = errors.New("no headers found")

// Parse decodes and tokenizes data into a Document. Inputs larger than
// LargeFileThreshold take the streaming path, which treats the bytes as
// UTF-8 instead of running full encoding detection.
func Parse(data []byte, opts ParseOptions) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > LargeFileThreshold {
		return ParseReader(bytes.NewReader(data), opts)
	}

	text, enc, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}

	doc, err := parseText(text, opts)
	if err != nil {
		return nil, err
	}
	doc.Encoding = enc
	return doc, nil
}

// ParseFile reads and parses the file at path, streaming when it exceeds
// LargeFileThreshold.
func ParseFile(path string, opts ParseOptions) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	if info.Size() > LargeFileThreshold {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open csv file: %w", err)
		}
		defer f.Close()
		return ParseReader(f, opts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv file: %w", err)
	}
	return Parse(data, opts)
}

// Record is one raw tokenized line with its 1-based source line number.
type Record struct {
	Line   int
	Fields []string
}

// ParseRecords decodes data and tokenizes every non-blank record, keeping
// natural row widths and source line numbers. Unlike Parse it imposes no
// header semantics; roster exports put preamble lines above their header,
// so callers locate the header themselves.
func ParseRecords(data []byte, opts ParseOptions) ([]Record, Encoding, error) {
	if len(data) == 0 {
		return nil, EncodingUnknown, ErrEmptyFile
	}

	text, enc, err := DecodeText(data)
	if err != nil {
		return nil, EncodingUnknown, fmt.Errorf("decode file: %w", err)
	}

	delim := opts.Delimiter
	if delim == "" {
		delim = DetectDelimiter(text)
	}
	maxRows := MaxParsedRows
	if opts.MaxRows > 0 {
		maxRows = opts.MaxRows
	}

	var records []Record
	for i, rec := range splitRecords(text) {
		if strings.TrimSpace(rec) == "" {
			continue
		}
		if len(records) >= maxRows {
			break
		}
		records = append(records, Record{Line: i + 1, Fields: ParseLine(rec, delim)})
	}
	return records, enc, nil
}

// parseText tokenizes already-decoded text. Blank records are skipped
// outright rather than padded, so a trailing newline never produces a
// phantom warning.
func parseText(text string, opts ParseOptions) (*Document, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = DetectDelimiter(text)
	}

	records := splitRecords(text)

	start := 0
	for start < len(records) && strings.TrimSpace(records[start]) == "" {
		start++
	}
	if start == len(records) {
		return nil, ErrNoHeaders
	}

	doc := &Document{Delimiter: delim}
	doc.Headers = ParseLine(records[start], delim)

	maxRows := MaxParsedRows
	if opts.MaxRows > 0 {
		maxRows = opts.MaxRows
	}

	for i := start + 1; i < len(records); i++ {
		if strings.TrimSpace(records[i]) == "" {
			continue
		}
		if len(doc.Rows) >= maxRows {
			doc.Truncated = true
			doc.Warnings = append(doc.Warnings, Warning{
				Line:    i + 1,
				Message: fmt.Sprintf("row limit %d reached, remaining rows dropped", maxRows),
			})
			break
		}
		doc.appendRow(ParseLine(records[i], delim), i+1)
	}

	return doc, nil
}

// appendRow normalizes fields to the header width, recording a warning when
// the row needed padding or truncation.
func (d *Document) appendRow(fields []string, line int) {
	d.rowWidths = append(d.rowWidths, rowWidth{line: line, width: len(fields)})

	switch {
	case len(fields) < len(d.Headers):
		d.Warnings = append(d.Warnings, Warning{
			Line:    line,
			Message: fmt.Sprintf("row has %d fields, padded to %d", len(fields), len(d.Headers)),
		})
		for len(fields) < len(d.Headers) {
			fields = append(fields, "")
		}
	case len(fields) > len(d.Headers):
		d.Warnings = append(d.Warnings, Warning{
			Line:    line,
			Message: fmt.Sprintf("row has %d fields, truncated to %d", len(fields), len(d.Headers)),
		})
		fields = fields[:len(d.Headers)]
	}

	d.Rows = append(d.Rows, fields)
}
