package csvio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// streamChunkSize is the read size for the chunked parse path.
var streamChunkSize = 1 << 20

// SkipBOMReader strips a leading UTF-8 byte order mark from a stream.
// Spreadsheet exports routinely open with one, and the tokenizer must never
// see it glued to the first header name.
type SkipBOMReader struct {
	r       io.Reader
	checked bool
	pending []byte
}

// NewSkipBOMReader wraps r with BOM stripping.
func NewSkipBOMReader(r io.Reader) *SkipBOMReader {
	return &SkipBOMReader{r: r}
}

func (b *SkipBOMReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, err
		}
		if !(n == len(utf8BOM) && bytes.Equal(head, utf8BOM)) {
			b.pending = head[:n]
		}
	}

	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// UTF8SanitizeReader replaces invalid UTF-8 sequences in a stream with the
// Unicode replacement character. A multi-byte rune split across two reads
// is held back until its continuation bytes arrive, so chunk boundaries
// never produce false replacements.
type UTF8SanitizeReader struct {
	r    io.Reader
	out  []byte // sanitized bytes ready to deliver
	tail []byte // possibly-incomplete trailing rune held back
	eof  bool
}

// NewUTF8SanitizeReader wraps r with UTF-8 sanitizing.
func NewUTF8SanitizeReader(r io.Reader) *UTF8SanitizeReader {
	return &UTF8SanitizeReader{r: r}
}

func (s *UTF8SanitizeReader) Read(p []byte) (int, error) {
	for len(s.out) == 0 && !s.eof {
		chunk := make([]byte, 4096)
		n, err := s.r.Read(chunk)
		if n > 0 {
			data := append(s.tail, chunk[:n]...)
			s.tail = nil
			if hold := incompleteTail(data); hold > 0 {
				s.tail = append([]byte(nil), data[len(data)-hold:]...)
				data = data[:len(data)-hold]
			}
			s.out = bytes.ToValidUTF8(data, []byte("�"))
		}
		if errors.Is(err, io.EOF) {
			s.eof = true
			if len(s.tail) > 0 {
				s.out = append(s.out, bytes.ToValidUTF8(s.tail, []byte("�"))...)
				s.tail = nil
			}
		} else if err != nil {
			return 0, err
		}
	}

	if len(s.out) == 0 && s.eof {
		return 0, io.EOF
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// incompleteTail returns how many trailing bytes of data form the start of
// a rune whose continuation bytes have not arrived yet.
func incompleteTail(data []byte) int {
	n := len(data)
	for back := 1; back <= 3 && back <= n; back++ {
		b := data[n-back]
		if b < 0x80 {
			return 0
		}
		if b >= 0xC0 {
			if runeWidth(b) > back {
				return back
			}
			return 0
		}
		// Continuation byte, keep walking back toward the lead byte.
	}
	return 0
}

func runeWidth(lead byte) int {
	switch {
	case lead >= 0xF0:
		return 4
	case lead >= 0xE0:
		return 3
	case lead >= 0xC0:
		return 2
	default:
		return 1
	}
}

// CountingReader counts bytes delivered downstream, so callers can report
// how much of a large file a streaming parse actually consumed.
type CountingReader struct {
	r io.Reader
	n atomic.Int64
}

// NewCountingReader wraps r with byte counting.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// BytesRead returns the bytes delivered so far. Safe to call while a parse
// is still running.
func (c *CountingReader) BytesRead() int64 {
	return c.n.Load()
}

// WrapReader composes the streaming wrappers in their required order: BOM
// stripping first so the mark never reaches the tokenizer, sanitizing second
// so later stages see only valid text, counting last so the count reflects
// what was actually consumed downstream.
func WrapReader(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(NewUTF8SanitizeReader(NewSkipBOMReader(r)))
	return counter, counter
}

// recordScanner yields logical records from a stream, buffering partial
// records across chunk boundaries and honoring quoted newlines.
type recordScanner struct {
	r        io.Reader
	buf      []byte
	data     []byte
	scanPos  int  // resume offset into data for boundary scanning
	inQuotes bool // quote state at scanPos
	line     int
	eof      bool
}

func newRecordScanner(r io.Reader) *recordScanner {
	return &recordScanner{r: r, buf: make([]byte, streamChunkSize)}
}

// next returns the next logical record and its 1-based line number, or
// io.EOF when the stream is exhausted.
func (s *recordScanner) next() (string, int, error) {
	for {
		if end, ok := s.findRecordEnd(); ok {
			rec := strings.TrimSuffix(string(s.data[:end]), "\r")
			s.data = s.data[end+1:]
			s.scanPos = 0
			s.inQuotes = false
			s.line++
			return rec, s.line, nil
		}

		if s.eof {
			if len(s.data) == 0 {
				return "", 0, io.EOF
			}
			rec := strings.TrimSuffix(string(s.data), "\r")
			s.data = nil
			s.line++
			return rec, s.line, nil
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.data = append(s.data, s.buf[:n]...)
		}
		if errors.Is(err, io.EOF) {
			s.eof = true
		} else if err != nil {
			return "", 0, err
		}
	}
}

// findRecordEnd scans forward from the last position for the first newline
// outside quotes, carrying quote state so a field spanning chunks cannot be
// split mid-quote.
func (s *recordScanner) findRecordEnd() (int, bool) {
	for ; s.scanPos < len(s.data); s.scanPos++ {
		switch s.data[s.scanPos] {
		case '"':
			s.inQuotes = !s.inQuotes
		case '\n':
			if !s.inQuotes {
				return s.scanPos, true
			}
		}
	}
	return 0, false
}

// ParseReader parses delimited text from r incrementally in fixed-size
// chunks. The stream is treated as UTF-8: a leading byte order mark is
// skipped and invalid bytes replaced. Legacy encodings take the whole-file
// path in Parse, where the full detection chain runs.
func ParseReader(r io.Reader, opts ParseOptions) (*Document, error) {
	wrapped, counter := WrapReader(r)
	scanner := newRecordScanner(wrapped)

	type numbered struct {
		text string
		line int
	}

	// Hold the first sampled records until the delimiter is known.
	var sample []numbered
	for len(sample) < delimiterSampleLines {
		text, line, err := scanner.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv stream: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sample = append(sample, numbered{text, line})
	}
	if len(sample) == 0 {
		return nil, ErrNoHeaders
	}

	delim := opts.Delimiter
	if delim == "" {
		lines := make([]string, len(sample))
		for i, rec := range sample {
			lines[i] = rec.text
		}
		delim = DetectDelimiter(strings.Join(lines, "\n"))
	}

	doc := &Document{Delimiter: delim, Encoding: EncodingUTF8}
	doc.Headers = ParseLine(sample[0].text, delim)

	maxRows := MaxParsedRows
	if opts.MaxRows > 0 {
		maxRows = opts.MaxRows
	}

	appendRow := func(text string, line int) bool {
		if len(doc.Rows) >= maxRows {
			doc.Truncated = true
			doc.Warnings = append(doc.Warnings, Warning{
				Line:    line,
				Message: fmt.Sprintf("row limit %d reached, remaining rows dropped", maxRows),
			})
			return false
		}
		doc.appendRow(ParseLine(text, delim), line)
		return true
	}

	for _, rec := range sample[1:] {
		if !appendRow(rec.text, rec.line) {
			doc.BytesRead = counter.BytesRead()
			return doc, nil
		}
	}
	for {
		text, line, err := scanner.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv stream: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if !appendRow(text, line) {
			break
		}
	}

	doc.BytesRead = counter.BytesRead()
	return doc, nil
}
