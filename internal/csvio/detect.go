package csvio

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Encoding identifies a text encoding this package can decode.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingUTF8
	EncodingUTF16LE
	EncodingUTF16BE
	EncodingUTF32LE
	EncodingUTF32BE
	EncodingWindows1252
	EncodingLatin1
	EncodingMacRoman
)

// String returns the encoding name for logs and reports.
func (e Encoding) String() string {
	switch e {
	case EncodingUTF8:
		return "utf-8"
	case EncodingUTF16LE:
		return "utf-16le"
	case EncodingUTF16BE:
		return "utf-16be"
	case EncodingUTF32LE:
		return "utf-32le"
	case EncodingUTF32BE:
		return "utf-32be"
	case EncodingWindows1252:
		return "windows-1252"
	case EncodingLatin1:
		return "latin-1"
	case EncodingMacRoman:
		return "mac-roman"
	default:
		return "unknown"
	}
}

// ErrUndecodable reports bytes that no supported encoding could decode.
var ErrUndecodable = errors.New("text encoding not recognized")

// Byte order marks. The UTF-16LE mark FF FE is a prefix of the UTF-32LE
// mark FF FE 00 00, so the UTF-32 checks must run first.
var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf32LEBOM = []byte{0xFF, 0xFE, 0x00, 0x00}
	utf32BEBOM = []byte{0x00, 0x00, 0xFE, 0xFF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// DetectEncoding reports the encoding DecodeText would use for data.
func DetectEncoding(data []byte) (Encoding, error) {
	enc, _, err := sniffEncoding(data)
	return enc, err
}

// DecodeText converts data to UTF-8 text, stripping any byte order mark.
// Detection checks byte order marks first, then attempts UTF-8, UTF-16,
// Windows-1252, Latin-1, and Mac Roman in that order, returning the first
// encoding that decodes cleanly.
func DecodeText(data []byte) (string, Encoding, error) {
	enc, payload, err := sniffEncoding(data)
	if err != nil {
		return "", EncodingUnknown, err
	}
	text, err := decodeAs(payload, enc)
	if err != nil {
		return "", EncodingUnknown, err
	}
	return text, enc, nil
}

// sniffEncoding picks the encoding for data and returns the payload with
// any byte order mark removed.
func sniffEncoding(data []byte) (Encoding, []byte, error) {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return EncodingUTF8, data[len(utf8BOM):], nil
	case bytes.HasPrefix(data, utf32LEBOM):
		return EncodingUTF32LE, data[len(utf32LEBOM):], nil
	case bytes.HasPrefix(data, utf32BEBOM):
		return EncodingUTF32BE, data[len(utf32BEBOM):], nil
	case bytes.HasPrefix(data, utf16LEBOM):
		return EncodingUTF16LE, data[len(utf16LEBOM):], nil
	case bytes.HasPrefix(data, utf16BEBOM):
		return EncodingUTF16BE, data[len(utf16BEBOM):], nil
	}

	if utf8.Valid(data) {
		return EncodingUTF8, data, nil
	}
	if enc, ok := sniffUTF16(data); ok {
		return enc, data, nil
	}
	if decodesCleanly(data, charmap.Windows1252) {
		return EncodingWindows1252, data, nil
	}
	// Latin-1 defines all 256 byte values, so in practice it terminates the
	// chain; Mac Roman stays behind it to honor the documented order.
	if decodesCleanly(data, charmap.ISO8859_1) {
		return EncodingLatin1, data, nil
	}
	if decodesCleanly(data, charmap.Macintosh) {
		return EncodingMacRoman, data, nil
	}
	return EncodingUnknown, nil, ErrUndecodable
}

// sniffUTF16 guesses BOM-less UTF-16. Latin-script UTF-16 text is full of
// NUL bytes and their alignment picks the byte order; data without any NUL
// bytes is far more plausibly a single-byte legacy encoding, so the guess
// requires at least one.
func sniffUTF16(data []byte) (Encoding, bool) {
	if len(data) == 0 || len(data)%2 != 0 {
		return EncodingUnknown, false
	}

	evenZeros, oddZeros := 0, 0
	for i, b := range data {
		if b == 0 {
			if i%2 == 0 {
				evenZeros++
			} else {
				oddZeros++
			}
		}
	}
	if evenZeros == 0 && oddZeros == 0 {
		return EncodingUnknown, false
	}

	enc := EncodingUTF16LE
	if evenZeros > oddZeros {
		enc = EncodingUTF16BE
	}

	text, err := decodeAs(data, enc)
	if err != nil || strings.ContainsRune(text, utf8.RuneError) {
		return EncodingUnknown, false
	}
	return enc, true
}

// decodeAs decodes payload bytes (BOM already removed) as enc.
func decodeAs(data []byte, enc Encoding) (string, error) {
	switch enc {
	case EncodingUTF8:
		// Stray invalid bytes inside otherwise-valid UTF-8 are replaced
		// rather than rejected, matching the streaming sanitizer.
		if !utf8.Valid(data) {
			return strings.ToValidUTF8(string(data), "�"), nil
		}
		return string(data), nil
	case EncodingUTF16LE:
		return transformText(data, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM))
	case EncodingUTF16BE:
		return transformText(data, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM))
	case EncodingUTF32LE:
		return transformText(data, utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM))
	case EncodingUTF32BE:
		return transformText(data, utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM))
	case EncodingWindows1252:
		return transformText(data, charmap.Windows1252)
	case EncodingLatin1:
		return transformText(data, charmap.ISO8859_1)
	case EncodingMacRoman:
		return transformText(data, charmap.Macintosh)
	}
	return "", ErrUndecodable
}

func transformText(data []byte, enc encoding.Encoding) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodesCleanly decodes data with enc and rejects results containing the
// replacement character, which the charmap decoders substitute for byte
// values the encoding leaves undefined.
func decodesCleanly(data []byte, enc encoding.Encoding) bool {
	out, err := enc.NewDecoder().Bytes(data)
	return err == nil && !bytes.ContainsRune(out, utf8.RuneError)
}

// delimiterCandidates are scored in order; an earlier candidate wins ties.
var delimiterCandidates = []string{",", "\t", ";", "|", ":"}

// delimiterSampleLines caps how many non-empty lines feed delimiter
// detection.
var delimiterSampleLines = 10

// DetectDelimiter picks the most likely field separator for sample text.
// Each candidate is scored mean/(variance+1) over its per-line occurrence
// counts across the first sampled lines: a separator appearing a consistent
// number of times per line beats one with occasional incidental hits.
// Candidates absent from every sampled line are skipped; the default is a
// comma.
func DetectDelimiter(sample string) string {
	lines := sampleLines(sample, delimiterSampleLines)
	if len(lines) == 0 {
		return ","
	}

	best := ","
	bestScore := 0.0
	for _, cand := range delimiterCandidates {
		counts := make([]float64, len(lines))
		maxCount := 0
		for i, line := range lines {
			n := strings.Count(line, cand)
			counts[i] = float64(n)
			if n > maxCount {
				maxCount = n
			}
		}
		if maxCount == 0 {
			continue
		}

		var mean float64
		for _, c := range counts {
			mean += c
		}
		mean /= float64(len(counts))

		var variance float64
		for _, c := range counts {
			d := c - mean
			variance += d * d
		}
		variance /= float64(len(counts))

		if score := mean / (variance + 1); score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

// sampleLines returns up to limit non-empty physical lines from text.
func sampleLines(text string, limit int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == limit {
			break
		}
	}
	return lines
}
