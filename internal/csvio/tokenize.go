package csvio

import "strings"

// ParseLine splits one logical record into fields on delimiter.
//
// Double-quoted fields may contain the delimiter, newlines, and doubled
// quotes ("" unescapes to "). A quote directly following a quote inside a
// quoted field is literal; any other quote toggles quoted state. Fields are
// trimmed of surrounding whitespace after unquoting, so a fully quote-
// wrapped field comes back with its outer quotes stripped and its interior
// untouched apart from unescaping.
func ParseLine(line, delimiter string) []string {
	delim := byte(',')
	if delimiter != "" {
		delim = delimiter[0]
	}

	var fields []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, strings.TrimSpace(cur.String()))

	return fields
}

// splitRecords splits decoded text into logical records. A newline inside a
// quoted field belongs to the field; an unquoted newline ends the record.
// Carriage returns before record breaks are dropped so CRLF input tokenizes
// the same as LF input.
func splitRecords(text string) []string {
	var records []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case '\n':
			if inQuotes {
				cur.WriteByte(c)
			} else {
				records = append(records, strings.TrimSuffix(cur.String(), "\r"))
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		records = append(records, strings.TrimSuffix(cur.String(), "\r"))
	}

	return records
}
