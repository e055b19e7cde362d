// Package roster ingests vendor roster files and plans the rename from
// card-dump file names to the studio's structured names.
//
// Rosters arrive as CSV with unpredictable delimiters and encodings, or as
// XLSX workbooks. Their column layout is fixed by the vendor: column 0 is
// the original file name, 1 the first name, 2 the last name, and 7 the
// team. A preamble of junk lines above the real header is common, so the
// header row is located by scoring the first rows rather than assumed to
// be first. Rows that cannot be used are collected with their source line
// and reason; a bad row never aborts the batch.
package roster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/shutterworks/photoflow/internal/csvio"
)

// Vendor column layout. Positions are fixed; the header row only marks
// where data starts.
const (
	colFile  = 0
	colFirst = 1
	colLast  = 2
	colTeam  = 7

	rosterWidth = 8
)

// headerSearchWindow is how many leading rows are scored when locating
// the header.
const headerSearchWindow = 10

// Entry is one usable roster line.
type Entry struct {
	Line         int // 1-based line in the source file
	OriginalFile string
	FirstName    string
	LastName     string
	Team         string
}

// PlayerName returns the display name, first and last joined.
func (e Entry) PlayerName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// FailedRow records a roster line that could not be used.
type FailedRow struct {
	Line   int
	Reason string
	Cells  []string
}

// Roster is a parsed roster file.
type Roster struct {
	Path       string
	HeaderLine int      // 1-based source line of the header row, 0 when absent
	Header     []string // cleaned header cells as found
	Entries    []Entry
	Failed     []FailedRow
}

// FailedRowsCSV builds the failed-rows export: the original header with a
// status column prepended, then each failed row led by its reason.
func (r *Roster) FailedRowsCSV() [][]string {
	rows := make([][]string, 0, len(r.Failed)+1)
	rows = append(rows, append([]string{"STATUS"}, r.Header...))
	for _, f := range r.Failed {
		rows = append(rows, append([]string{f.Reason}, f.Cells...))
	}
	return rows
}

// fieldSpec describes one vendor column and whether a row needs it.
type fieldSpec struct {
	label    string
	index    int
	required bool
}

// Last name stays optional: single-name players are real entries.
var rosterFields = []fieldSpec{
	{"original file name", colFile, true},
	{"first name", colFirst, true},
	{"last name", colLast, false},
	{"team", colTeam, true},
}

// Load reads a roster file, choosing the workbook or delimited-text path
// by extension.
func Load(path string) (*Roster, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return loadWorkbook(path)
	default:
		return loadDelimited(path)
	}
}

func loadDelimited(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	records, _, err := csvio.ParseRecords(data, csvio.ParseOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return parseRoster(path, records), nil
}

func loadWorkbook(path string) (*Roster, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open roster workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("roster workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read roster sheet: %w", err)
	}

	records := make([]csvio.Record, 0, len(rows))
	for i, cells := range rows {
		if allEmpty(cells) {
			continue
		}
		records = append(records, csvio.Record{Line: i + 1, Fields: cells})
	}
	return parseRoster(path, records), nil
}

func parseRoster(path string, records []csvio.Record) *Roster {
	r := &Roster{Path: path}

	start := 0
	if h := locateHeader(records); h >= 0 {
		r.HeaderLine = records[h].Line
		r.Header = cleanCells(records[h].Fields)
		start = h + 1
	}

	for _, rec := range records[start:] {
		cells := cleanCells(rec.Fields)
		if allEmpty(cells) {
			continue
		}
		for len(cells) < rosterWidth {
			cells = append(cells, "")
		}

		var missing []string
		for _, f := range rosterFields {
			if f.required && cells[f.index] == "" {
				missing = append(missing, f.label)
			}
		}
		if len(missing) > 0 {
			r.Failed = append(r.Failed, FailedRow{
				Line:   rec.Line,
				Reason: "missing " + strings.Join(missing, ", "),
				Cells:  cells,
			})
			continue
		}

		r.Entries = append(r.Entries, Entry{
			Line:         rec.Line,
			OriginalFile: cells[colFile],
			FirstName:    cells[colFirst],
			LastName:     cells[colLast],
			Team:         cells[colTeam],
		})
	}
	return r
}

// headerKeywords are the fragments a header row's cells tend to carry.
var headerKeywords = []string{"file", "image", "first", "last", "name", "team", "group", "player"}

// locateHeader scores the first rows by keyword hits and returns the index
// of the best candidate, or -1 when nothing in the window scores at least
// two hits. Preamble junk rarely mentions more than one keyword; a real
// header mentions several.
func locateHeader(records []csvio.Record) int {
	window := len(records)
	if window > headerSearchWindow {
		window = headerSearchWindow
	}

	best, bestScore := -1, 0
	for i := 0; i < window; i++ {
		score := 0
		for _, cell := range records[i].Fields {
			c := strings.ToLower(CleanCell(cell))
			for _, kw := range headerKeywords {
				if strings.Contains(c, kw) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore < 2 {
		return -1
	}
	return best
}

// CleanCell strips the artifacts spreadsheet exports leave in cells:
// surrounding whitespace, the Excel formula wrapper (="..."), and stray
// quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func cleanCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = CleanCell(c)
	}
	return out
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
