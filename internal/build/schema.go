package build

import (
	"fmt"
	"strings"
)

// Output column names. Exact casing matters downstream; the vendor tool
// matches these headers literally.
const (
	ColSPA          = "SPA"
	ColName         = "NAME"
	ColFirstName    = "FIRSTNAME"
	ColLastName     = "LASTNAME"
	ColTeamName     = "TEAMNAME"
	ColAppendFile   = "APPEND FILE NAME"
	ColSubFolder    = "SUB FOLDER"
	ColTeamFile     = "TEAM FILE"
	ColTemplateFile = "TEMPLATE FILE"
	ColPlayer2File  = "PLAYER 2 FILE"
)

// Sentinel values flagging rows that need operator correction before the
// file goes to the vendor. Reproduced verbatim; downstream tooling keys on
// these exact strings.
const (
	SentinelNeedsName         = "***NEEDS_NAME***"
	SentinelChange            = "***CHANGE***"
	SentinelAssignTeam        = "***ASSIGN_TEAM***"
	SentinelMissingSecondPose = "***MISSING_SECOND_POSE***"
)

// SportsMateSuffix is the append-suffix marker distinguishing sports-mate
// rows from individual rows. It also suffixes the per-team upload folders
// a sports-mate-only rebuild pulls from.
const SportsMateSuffix = "_MM"

// DefaultHeaders returns the output header row in vendor order.
func DefaultHeaders() []string {
	return []string{
		ColSPA,
		ColName,
		ColFirstName,
		ColLastName,
		ColTeamName,
		ColAppendFile,
		ColSubFolder,
		ColTeamFile,
		ColTemplateFile,
		ColPlayer2File,
	}
}

// Schema maps the required output columns to their positions in a concrete
// header row. It is built once per run and fails when a column is absent,
// rather than letting a missing header silently write into position zero.
type Schema struct {
	Headers []string

	SPA          int
	Name         int
	FirstName    int
	LastName     int
	TeamName     int
	AppendFile   int
	SubFolder    int
	TeamFile     int
	TemplateFile int
	Player2File  int
}

// NewSchema resolves the required columns against headers. Matching is
// case-insensitive with surrounding whitespace ignored; the first matching
// position wins when a header repeats.
func NewSchema(headers []string) (Schema, error) {
	s := Schema{Headers: append([]string(nil), headers...)}

	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.ToUpper(strings.TrimSpace(h))
		if _, seen := pos[name]; !seen {
			pos[name] = i
		}
	}

	var missing []string
	at := func(name string) int {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	s.SPA = at(ColSPA)
	s.Name = at(ColName)
	s.FirstName = at(ColFirstName)
	s.LastName = at(ColLastName)
	s.TeamName = at(ColTeamName)
	s.AppendFile = at(ColAppendFile)
	s.SubFolder = at(ColSubFolder)
	s.TeamFile = at(ColTeamFile)
	s.TemplateFile = at(ColTemplateFile)
	s.Player2File = at(ColPlayer2File)

	if len(missing) > 0 {
		return Schema{}, fmt.Errorf("headers missing required columns: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// NewRow returns an all-empty row at header width.
func (s Schema) NewRow() []string {
	return make([]string, len(s.Headers))
}
