package build

import (
	"sort"
	"strings"

	"github.com/shutterworks/photoflow/internal/filename"
)

// PhotoRecord is one discovered image file, decoded for row synthesis.
// Records are built once per analysis pass and treated as immutable.
type PhotoRecord struct {
	FileName   string
	TeamName   string
	PlayerName string
	FirstName  string
	LastName   string

	// Pose is the raw pose token from the file name ("03" stays "03");
	// PoseNumber is its numeric value for ordering.
	Pose       string
	PoseNumber int

	// SourcePath locates the file on disk. Empty for records synthesized
	// in tests.
	SourcePath string

	// IsManual marks a photo whose name did not yield a usable player
	// identity; its row gets sentinel fill for the operator to correct.
	IsManual bool

	// IsBuddy marks a buddy-pair shot: a real team but legitimately no
	// individual player, so name fields stay blank instead of sentinels.
	IsBuddy bool
}

// NewPhotoRecord builds a record for a normally parsed player shot.
func NewPhotoRecord(fileName, sourcePath string, p filename.Parsed) PhotoRecord {
	first, last := SplitPlayerName(p.Player)
	return PhotoRecord{
		FileName:   fileName,
		TeamName:   p.Team,
		PlayerName: p.Player,
		FirstName:  first,
		LastName:   last,
		Pose:       p.Pose,
		PoseNumber: filename.PoseNumber(p.Pose),
		SourcePath: sourcePath,
	}
}

// SplitPlayerName splits a display name into first and last on the first
// space. A single-token name is all first name.
func SplitPlayerName(player string) (first, last string) {
	first, last, found := strings.Cut(player, " ")
	if !found {
		return player, ""
	}
	return first, last
}

// SortPhotos orders records by team, then player, then numeric pose, with
// the file name as a final tiebreak so equal poses order deterministically.
func SortPhotos(records []PhotoRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.TeamName != b.TeamName {
			return a.TeamName < b.TeamName
		}
		if a.PlayerName != b.PlayerName {
			return a.PlayerName < b.PlayerName
		}
		if a.PoseNumber != b.PoseNumber {
			return a.PoseNumber < b.PoseNumber
		}
		return a.FileName < b.FileName
	})
}

// SpecialPhoto is a team-level asset (team photo, coach, manager, group
// shot) excluded from row synthesis but carried through analysis so folder
// sorting and rebuilds can place it.
type SpecialPhoto struct {
	FileName   string
	TeamName   string
	Category   filename.Category
	SourcePath string
}
