// Package filename decodes studio photo file names into their semantic parts.
//
// Renamed photos follow the TEAM_PLAYER_POSE convention: the base name splits
// on underscores into a team token, one or more player-name tokens, and a
// trailing numeric pose token, for example "TigersU12_Ana Silva_03.jpg".
// A handful of special shots replace the player and pose portion with a
// category token (TEAM, COACH, MANAGER, GROUP), and buddy shots carry a
// Buddy<N> token in the player position.
//
// Parsing is pure string work. Nothing here touches the filesystem or the
// image bytes; callers hand in a file name and get back the decoded tuple.
package filename

import (
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Category classifies a parsed photo file name.
type Category int

const (
	// Normal is an individual player shot carrying team, player, and pose.
	Normal Category = iota
	// Coach marks a coach shot (no player identity, no pose).
	Coach
	// Manager marks a team-manager shot.
	Manager
	// Group marks a group shot.
	Group
	// TeamPhoto marks the full-team shot.
	TeamPhoto
	// BuddyPhoto marks a buddy-pair shot. Parse never returns this category;
	// callers promote a record after checking IsBuddyPhoto.
	BuddyPhoto
)

// String returns the category name for logs and reports.
func (c Category) String() string {
	switch c {
	case Normal:
		return "normal"
	case Coach:
		return "coach"
	case Manager:
		return "manager"
	case Group:
		return "group"
	case TeamPhoto:
		return "team"
	case BuddyPhoto:
		return "buddy"
	default:
		return "unknown"
	}
}

// Parsed is the decoded form of a photo file name.
// Player and Pose are empty for the special categories.
type Parsed struct {
	Team     string
	Player   string
	Pose     string
	Category Category
}

// Special-category tokens, compared uppercased.
const (
	tokenTeam    = "TEAM"
	tokenCoach   = "COACH"
	tokenManager = "MANAGER"
	tokenGroup   = "GROUP"

	buddyPrefix = "BUDDY"
)

// Parse decodes fileName into its team/player/pose tuple or special category.
// The second return is false when the name does not follow the convention;
// callers treat such photos as manual entries needing operator attention.
//
// Classification order: a TEAM token anywhere wins, then COACH (exact token
// or prefix of the second token), then MANAGER, then GROUP. Otherwise the
// last token must be a non-negative integer pose; the first token is the
// team and the middle tokens join with single spaces to form the player.
// Team and player keep their original casing.
func Parse(fileName string) (Parsed, bool) {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	tokens := strings.Split(base, "_")
	if len(tokens) < 2 {
		return Parsed{}, false
	}

	upper := make([]string, len(tokens))
	for i, tok := range tokens {
		upper[i] = strings.ToUpper(tok)
	}

	switch {
	case containsToken(upper, tokenTeam):
		return Parsed{Team: tokens[0], Category: TeamPhoto}, true
	case containsToken(upper, tokenCoach) || strings.HasPrefix(upper[1], tokenCoach):
		return Parsed{Team: tokens[0], Category: Coach}, true
	case containsToken(upper, tokenManager):
		return Parsed{Team: tokens[0], Category: Manager}, true
	case containsToken(upper, tokenGroup):
		return Parsed{Team: tokens[0], Category: Group}, true
	}

	last := tokens[len(tokens)-1]
	n, err := strconv.Atoi(last)
	if err != nil || n < 0 {
		return Parsed{}, false
	}

	return Parsed{
		Team:     tokens[0],
		Player:   strings.Join(tokens[1:len(tokens)-1], " "),
		Pose:     last,
		Category: Normal,
	}, true
}

// IsBuddyPhoto reports whether fileName names a buddy-pair shot: the second
// underscore token starts with "Buddy" (any casing) and the remainder of
// that token is empty or all digits. Buddy shots have a real team but no
// individual player identity, so the build engine leaves their name fields
// blank instead of filling correction sentinels.
func IsBuddyPhoto(fileName string) bool {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	tokens := strings.Split(base, "_")
	if len(tokens) < 2 {
		return false
	}

	tok := strings.ToUpper(tokens[1])
	if !strings.HasPrefix(tok, buddyPrefix) {
		return false
	}

	rest := tok[len(buddyPrefix):]
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SanitizePose strips leading zeros from a pose string so "03" and "3"
// compare equal. A pose that is empty or all zeros sanitizes to "0".
func SanitizePose(pose string) string {
	s := strings.TrimLeft(strings.TrimSpace(pose), "0")
	if s == "" {
		return "0"
	}
	return s
}

// PoseNumber converts a pose string to its numeric value for sort order.
// Unparseable poses sort first as 0.
func PoseNumber(pose string) int {
	n, err := strconv.Atoi(strings.TrimSpace(pose))
	if err != nil {
		return 0
	}
	return n
}

// CanonicalName returns the comparison form of a team or player name:
// Unicode NFC composition with whitespace runs collapsed to single spaces
// and surrounding whitespace trimmed. macOS volumes store file names
// decomposed while CSV text usually arrives composed; comparing canonical
// forms keeps the two sources in agreement.
func CanonicalName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// imageExts lists the photo formats the studio pipeline handles.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
}

// IsImageFile reports whether name carries one of the supported photo
// extensions, compared case-insensitively.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}
