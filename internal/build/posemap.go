package build

import (
	"github.com/shutterworks/photoflow/internal/filename"
)

// PoseMap indexes photos by player for second-pose lookups:
// normalized (team, player) key to pose token to file name.
type PoseMap map[string]map[string]string

// NormalizedKey canonicalizes team and player into a stable map key.
// Both parts go through filename.CanonicalName, so decomposed file-system
// spellings and composed text spellings land on the same entry.
func NormalizedKey(team, player string) string {
	return filename.CanonicalName(team) + "_" + filename.CanonicalName(player)
}

// BuildPoseMap indexes records under both the raw pose token and its
// sanitized form, so lookups succeed with either spelling of "03". Records
// are sorted first; when two files claim the same pose, the later one in
// (team, player, pose) order wins and becomes the representative file.
func BuildPoseMap(records []PhotoRecord) PoseMap {
	sorted := append([]PhotoRecord(nil), records...)
	SortPhotos(sorted)

	m := make(PoseMap)
	for _, rec := range sorted {
		key := NormalizedKey(rec.TeamName, rec.PlayerName)
		poses, ok := m[key]
		if !ok {
			poses = make(map[string]string)
			m[key] = poses
		}
		poses[rec.Pose] = rec.FileName
		poses[filename.SanitizePose(rec.Pose)] = rec.FileName
	}
	return m
}

// Lookup returns the file indexed for a player's pose, trying the pose as
// given and then its sanitized form.
func (m PoseMap) Lookup(team, player, pose string) (string, bool) {
	poses, ok := m[NormalizedKey(team, player)]
	if !ok {
		return "", false
	}
	if f, ok := poses[pose]; ok {
		return f, true
	}
	f, ok := poses[filename.SanitizePose(pose)]
	return f, ok
}
