package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shutterworks/photoflow/internal/csvio"
	"github.com/shutterworks/photoflow/internal/filename"
)

// RebuildKind selects a rebuild variant.
type RebuildKind int

const (
	// RebuildFullTeams rebuilds from freshly discovered team-prefixed
	// photos, copying matches into the output tree.
	RebuildFullTeams RebuildKind = iota
	// RebuildSportsMatesOnly rebuilds from the per-team sports-mate
	// upload folders, moving matches instead of copying.
	RebuildSportsMatesOnly
)

func (k RebuildKind) String() string {
	switch k {
	case RebuildFullTeams:
		return "full-teams"
	case RebuildSportsMatesOnly:
		return "sports-mates-only"
	default:
		return "unknown"
	}
}

// Transfer is one staged file operation in a rebuild plan.
type Transfer struct {
	Source string
	Dest   string
	Move   bool // move instead of copy
}

// TeamPhotoSwap replaces a team's stale top-level team photo with a fresh
// one kept only under the team's group subfolder.
type TeamPhotoSwap struct {
	Team      string
	StalePath string // existing top-level team photo to delete, may be empty
	Source    string // freshly discovered team photo
	GroupDest string // destination under the group subfolder
}

// RebuildPlan is everything a rebuild will do, computed up front so the
// operator can review it and the file work can run under the bounded
// executor without further decisions.
type RebuildPlan struct {
	Kind               RebuildKind
	Teams              []string
	Rows               [][]string
	MissingSecondPoses int
	Transfers          []Transfer
	TeamPhotoSwaps     []TeamPhotoSwap
}

// PlanFullTeamsRebuild derives templates from doc and plans a full-teams
// rebuild: photos under sourceRoot whose first name token matches a
// derived team are re-synthesized and staged for copying into outputRoot,
// and each team's fresh team photo is swapped in under its group
// subfolder, replacing any stale top-level one. Coach and group shots are
// left out of the staging set.
func PlanFullTeamsRebuild(ctx context.Context, doc *csvio.Document, sourceRoot, outputRoot string) (*RebuildPlan, error) {
	snap, err := DeriveTemplates(doc)
	if err != nil {
		return nil, err
	}
	teams := snap.TeamNames()
	display := canonicalIndex(teams)

	analysis, err := Analyze(ctx, sourceRoot)
	if err != nil {
		return nil, err
	}

	plan := &RebuildPlan{Kind: RebuildFullTeams, Teams: teams}
	var regular, manual []PhotoRecord

	for _, rec := range analysis.Regular {
		team, ok := display[filename.CanonicalName(rec.TeamName)]
		if !ok {
			continue
		}
		regular = append(regular, rec)
		plan.Transfers = append(plan.Transfers, Transfer{
			Source: rec.SourcePath,
			Dest:   filepath.Join(outputRoot, team, rec.FileName),
		})
	}

	for _, rec := range analysis.Manual {
		team := rec.TeamName
		if team == "" {
			team = firstToken(rec.FileName)
		}
		dir, ok := display[filename.CanonicalName(team)]
		if team == "" || !ok {
			continue // rebuild discovery is team-prefixed only
		}
		rec.TeamName = team
		manual = append(manual, rec)
		plan.Transfers = append(plan.Transfers, Transfer{
			Source: rec.SourcePath,
			Dest:   filepath.Join(outputRoot, dir, rec.FileName),
		})
	}

	teamPhotos := make(map[string]SpecialPhoto, len(teams))
	for _, sp := range analysis.Special {
		key := filename.CanonicalName(sp.TeamName)
		dir, ok := display[key]
		if !ok {
			continue
		}
		switch sp.Category {
		case filename.TeamPhoto:
			if _, have := teamPhotos[key]; !have {
				teamPhotos[key] = sp
			}
		case filename.Coach, filename.Group:
			// Excluded from staging.
		default:
			// Manager shots stay in the file set but produce no rows.
			plan.Transfers = append(plan.Transfers, Transfer{
				Source: sp.SourcePath,
				Dest:   filepath.Join(outputRoot, dir, sp.FileName),
			})
		}
	}

	for _, team := range teams {
		sp, ok := teamPhotos[filename.CanonicalName(team)]
		if !ok {
			continue
		}
		plan.TeamPhotoSwaps = append(plan.TeamPhotoSwaps, TeamPhotoSwap{
			Team:      team,
			StalePath: findTopLevelTeamPhoto(filepath.Join(outputRoot, team)),
			Source:    sp.SourcePath,
			GroupDest: filepath.Join(outputRoot, team, "group", sp.FileName),
		})
	}

	result, err := BuildRows(BuildInput{
		Headers:       doc.Headers,
		Teams:         teams,
		RegularPhotos: regular,
		ManualPhotos:  manual,
		Templates:     snap,
	})
	if err != nil {
		return nil, err
	}
	plan.Rows = result.Rows
	plan.MissingSecondPoses = result.MissingSecondPoses
	plan.Transfers = dedupTransfers(plan.Transfers)
	return plan, nil
}

// PlanSportsMatesRebuild derives templates from doc and plans a
// sports-mate-only rebuild. Source photos come exclusively from per-team
// upload folders under sourceRoot whose names carry the sports-mate
// suffix; matches are staged as moves, not copies.
func PlanSportsMatesRebuild(ctx context.Context, doc *csvio.Document, sourceRoot, outputRoot string) (*RebuildPlan, error) {
	snap, err := DeriveTemplates(doc)
	if err != nil {
		return nil, err
	}
	teams := snap.TeamNames()
	display := canonicalIndex(teams)

	entries, err := os.ReadDir(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("read upload folders: %w", err)
	}

	plan := &RebuildPlan{Kind: RebuildSportsMatesOnly, Teams: teams}
	var regular []PhotoRecord

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !e.IsDir() || !strings.HasSuffix(e.Name(), SportsMateSuffix) {
			continue
		}
		folderTeam := strings.TrimSuffix(e.Name(), SportsMateSuffix)
		dir, ok := display[filename.CanonicalName(folderTeam)]
		if !ok {
			continue
		}

		folder := filepath.Join(sourceRoot, e.Name())
		files, err := os.ReadDir(folder)
		if err != nil {
			return nil, fmt.Errorf("read upload folder %s: %w", e.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || strings.HasPrefix(f.Name(), ".") || !filename.IsImageFile(f.Name()) {
				continue
			}
			p, ok := filename.Parse(f.Name())
			if !ok || p.Category != filename.Normal || p.Player == "" {
				continue
			}
			rec := NewPhotoRecord(f.Name(), filepath.Join(folder, f.Name()), p)
			regular = append(regular, rec)
			plan.Transfers = append(plan.Transfers, Transfer{
				Source: rec.SourcePath,
				Dest:   filepath.Join(outputRoot, dir, f.Name()),
				Move:   true,
			})
		}
	}

	result, err := BuildRows(BuildInput{
		Headers:       doc.Headers,
		Teams:         teams,
		RegularPhotos: regular,
		Templates:     snap,
	})
	if err != nil {
		return nil, err
	}
	plan.Rows = result.Rows
	plan.MissingSecondPoses = result.MissingSecondPoses
	plan.Transfers = dedupTransfers(plan.Transfers)
	return plan, nil
}

// canonicalIndex maps each team's canonical form to its display form,
// first display spelling winning.
func canonicalIndex(teams []string) map[string]string {
	m := make(map[string]string, len(teams))
	for _, t := range teams {
		key := filename.CanonicalName(t)
		if _, ok := m[key]; !ok {
			m[key] = t
		}
	}
	return m
}

// findTopLevelTeamPhoto returns the path of a team-photo-category file
// sitting directly in dir, or empty when none exists.
func findTopLevelTeamPhoto(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() || !filename.IsImageFile(e.Name()) {
			continue
		}
		if p, ok := filename.Parse(e.Name()); ok && p.Category == filename.TeamPhoto {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

// dedupTransfers drops transfers whose destination repeats, keeping the
// first in plan order, so duplicate file names in nested source folders
// cannot race each other onto the same destination.
func dedupTransfers(ts []Transfer) []Transfer {
	seen := make(map[string]bool, len(ts))
	out := ts[:0]
	for _, t := range ts {
		if seen[t.Dest] {
			continue
		}
		seen[t.Dest] = true
		out = append(out, t)
	}
	return out
}
