package build

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shutterworks/photoflow/internal/filename"
)

// cancelCheckInterval is how many walked entries go by between context
// checks during a directory scan.
const cancelCheckInterval = 256

// Analysis is the classified result of scanning a photo tree.
type Analysis struct {
	Root    string
	Teams   []string // sorted unique team names from the regular photos
	Regular []PhotoRecord
	Manual  []PhotoRecord
	Special []SpecialPhoto
}

// PhotoCount returns the number of image files the analysis classified.
func (a *Analysis) PhotoCount() int {
	return len(a.Regular) + len(a.Manual) + len(a.Special)
}

// Analyze walks root and classifies every image file for synthesis.
// Regular records carry a team, player, and pose. Photos whose names do
// not yield a player identity become manual records. Team-level shots
// (team photo, coach, manager, group) are set aside as special.
//
// Team resolution for manual photos is a second pass: a manual photo whose
// first name token matches a team discovered from the regular photos is
// assigned to that team so it rides along in the team's section.
func Analyze(ctx context.Context, root string) (*Analysis, error) {
	a := &Analysis{Root: root}

	scanned := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		scanned++
		if scanned%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !filename.IsImageFile(name) {
			return nil
		}

		a.classify(name, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan photo directory: %w", err)
	}

	a.resolveManualTeams()
	a.sortAll()
	return a, nil
}

func (a *Analysis) classify(name, path string) {
	p, ok := filename.Parse(name)

	switch {
	case ok && p.Category != filename.Normal:
		a.Special = append(a.Special, SpecialPhoto{
			FileName:   name,
			TeamName:   p.Team,
			Category:   p.Category,
			SourcePath: path,
		})
	case ok && p.Player != "":
		a.Regular = append(a.Regular, NewPhotoRecord(name, path, p))
	default:
		rec := PhotoRecord{
			FileName:   name,
			SourcePath: path,
			IsManual:   true,
			IsBuddy:    filename.IsBuddyPhoto(name),
		}
		if ok {
			// Parsed but no player between team and pose. Keep both
			// tokens; the operator supplies the identity.
			rec.TeamName = p.Team
			rec.Pose = p.Pose
			rec.PoseNumber = filename.PoseNumber(p.Pose)
		} else if rec.IsBuddy {
			rec.TeamName = firstToken(name)
		}
		a.Manual = append(a.Manual, rec)
	}
}

// resolveManualTeams fills in manual photo teams once the discovered team
// set is known, and fixes the team list itself.
func (a *Analysis) resolveManualTeams() {
	seen := make(map[string]string, 16) // canonical form -> display form
	for _, rec := range a.Regular {
		key := filename.CanonicalName(rec.TeamName)
		if _, ok := seen[key]; !ok {
			seen[key] = rec.TeamName
		}
	}

	a.Teams = make([]string, 0, len(seen))
	for _, display := range seen {
		a.Teams = append(a.Teams, display)
	}
	sort.Strings(a.Teams)

	for i := range a.Manual {
		rec := &a.Manual[i]
		if rec.TeamName != "" {
			continue
		}
		tok := firstToken(rec.FileName)
		if tok == "" {
			continue
		}
		if _, ok := seen[filename.CanonicalName(tok)]; ok {
			rec.TeamName = tok
		}
	}
}

func (a *Analysis) sortAll() {
	SortPhotos(a.Regular)
	sortByFileName(a.Manual)
	sort.Slice(a.Special, func(i, j int) bool {
		if a.Special[i].TeamName != a.Special[j].TeamName {
			return a.Special[i].TeamName < a.Special[j].TeamName
		}
		return a.Special[i].FileName < a.Special[j].FileName
	})
}

func firstToken(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	tok, _, _ := strings.Cut(base, "_")
	return tok
}
