package roster

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shutterworks/photoflow/internal/filename"
	"github.com/shutterworks/photoflow/internal/imagemeta"
)

// RenameItem is one planned rename. A non-empty Conflict means the item
// must be skipped when the plan is applied.
type RenameItem struct {
	Entry       Entry
	SourcePath  string
	TargetName  string
	TargetPath  string
	Pose        int
	CaptureTime time.Time
	Conflict    string
}

// RenamePlan is the dry-run result of matching a roster against an
// extracted card dump.
type RenamePlan struct {
	Items    []RenameItem
	Missing  []Entry // roster entries whose file was not found
	Warnings []string
}

// Conflicts counts the items that cannot be applied.
func (p *RenamePlan) Conflicts() int {
	n := 0
	for _, it := range p.Items {
		if it.Conflict != "" {
			n++
		}
	}
	return n
}

// Applicable counts the items that can be applied.
func (p *RenamePlan) Applicable() int {
	return len(p.Items) - p.Conflicts()
}

// PlanRenames matches roster entries against the files under extractedDir
// and plans their structured names into outputDir. Pose numbers are
// assigned per player in capture order, read from the photo metadata,
// with the roster's file name as tiebreak. Nothing is renamed here; the
// plan reports conflicts and missing files so the operator can fix the
// roster and rerun.
func PlanRenames(ctx context.Context, r *Roster, extractedDir, outputDir string) (*RenamePlan, error) {
	index, err := indexFiles(extractedDir)
	if err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("no photos found under %s", extractedDir)
	}

	plan := &RenamePlan{}

	type pending struct {
		entry   Entry
		source  string
		capture time.Time
	}
	groups := make(map[string][]pending)
	seenSource := make(map[string]int) // lowercased original name -> first roster line

	for _, e := range r.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := strings.ToLower(e.OriginalFile)
		src, ok := index[key]
		if !ok {
			plan.Missing = append(plan.Missing, e)
			continue
		}
		if first, dup := seenSource[key]; dup {
			plan.Items = append(plan.Items, RenameItem{
				Entry:      e,
				SourcePath: src,
				Conflict:   fmt.Sprintf("%s already claimed by line %d", e.OriginalFile, first),
			})
			continue
		}
		seenSource[key] = e.Line

		gk := filename.CanonicalName(e.Team) + "\x00" + filename.CanonicalName(e.PlayerName())
		groups[gk] = append(groups[gk], pending{e, src, imagemeta.CaptureTime(src)})
	}

	seenTarget := make(map[string]int) // lowercased target name -> roster line

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		refs := groups[k]
		sort.Slice(refs, func(i, j int) bool {
			a, b := refs[i], refs[j]
			if !a.capture.Equal(b.capture) {
				return a.capture.Before(b.capture)
			}
			return strings.ToLower(a.entry.OriginalFile) < strings.ToLower(b.entry.OriginalFile)
		})

		for i, ref := range refs {
			e := ref.entry
			team := SanitizeNamePart(e.Team)
			player := SanitizeNamePart(e.PlayerName())
			if team != e.Team || player != e.PlayerName() {
				plan.Warnings = append(plan.Warnings,
					fmt.Sprintf("line %d: name cleaned to %s_%s", e.Line, team, player))
			}

			item := RenameItem{
				Entry:       e,
				SourcePath:  ref.source,
				Pose:        i + 1,
				CaptureTime: ref.capture,
			}
			item.TargetName = fmt.Sprintf("%s_%s_%d%s", team, player, item.Pose, filepath.Ext(ref.source))
			item.TargetPath = filepath.Join(outputDir, item.TargetName)

			tk := strings.ToLower(item.TargetName)
			if first, dup := seenTarget[tk]; dup {
				item.Conflict = fmt.Sprintf("target %s already planned for line %d", item.TargetName, first)
			} else if _, err := os.Stat(item.TargetPath); err == nil {
				item.Conflict = fmt.Sprintf("target %s already exists", item.TargetName)
			} else {
				seenTarget[tk] = e.Line
			}
			plan.Items = append(plan.Items, item)
		}
	}

	sort.Slice(plan.Items, func(i, j int) bool {
		return plan.Items[i].Entry.Line < plan.Items[j].Entry.Line
	})
	return plan, nil
}

// SanitizeNamePart makes a team or player name safe inside a structured
// file name. Filesystem-hostile characters are dropped, underscores become
// hyphens because the underscore is the structured name's own separator,
// and whitespace runs collapse to single spaces.
func SanitizeNamePart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == 0x7f || (r < 0x20 && !unicode.IsSpace(r)):
		case strings.ContainsRune(`/\:*?"<>|`, r):
		case r == '_':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// indexFiles maps lowercased image names under root to their full paths,
// first occurrence winning. Hidden files and directories are skipped.
func indexFiles(root string) (map[string]string, error) {
	index := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
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
		key := strings.ToLower(name)
		if _, ok := index[key]; !ok {
			index[key] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return index, nil
}
