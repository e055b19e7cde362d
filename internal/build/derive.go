package build

import (
	"fmt"

	"github.com/shutterworks/photoflow/internal/catalog"
	"github.com/shutterworks/photoflow/internal/csvio"
	"github.com/shutterworks/photoflow/internal/filename"
)

// DeriveTemplates reconstructs a template catalog from a previously
// generated output document, so a rebuild can re-run synthesis without the
// original configuration. Rows group by team; a row belongs to the
// sports-mate set when its append-suffix field carries the sports-mate
// marker. Each distinct template file yields one descriptor, first
// occurrence wins, with the pose wiring inferred from the row's own file
// references.
func DeriveTemplates(doc *csvio.Document) (catalog.Snapshot, error) {
	schema, err := NewSchema(doc.Headers)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("derive templates: %w", err)
	}

	snap := catalog.Snapshot{Teams: make(map[string]catalog.TeamTemplates)}
	seen := make(map[string]map[string]bool) // team -> section:file -> recorded

	for _, row := range doc.Rows {
		team := row[schema.TeamName]
		tmplFile := row[schema.TemplateFile]
		if team == "" || tmplFile == "" {
			continue // spacer or incomplete row
		}
		if team == SentinelAssignTeam {
			// Unassigned placeholder rows never define a team's templates.
			continue
		}

		isSM := row[schema.AppendFile] == SportsMateSuffix
		key := "ind:" + tmplFile
		if isSM {
			key = "sm:" + tmplFile
		}
		if seen[team] == nil {
			seen[team] = make(map[string]bool)
		}
		if seen[team][key] {
			continue
		}
		seen[team][key] = true

		desc := catalog.TemplateDescriptor{FileName: tmplFile}
		if p, ok := filename.Parse(row[schema.SPA]); ok {
			desc.MainPose = p.Pose
		}
		if !isSM {
			if p2 := row[schema.Player2File]; p2 != "" && p2 != SentinelMissingSecondPose {
				if p, ok := filename.Parse(p2); ok && p.Pose != "" {
					desc.IsMultiPose = true
					desc.SecondPose = p.Pose
				}
			}
		}

		t := snap.Teams[team]
		if isSM {
			t.SportsMates = append(t.SportsMates, desc)
		} else {
			t.Individual = append(t.Individual, desc)
		}
		snap.Teams[team] = t
	}

	return snap, nil
}
