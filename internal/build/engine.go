package build

import (
	"sort"
	"strings"

	"github.com/shutterworks/photoflow/internal/catalog"
	"github.com/shutterworks/photoflow/internal/filename"
)

// BuildInput carries everything one synthesis run consumes. All fields are
// read-only snapshots; the engine copies anything it sorts.
type BuildInput struct {
	// Headers overrides the output header row. Nil means DefaultHeaders.
	Headers []string

	// Teams are the team names to emit, visited in sorted order.
	Teams []string

	// RegularPhotos are normally parsed player shots. ManualPhotos are
	// photos needing operator attention, buddy shots included.
	RegularPhotos []PhotoRecord
	ManualPhotos  []PhotoRecord

	// Templates is the catalog snapshot for this run.
	Templates catalog.Snapshot

	// IncludeManualWithoutTeam emits manual photos matching no known team
	// after the team sections, under a fallback template.
	IncludeManualWithoutTeam bool

	// Progress, when set, is invoked once per processed photo with the
	// cumulative count and the total.
	Progress func(processed, total int)
}

// BuildResult is the outcome of one synthesis run.
type BuildResult struct {
	Rows [][]string

	// MissingSecondPoses counts rows flagged with the missing-second-pose
	// sentinel, surfaced so the operator can review them before the file
	// goes out.
	MissingSecondPoses int
}

// BuildRows synthesizes the vendor output rows from photos and templates.
// Pure and synchronous; the engine imposes its own ordering and never
// relies on the order inputs arrive in.
//
// Rows are generated per team, teams in sorted order. Each team's
// individual-template rows come first, then one blank spacer row, then its
// sports-mate rows. Manual photos that resolve to a known team ride along
// in that team's individual pass; the rest are appended at the end when
// IncludeManualWithoutTeam is set. Finally rows are deduplicated by their
// serialized content, with the header row kept by position.
func BuildRows(in BuildInput) (BuildResult, error) {
	headers := in.Headers
	if len(headers) == 0 {
		headers = DefaultHeaders()
	}
	schema, err := NewSchema(headers)
	if err != nil {
		return BuildResult{}, err
	}

	regular := append([]PhotoRecord(nil), in.RegularPhotos...)
	SortPhotos(regular)

	// The pose map sees every record, manual ones included, so two
	// unparseable shots of the same unknown subject can still pair up.
	all := make([]PhotoRecord, 0, len(regular)+len(in.ManualPhotos))
	all = append(all, regular...)
	all = append(all, in.ManualPhotos...)

	b := &rowBuilder{
		schema:  schema,
		poseMap: BuildPoseMap(all),
	}
	b.rows = append(b.rows, schema.Headers)

	teams := append([]string(nil), in.Teams...)
	sort.Strings(teams)

	teamSet := make(map[string]bool, len(teams))
	for _, t := range teams {
		teamSet[filename.CanonicalName(t)] = true
	}

	byTeam := make(map[string][]PhotoRecord, len(teams))
	for _, rec := range regular {
		key := filename.CanonicalName(rec.TeamName)
		byTeam[key] = append(byTeam[key], rec)
	}

	manualByTeam := make(map[string][]PhotoRecord)
	var manualLoose []PhotoRecord
	for _, rec := range in.ManualPhotos {
		key := filename.CanonicalName(rec.TeamName)
		if rec.TeamName != "" && teamSet[key] {
			manualByTeam[key] = append(manualByTeam[key], rec)
		} else {
			manualLoose = append(manualLoose, rec)
		}
	}
	for _, ms := range manualByTeam {
		sortByFileName(ms)
	}
	sortByFileName(manualLoose)

	total := len(regular) + len(in.ManualPhotos)
	processed := 0
	advance := func() {
		processed++
		if in.Progress != nil {
			in.Progress(processed, total)
		}
	}

	for _, team := range teams {
		key := filename.CanonicalName(team)
		photos := byTeam[key]
		manuals := manualByTeam[key]
		tmpls, _ := in.Templates.Team(team)

		for _, tmpl := range tmpls.Individual {
			for _, photo := range photos {
				if skipsSecondPose(tmpl, photo) {
					continue
				}
				b.individualRow(photo, team, tmpl)
			}
			for _, photo := range manuals {
				if skipsSecondPose(tmpl, photo) {
					continue
				}
				b.individualRow(photo, team, tmpl)
			}
		}

		// Spacer between the individual and sports-mate sections. The
		// vendor tool groups rows visually on this blank line.
		b.spacer()

		for _, tmpl := range tmpls.SportsMates {
			for _, photo := range photos {
				b.sportsMateRow(photo, team, tmpl)
			}
		}

		for range photos {
			advance()
		}
		for range manuals {
			advance()
		}
	}

	for _, photo := range manualLoose {
		if in.IncludeManualWithoutTeam {
			tmpl, _ := in.Templates.FallbackIndividual(photo.TeamName)
			b.individualRow(photo, photo.TeamName, tmpl)
		}
		advance()
	}

	return BuildResult{
		Rows:               dedupRows(b.rows),
		MissingSecondPoses: b.missing,
	}, nil
}

// skipsSecondPose reports whether photo is the second-pose shot of a
// multi-pose template. Such shots are referenced from the primary-pose row
// and never emitted as rows of their own.
func skipsSecondPose(tmpl catalog.TemplateDescriptor, photo PhotoRecord) bool {
	return tmpl.NeedsSecondPose() &&
		filename.SanitizePose(photo.Pose) == filename.SanitizePose(tmpl.SecondPose)
}

func sortByFileName(records []PhotoRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].FileName < records[j].FileName
	})
}

type rowBuilder struct {
	schema  Schema
	poseMap PoseMap
	rows    [][]string
	missing int
}

func (b *rowBuilder) spacer() {
	b.rows = append(b.rows, b.schema.NewRow())
}

// individualRow emits one row under an individual template, applying the
// sentinel, buddy, and second-pose rules.
func (b *rowBuilder) individualRow(photo PhotoRecord, team string, tmpl catalog.TemplateDescriptor) {
	row := b.schema.NewRow()
	row[b.schema.SPA] = photo.FileName

	teamValue := team
	switch {
	case photo.IsBuddy:
		// Name fields stay blank: a buddy shot has a real team but no
		// single player identity.
	case photo.IsManual:
		row[b.schema.Name] = SentinelNeedsName
		row[b.schema.FirstName] = SentinelChange
		row[b.schema.LastName] = SentinelChange
		teamValue = SentinelAssignTeam
	default:
		row[b.schema.Name] = photo.PlayerName
		row[b.schema.FirstName] = photo.FirstName
		row[b.schema.LastName] = photo.LastName
	}

	row[b.schema.TeamName] = teamValue
	row[b.schema.SubFolder] = teamValue
	row[b.schema.TeamFile] = teamValue
	row[b.schema.TemplateFile] = tmpl.FileName

	if tmpl.NeedsSecondPose() {
		file, ok := b.poseMap.Lookup(photo.TeamName, photo.PlayerName, tmpl.SecondPose)
		switch {
		case ok && file != photo.FileName:
			row[b.schema.Player2File] = file
		case !ok:
			row[b.schema.Player2File] = SentinelMissingSecondPose
			b.missing++
		}
	}

	b.rows = append(b.rows, row)
}

// sportsMateRow emits one row under a sports-mate template. Every photo
// gets a row; no second-pose logic applies.
func (b *rowBuilder) sportsMateRow(photo PhotoRecord, team string, tmpl catalog.TemplateDescriptor) {
	row := b.schema.NewRow()
	row[b.schema.SPA] = photo.FileName
	row[b.schema.Name] = photo.PlayerName
	row[b.schema.FirstName] = photo.FirstName
	row[b.schema.LastName] = photo.LastName
	row[b.schema.TeamName] = team
	row[b.schema.AppendFile] = SportsMateSuffix
	row[b.schema.SubFolder] = team
	row[b.schema.TeamFile] = team
	row[b.schema.TemplateFile] = tmpl.FileName
	b.rows = append(b.rows, row)
}

// dedupRows drops rows whose comma-joined serialization already appeared.
// The header survives by position: row zero is always kept, and a data row
// identical to it is treated as the duplicate.
func dedupRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}

	seen := make(map[string]bool, len(rows))
	out := make([][]string, 0, len(rows))
	for i, row := range rows {
		key := strings.Join(row, ",")
		if i == 0 {
			seen[key] = true
			out = append(out, row)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}
