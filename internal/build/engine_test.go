package build

import (
	"reflect"
	"testing"

	"github.com/shutterworks/photoflow/internal/catalog"
	"github.com/shutterworks/photoflow/internal/filename"
)

// ==============================
// Helpers
// ==============================

func regularPhoto(t *testing.T, file string) PhotoRecord {
	t.Helper()
	p, ok := filename.Parse(file)
	if !ok || p.Player == "" {
		t.Fatalf("test photo %q does not parse as a player shot", file)
	}
	return NewPhotoRecord(file, "", p)
}

func manualRecord(file, team string) PhotoRecord {
	return PhotoRecord{FileName: file, TeamName: team, IsManual: true}
}

func buddyRecord(file, team string) PhotoRecord {
	return PhotoRecord{FileName: file, TeamName: team, IsManual: true, IsBuddy: true}
}

func singleTeamSnapshot(team string, tt catalog.TeamTemplates) catalog.Snapshot {
	return catalog.Snapshot{Teams: map[string]catalog.TeamTemplates{team: tt}}
}

func isEmptyRow(row []string) bool {
	for _, f := range row {
		if f != "" {
			return false
		}
	}
	return true
}

func countEmptyRows(rows [][]string) int {
	n := 0
	for _, row := range rows {
		if isEmptyRow(row) {
			n++
		}
	}
	return n
}

func mustSchema(t *testing.T, headers []string) Schema {
	t.Helper()
	s, err := NewSchema(headers)
	if err != nil {
		t.Fatalf("NewSchema() error: %v", err)
	}
	return s
}

func mustBuild(t *testing.T, in BuildInput) BuildResult {
	t.Helper()
	res, err := BuildRows(in)
	if err != nil {
		t.Fatalf("BuildRows() error: %v", err)
	}
	return res
}

// multiPoseInput is the canonical two-shot scenario: one player with a
// primary and a second pose, one multi-pose individual template, and one
// sports-mate template.
func multiPoseInput(t *testing.T) BuildInput {
	t.Helper()
	return BuildInput{
		Teams: []string{"TeamA"},
		RegularPhotos: []PhotoRecord{
			regularPhoto(t, "TeamA_John Doe_1.jpg"),
			regularPhoto(t, "TeamA_John Doe_2.jpg"),
		},
		Templates: singleTeamSnapshot("TeamA", catalog.TeamTemplates{
			Individual: []catalog.TemplateDescriptor{
				{FileName: "memory.png", IsMultiPose: true, MainPose: "1", SecondPose: "2"},
			},
			SportsMates: []catalog.TemplateDescriptor{{FileName: "sm.png"}},
		}),
	}
}

// ==============================
// Row synthesis
// ==============================

func TestBuildRows_SecondPoseResolution(t *testing.T) {
	res := mustBuild(t, multiPoseInput(t))

	want := [][]string{
		DefaultHeaders(),
		{"TeamA_John Doe_1.jpg", "John Doe", "John", "Doe", "TeamA", "", "TeamA", "TeamA", "memory.png", "TeamA_John Doe_2.jpg"},
		make([]string, 10),
		{"TeamA_John Doe_1.jpg", "John Doe", "John", "Doe", "TeamA", "_MM", "TeamA", "TeamA", "sm.png", ""},
		{"TeamA_John Doe_2.jpg", "John Doe", "John", "Doe", "TeamA", "_MM", "TeamA", "TeamA", "sm.png", ""},
	}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Errorf("Rows =\n%v\nwant\n%v", res.Rows, want)
	}
	if res.MissingSecondPoses != 0 {
		t.Errorf("MissingSecondPoses = %d, want 0", res.MissingSecondPoses)
	}
}

// A photo whose pose matches a multi-pose template's second pose is
// referenced from the primary row and never emitted under that template.
func TestBuildRows_SecondPoseShotSkipped(t *testing.T) {
	res := mustBuild(t, multiPoseInput(t))

	s := mustSchema(t, DefaultHeaders())
	for i, row := range res.Rows[1:] {
		if row[s.SPA] == "TeamA_John Doe_2.jpg" && row[s.TemplateFile] == "memory.png" {
			t.Errorf("row %d emits the second-pose shot under the multi-pose template: %v", i+1, row)
		}
	}
}

// Pose matching is tolerant of leading zeros on both sides.
func TestBuildRows_SecondPoseSanitizedMatch(t *testing.T) {
	in := multiPoseInput(t)
	in.RegularPhotos = []PhotoRecord{
		regularPhoto(t, "TeamA_John Doe_1.jpg"),
		regularPhoto(t, "TeamA_John Doe_02.jpg"),
	}

	res := mustBuild(t, in)

	s := mustSchema(t, DefaultHeaders())
	if got := res.Rows[1][s.Player2File]; got != "TeamA_John Doe_02.jpg" {
		t.Errorf("PLAYER 2 FILE = %q, want TeamA_John Doe_02.jpg", got)
	}
	if res.MissingSecondPoses != 0 {
		t.Errorf("MissingSecondPoses = %d, want 0", res.MissingSecondPoses)
	}
}

func TestBuildRows_MissingSecondPose(t *testing.T) {
	in := multiPoseInput(t)
	in.RegularPhotos = in.RegularPhotos[:1]

	res := mustBuild(t, in)

	s := mustSchema(t, DefaultHeaders())
	if got := res.Rows[1][s.Player2File]; got != SentinelMissingSecondPose {
		t.Errorf("PLAYER 2 FILE = %q, want %q", got, SentinelMissingSecondPose)
	}
	if res.MissingSecondPoses != 1 {
		t.Errorf("MissingSecondPoses = %d, want 1", res.MissingSecondPoses)
	}
}

// Single-pose templates never reference a second file, even when the
// player has one on disk.
func TestBuildRows_SinglePoseTemplateLeavesPlayer2Empty(t *testing.T) {
	in := multiPoseInput(t)
	in.Templates = singleTeamSnapshot("TeamA", catalog.TeamTemplates{
		Individual: []catalog.TemplateDescriptor{{FileName: "plain.png"}},
	})

	res := mustBuild(t, in)

	s := mustSchema(t, DefaultHeaders())
	for i, row := range res.Rows[1:] {
		if row[s.Player2File] != "" {
			t.Errorf("row %d PLAYER 2 FILE = %q, want empty", i+1, row[s.Player2File])
		}
	}
	if res.MissingSecondPoses != 0 {
		t.Errorf("MissingSecondPoses = %d, want 0", res.MissingSecondPoses)
	}
}

// ==============================
// Structure
// ==============================

func TestBuildRows_HeaderRowFirstAndWidthsUniform(t *testing.T) {
	in := multiPoseInput(t)
	in.ManualPhotos = []PhotoRecord{manualRecord("IMG_0001.jpg", "IMG")}
	in.IncludeManualWithoutTeam = true

	res := mustBuild(t, in)

	if !reflect.DeepEqual(res.Rows[0], DefaultHeaders()) {
		t.Errorf("row 0 = %v, want the header row", res.Rows[0])
	}
	for i, row := range res.Rows {
		if len(row) != 10 {
			t.Errorf("row %d width = %d, want 10", i, len(row))
		}
	}
}

func TestBuildRows_OneSpacerBetweenSections(t *testing.T) {
	res := mustBuild(t, multiPoseInput(t))

	if got := countEmptyRows(res.Rows); got != 1 {
		t.Fatalf("empty rows = %d, want exactly 1", got)
	}

	s := mustSchema(t, DefaultHeaders())
	spacer := -1
	for i, row := range res.Rows {
		if isEmptyRow(row) {
			spacer = i
		}
	}
	if prev := res.Rows[spacer-1]; prev[s.AppendFile] == SportsMateSuffix {
		t.Errorf("row before spacer is a sports-mate row: %v", prev)
	}
	if next := res.Rows[spacer+1]; next[s.AppendFile] != SportsMateSuffix {
		t.Errorf("row after spacer is not a sports-mate row: %v", next)
	}
}

// Every team section ends with a spacer, but identical blank rows collapse
// in dedup, so multi-team output carries a single blank line.
func TestBuildRows_DuplicateSpacersCollapse(t *testing.T) {
	res := mustBuild(t, BuildInput{
		Teams: []string{"Beta", "Alpha"},
		RegularPhotos: []PhotoRecord{
			regularPhoto(t, "Alpha_Ana_1.jpg"),
			regularPhoto(t, "Beta_Bo_1.jpg"),
		},
		Templates: catalog.Snapshot{Teams: map[string]catalog.TeamTemplates{
			"Alpha": {Individual: []catalog.TemplateDescriptor{{FileName: "a.png"}}},
			"Beta":  {Individual: []catalog.TemplateDescriptor{{FileName: "b.png"}}},
		}},
	})

	if got := countEmptyRows(res.Rows); got != 1 {
		t.Errorf("empty rows = %d, want 1", got)
	}
}

func TestBuildRows_TeamsEmittedInSortedOrder(t *testing.T) {
	res := mustBuild(t, BuildInput{
		Teams: []string{"Zebras", "Alpha"},
		RegularPhotos: []PhotoRecord{
			regularPhoto(t, "Zebras_Zed_1.jpg"),
			regularPhoto(t, "Alpha_Ana_1.jpg"),
		},
		Templates: catalog.Snapshot{Teams: map[string]catalog.TeamTemplates{
			"Alpha":  {Individual: []catalog.TemplateDescriptor{{FileName: "a.png"}}},
			"Zebras": {Individual: []catalog.TemplateDescriptor{{FileName: "z.png"}}},
		}},
	})

	s := mustSchema(t, DefaultHeaders())
	var teams []string
	for _, row := range res.Rows[1:] {
		if !isEmptyRow(row) {
			teams = append(teams, row[s.TeamName])
		}
	}
	if want := []string{"Alpha", "Zebras"}; !reflect.DeepEqual(teams, want) {
		t.Errorf("team order = %v, want %v", teams, want)
	}
}

func TestBuildRows_MissingColumnFails(t *testing.T) {
	in := multiPoseInput(t)
	in.Headers = []string{ColSPA, ColName}

	if _, err := BuildRows(in); err == nil {
		t.Fatal("BuildRows() succeeded with required columns missing")
	}
}

// Custom header layouts route values by column name, not position.
func TestBuildRows_CustomHeaderOrder(t *testing.T) {
	headers := append([]string{"NOTES"}, DefaultHeaders()...)

	in := multiPoseInput(t)
	in.Headers = headers

	res := mustBuild(t, in)

	if !reflect.DeepEqual(res.Rows[0], headers) {
		t.Errorf("row 0 = %v, want the custom headers", res.Rows[0])
	}
	s := mustSchema(t, headers)
	if got := res.Rows[1][s.SPA]; got != "TeamA_John Doe_1.jpg" {
		t.Errorf("SPA cell = %q, want the file name", got)
	}
	if got := res.Rows[1][0]; got != "" {
		t.Errorf("NOTES cell = %q, want empty", got)
	}
}

// ==============================
// Dedup
// ==============================

func TestBuildRows_Deterministic(t *testing.T) {
	a := mustBuild(t, multiPoseInput(t))
	b := mustBuild(t, multiPoseInput(t))

	if !reflect.DeepEqual(a, b) {
		t.Error("two runs over the same input disagree")
	}
}

func TestBuildRows_DuplicateInputPhotosCollapse(t *testing.T) {
	in := multiPoseInput(t)
	in.RegularPhotos = append(in.RegularPhotos, in.RegularPhotos...)

	res := mustBuild(t, in)
	want := mustBuild(t, multiPoseInput(t))

	if !reflect.DeepEqual(res.Rows, want.Rows) {
		t.Errorf("Rows with duplicated input =\n%v\nwant\n%v", res.Rows, want.Rows)
	}
}

func TestDedupRows_Idempotent(t *testing.T) {
	rows := mustBuild(t, multiPoseInput(t)).Rows

	again := dedupRows(rows)
	if !reflect.DeepEqual(again, rows) {
		t.Error("dedup of already-deduplicated rows changed them")
	}
}

// The header survives dedup by position, and a data row spelling out the
// same cells is the one treated as the duplicate.
func TestDedupRows_HeaderKeptByPosition(t *testing.T) {
	header := DefaultHeaders()
	rows := [][]string{header, {"a.jpg"}, header, {"a.jpg"}}

	got := dedupRows(rows)
	want := [][]string{header, {"a.jpg"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupRows() = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(got[0], header) {
		t.Errorf("row 0 = %v, want the header", got[0])
	}
}

// ==============================
// Manual and buddy photos
// ==============================

func TestBuildRows_ManualSentinelFill(t *testing.T) {
	in := BuildInput{
		Teams:         []string{"Tigers"},
		RegularPhotos: []PhotoRecord{regularPhoto(t, "Tigers_Ana_1.jpg")},
		ManualPhotos:  []PhotoRecord{manualRecord("IMG_0001.jpg", "IMG")},
		Templates: singleTeamSnapshot("Tigers", catalog.TeamTemplates{
			Individual: []catalog.TemplateDescriptor{{FileName: "t.png"}},
		}),
		IncludeManualWithoutTeam: true,
	}

	res := mustBuild(t, in)

	s := mustSchema(t, DefaultHeaders())
	var manual []string
	for _, row := range res.Rows[1:] {
		if row[s.SPA] == "IMG_0001.jpg" {
			manual = row
			break
		}
	}
	if manual == nil {
		t.Fatal("no row emitted for IMG_0001.jpg")
	}

	want := []string{"IMG_0001.jpg", SentinelNeedsName, SentinelChange, SentinelChange,
		SentinelAssignTeam, "", SentinelAssignTeam, SentinelAssignTeam, "t.png", ""}
	if !reflect.DeepEqual(manual, want) {
		t.Errorf("manual row = %v, want %v", manual, want)
	}

	if last := res.Rows[len(res.Rows)-1]; last[s.SPA] != "IMG_0001.jpg" {
		t.Errorf("manual-without-team row is not last; final row = %v", last)
	}
}

// A manual photo whose first token matches a known team rides in that
// team's section but still gets the full sentinel fill.
func TestBuildRows_ManualWithKnownTeamInSection(t *testing.T) {
	in := BuildInput{
		Teams:         []string{"Tigers"},
		RegularPhotos: []PhotoRecord{regularPhoto(t, "Tigers_Ana_1.jpg")},
		ManualPhotos:  []PhotoRecord{manualRecord("Tigers_smudge.jpg", "Tigers")},
		Templates: singleTeamSnapshot("Tigers", catalog.TeamTemplates{
			Individual: []catalog.TemplateDescriptor{{FileName: "t.png"}},
		}),
	}

	res := mustBuild(t, in)

	want := [][]string{
		DefaultHeaders(),
		{"Tigers_Ana_1.jpg", "Ana", "Ana", "", "Tigers", "", "Tigers", "Tigers", "t.png", ""},
		{"Tigers_smudge.jpg", SentinelNeedsName, SentinelChange, SentinelChange,
			SentinelAssignTeam, "", SentinelAssignTeam, SentinelAssignTeam, "t.png", ""},
		make([]string, 10),
	}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Errorf("Rows =\n%v\nwant\n%v", res.Rows, want)
	}
}

func TestBuildRows_BuddyRowBlankNamesRealTeam(t *testing.T) {
	in := BuildInput{
		Teams:         []string{"Tigers"},
		RegularPhotos: []PhotoRecord{regularPhoto(t, "Tigers_Ana_1.jpg")},
		ManualPhotos:  []PhotoRecord{buddyRecord("Tigers_Buddy1.jpg", "Tigers")},
		Templates: singleTeamSnapshot("Tigers", catalog.TeamTemplates{
			Individual: []catalog.TemplateDescriptor{{FileName: "t.png"}},
		}),
	}

	res := mustBuild(t, in)

	want := []string{"Tigers_Buddy1.jpg", "", "", "", "Tigers", "", "Tigers", "Tigers", "t.png", ""}
	if !reflect.DeepEqual(res.Rows[2], want) {
		t.Errorf("buddy row = %v, want %v", res.Rows[2], want)
	}
}

func TestBuildRows_ManualWithoutTeamExcludedByDefault(t *testing.T) {
	in := BuildInput{
		Teams:         []string{"Tigers"},
		RegularPhotos: []PhotoRecord{regularPhoto(t, "Tigers_Ana_1.jpg")},
		ManualPhotos:  []PhotoRecord{manualRecord("IMG_0001.jpg", "IMG")},
		Templates: singleTeamSnapshot("Tigers", catalog.TeamTemplates{
			Individual: []catalog.TemplateDescriptor{{FileName: "t.png"}},
		}),
	}

	res := mustBuild(t, in)

	s := mustSchema(t, DefaultHeaders())
	for i, row := range res.Rows {
		if row[s.SPA] == "IMG_0001.jpg" {
			t.Errorf("row %d emits an excluded manual photo: %v", i, row)
		}
	}
}

func TestBuildRows_FallbackTemplateChain(t *testing.T) {
	tests := []struct {
		name         string
		templates    catalog.Snapshot
		wantTemplate string
	}{
		{
			name: "global template wins over other teams",
			templates: catalog.Snapshot{
				Global: []catalog.TemplateDescriptor{{FileName: "global.png"}},
				Teams: map[string]catalog.TeamTemplates{
					"Zebras": {Individual: []catalog.TemplateDescriptor{{FileName: "z.png"}}},
				},
			},
			wantTemplate: "global.png",
		},
		{
			name: "first team in sorted order when no global",
			templates: catalog.Snapshot{
				Teams: map[string]catalog.TeamTemplates{
					"Zebras": {Individual: []catalog.TemplateDescriptor{{FileName: "z.png"}}},
					"Hawks":  {Individual: []catalog.TemplateDescriptor{{FileName: "h.png"}}},
				},
			},
			wantTemplate: "h.png",
		},
		{
			name:         "nothing configured leaves the template blank",
			templates:    catalog.Snapshot{},
			wantTemplate: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustBuild(t, BuildInput{
				ManualPhotos:             []PhotoRecord{manualRecord("IMG_0001.jpg", "IMG")},
				Templates:                tt.templates,
				IncludeManualWithoutTeam: true,
			})

			s := mustSchema(t, DefaultHeaders())
			row := res.Rows[len(res.Rows)-1]
			if row[s.SPA] != "IMG_0001.jpg" {
				t.Fatalf("last row = %v, want the manual photo row", row)
			}
			if got := row[s.TemplateFile]; got != tt.wantTemplate {
				t.Errorf("TEMPLATE FILE = %q, want %q", got, tt.wantTemplate)
			}
		})
	}
}

// ==============================
// Progress
// ==============================

func TestBuildRows_ProgressMonotonicAndComplete(t *testing.T) {
	in := BuildInput{
		Teams: []string{"Tigers"},
		RegularPhotos: []PhotoRecord{
			regularPhoto(t, "Tigers_Ana_1.jpg"),
			regularPhoto(t, "Tigers_Bo_1.jpg"),
		},
		ManualPhotos: []PhotoRecord{
			manualRecord("Tigers_smudge.jpg", "Tigers"),
			manualRecord("IMG_0001.jpg", "IMG"),
		},
		Templates: singleTeamSnapshot("Tigers", catalog.TeamTemplates{
			Individual: []catalog.TemplateDescriptor{{FileName: "t.png"}},
		}),
	}

	var calls []int
	in.Progress = func(processed, total int) {
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		calls = append(calls, processed)
	}

	mustBuild(t, in)

	if want := []int{1, 2, 3, 4}; !reflect.DeepEqual(calls, want) {
		t.Errorf("progress calls = %v, want %v", calls, want)
	}
}
