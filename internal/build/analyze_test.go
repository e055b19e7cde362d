package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/shutterworks/photoflow/internal/filename"
)

func writePhotoTree(t *testing.T, files []string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll(%q): %v", f, err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile(%q): %v", f, err)
		}
	}
	return root
}

func fileNames(records []PhotoRecord) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.FileName
	}
	return names
}

func TestAnalyze_Classification(t *testing.T) {
	root := writePhotoTree(t, []string{
		"Tigers_Ana Silva_1.jpg",
		"Tigers_Ana Silva_2.jpg",
		"Hawks_Bob_1.jpg",
		"extra/Hawks_Cal_1.JPG",
		"Tigers_TEAM.jpg",
		"Tigers_COACH.jpg",
		"Tigers_Buddy1.jpg",
		"Tigers_oops.jpg",
		"IMG_0001.jpg",
		"notes.txt",
		".DS_Store",
		".thumbs/Tigers_Zed_1.jpg",
	})

	a, err := Analyze(context.Background(), root)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	if want := []string{"Hawks", "Tigers"}; !reflect.DeepEqual(a.Teams, want) {
		t.Errorf("Teams = %v, want %v", a.Teams, want)
	}

	wantRegular := []string{"Hawks_Bob_1.jpg", "Hawks_Cal_1.JPG",
		"Tigers_Ana Silva_1.jpg", "Tigers_Ana Silva_2.jpg"}
	if got := fileNames(a.Regular); !reflect.DeepEqual(got, wantRegular) {
		t.Errorf("Regular = %v, want %v", got, wantRegular)
	}

	wantManual := []string{"IMG_0001.jpg", "Tigers_Buddy1.jpg", "Tigers_oops.jpg"}
	if got := fileNames(a.Manual); !reflect.DeepEqual(got, wantManual) {
		t.Errorf("Manual = %v, want %v", got, wantManual)
	}

	if len(a.Special) != 2 {
		t.Fatalf("Special = %v, want coach and team shots", a.Special)
	}
	if a.Special[0].FileName != "Tigers_COACH.jpg" || a.Special[0].Category != filename.Coach {
		t.Errorf("Special[0] = %+v, want the coach shot", a.Special[0])
	}
	if a.Special[1].FileName != "Tigers_TEAM.jpg" || a.Special[1].Category != filename.TeamPhoto {
		t.Errorf("Special[1] = %+v, want the team photo", a.Special[1])
	}

	if got := a.PhotoCount(); got != 9 {
		t.Errorf("PhotoCount() = %d, want 9", got)
	}
}

func TestAnalyze_RegularRecordFields(t *testing.T) {
	root := writePhotoTree(t, []string{"Tigers_Ana Silva_03.jpg"})

	a, err := Analyze(context.Background(), root)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(a.Regular) != 1 {
		t.Fatalf("Regular = %v, want one record", a.Regular)
	}

	rec := a.Regular[0]
	if rec.TeamName != "Tigers" || rec.PlayerName != "Ana Silva" {
		t.Errorf("record identity = %q/%q, want Tigers/Ana Silva", rec.TeamName, rec.PlayerName)
	}
	if rec.FirstName != "Ana" || rec.LastName != "Silva" {
		t.Errorf("name split = %q/%q, want Ana/Silva", rec.FirstName, rec.LastName)
	}
	if rec.Pose != "03" || rec.PoseNumber != 3 {
		t.Errorf("pose = %q/%d, want 03/3", rec.Pose, rec.PoseNumber)
	}
	if rec.SourcePath != filepath.Join(root, "Tigers_Ana Silva_03.jpg") {
		t.Errorf("SourcePath = %q", rec.SourcePath)
	}
}

// Manual photos pick up a team in the second pass when their first token
// matches a team discovered from the regular photos.
func TestAnalyze_ManualTeamResolution(t *testing.T) {
	root := writePhotoTree(t, []string{
		"Tigers_Ana_1.jpg",
		"Tigers_oops.jpg",
		"Stray_oops.jpg",
		"IMG_0001.jpg",
	})

	a, err := Analyze(context.Background(), root)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	byName := make(map[string]PhotoRecord, len(a.Manual))
	for _, rec := range a.Manual {
		byName[rec.FileName] = rec
	}

	if got := byName["Tigers_oops.jpg"].TeamName; got != "Tigers" {
		t.Errorf("Tigers_oops.jpg team = %q, want Tigers", got)
	}
	if got := byName["Stray_oops.jpg"].TeamName; got != "" {
		t.Errorf("Stray_oops.jpg team = %q, want empty", got)
	}
	// IMG_0001.jpg keeps its parsed first token even though no such team
	// exists; the build engine treats it as loose.
	if got := byName["IMG_0001.jpg"].TeamName; got != "IMG" {
		t.Errorf("IMG_0001.jpg team = %q, want IMG", got)
	}
}

func TestAnalyze_BuddyPhoto(t *testing.T) {
	root := writePhotoTree(t, []string{
		"Tigers_Ana_1.jpg",
		"Tigers_Buddy2.jpg",
	})

	a, err := Analyze(context.Background(), root)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(a.Manual) != 1 {
		t.Fatalf("Manual = %v, want the buddy shot only", a.Manual)
	}

	rec := a.Manual[0]
	if !rec.IsBuddy || !rec.IsManual {
		t.Errorf("flags = buddy %v manual %v, want both set", rec.IsBuddy, rec.IsManual)
	}
	if rec.TeamName != "Tigers" {
		t.Errorf("TeamName = %q, want Tigers", rec.TeamName)
	}
}

func TestAnalyze_EmptyDirectory(t *testing.T) {
	a, err := Analyze(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.PhotoCount() != 0 {
		t.Errorf("PhotoCount() = %d, want 0", a.PhotoCount())
	}
	if len(a.Teams) != 0 {
		t.Errorf("Teams = %v, want none", a.Teams)
	}
}

func TestAnalyze_MissingRoot(t *testing.T) {
	if _, err := Analyze(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("Analyze() succeeded on a missing directory")
	}
}

func TestAnalyze_Cancellation(t *testing.T) {
	files := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		files = append(files, fmt.Sprintf("Team_Player%03d_1.jpg", i))
	}
	root := writePhotoTree(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Analyze() error = %v, want context.Canceled", err)
	}
}
