package filename

import "testing"

// ============================================================================
// Parse Tests
// ============================================================================

func TestParse_NormalPhotos(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		team   string
		player string
		pose   string
	}{
		{
			name:   "simple team player pose",
			input:  "Tigers_John Doe_1.jpg",
			team:   "Tigers",
			player: "John Doe",
			pose:   "1",
		},
		{
			name:   "player name split across tokens",
			input:  "Tigers_John_Doe_2.jpg",
			team:   "Tigers",
			player: "John Doe",
			pose:   "2",
		},
		{
			name:   "leading zero pose preserved raw",
			input:  "TigersU12_Ana Silva_03.jpg",
			team:   "TigersU12",
			player: "Ana Silva",
			pose:   "03",
		},
		{
			name:   "pose zero",
			input:  "Hawks_Lee_0.png",
			team:   "Hawks",
			player: "Lee",
			pose:   "0",
		},
		{
			name:   "no player tokens",
			input:  "Hawks_7.jpg",
			team:   "Hawks",
			player: "",
			pose:   "7",
		},
		{
			name:   "uppercase extension",
			input:  "Hawks_Kim_4.JPG",
			team:   "Hawks",
			player: "Kim",
			pose:   "4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			if !ok {
				t.Fatalf("Parse(%q) not ok, want parse", tt.input)
			}
			if got.Category != Normal {
				t.Errorf("Parse(%q) category = %v, want Normal", tt.input, got.Category)
			}
			if got.Team != tt.team {
				t.Errorf("Parse(%q) team = %q, want %q", tt.input, got.Team, tt.team)
			}
			if got.Player != tt.player {
				t.Errorf("Parse(%q) player = %q, want %q", tt.input, got.Player, tt.player)
			}
			if got.Pose != tt.pose {
				t.Errorf("Parse(%q) pose = %q, want %q", tt.input, got.Pose, tt.pose)
			}
		})
	}
}

func TestParse_SpecialCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		team  string
		cat   Category
	}{
		{
			name:  "team photo",
			input: "Tigers_TEAM.jpg",
			team:  "Tigers",
			cat:   TeamPhoto,
		},
		{
			name:  "team photo lowercase token",
			input: "Tigers_team.jpg",
			team:  "Tigers",
			cat:   TeamPhoto,
		},
		{
			name:  "team token anywhere wins",
			input: "Tigers_John_TEAM_1.jpg",
			team:  "Tigers",
			cat:   TeamPhoto,
		},
		{
			name:  "coach exact token",
			input: "Tigers_COACH.jpg",
			team:  "Tigers",
			cat:   Coach,
		},
		{
			name:  "coach prefix in second token",
			input: "Tigers_Coach2.jpg",
			team:  "Tigers",
			cat:   Coach,
		},
		{
			name:  "manager",
			input: "Hawks_Manager.jpg",
			team:  "Hawks",
			cat:   Manager,
		},
		{
			name:  "group",
			input: "Hawks_GROUP.jpg",
			team:  "Hawks",
			cat:   Group,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			if !ok {
				t.Fatalf("Parse(%q) not ok, want parse", tt.input)
			}
			if got.Category != tt.cat {
				t.Errorf("Parse(%q) category = %v, want %v", tt.input, got.Category, tt.cat)
			}
			if got.Team != tt.team {
				t.Errorf("Parse(%q) team = %q, want %q", tt.input, got.Team, tt.team)
			}
			if got.Player != "" || got.Pose != "" {
				t.Errorf("Parse(%q) player/pose = %q/%q, want empty", tt.input, got.Player, got.Pose)
			}
		})
	}
}

func TestParse_Unparseable(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "no underscore", input: "IMG0001.jpg"},
		{name: "single token", input: "Tigers.jpg"},
		{name: "last token not numeric", input: "IMG_0001a.jpg"},
		{name: "camera default name", input: "Tigers_John Doe_final.jpg"},
		{name: "negative pose", input: "Tigers_John_-1.jpg"},
		{name: "empty name", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Parse(tt.input); ok {
				t.Errorf("Parse(%q) ok, want unparseable", tt.input)
			}
		})
	}
}

// IMG_0001.jpg is the canonical camera filename: it splits into two tokens
// and the last one is numeric, so it parses as team "IMG" pose "0001".
// Downstream marks it manual because the player is empty; the parser itself
// accepts it.
func TestParse_CameraFilenameParsesWithEmptyPlayer(t *testing.T) {
	got, ok := Parse("IMG_0001.jpg")
	if !ok {
		t.Fatal("Parse(IMG_0001.jpg) not ok")
	}
	if got.Player != "" {
		t.Errorf("player = %q, want empty", got.Player)
	}
	if got.Team != "IMG" || got.Pose != "0001" {
		t.Errorf("team/pose = %q/%q, want IMG/0001", got.Team, got.Pose)
	}
}

// ============================================================================
// IsBuddyPhoto Tests
// ============================================================================

func TestIsBuddyPhoto(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "bare buddy token", input: "Tigers_Buddy.jpg", want: true},
		{name: "numbered buddy", input: "Tigers_Buddy2.jpg", want: true},
		{name: "multi digit buddy", input: "Tigers_buddy12_1.jpg", want: true},
		{name: "uppercase", input: "Tigers_BUDDY3.jpg", want: true},
		{name: "buddy with trailing letters", input: "Tigers_BuddyShot.jpg", want: false},
		{name: "buddy not at index 1", input: "Tigers_John_Buddy2.jpg", want: false},
		{name: "normal photo", input: "Tigers_John Doe_1.jpg", want: false},
		{name: "single token", input: "Buddy.jpg", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBuddyPhoto(tt.input); got != tt.want {
				t.Errorf("IsBuddyPhoto(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ============================================================================
// SanitizePose / PoseNumber Tests
// ============================================================================

func TestSanitizePose(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "3", want: "3"},
		{input: "03", want: "3"},
		{input: "000", want: "0"},
		{input: "0", want: "0"},
		{input: "", want: "0"},
		{input: " 07 ", want: "7"},
		{input: "10", want: "10"},
		{input: "100", want: "100"},
	}

	for _, tt := range tests {
		if got := SanitizePose(tt.input); got != tt.want {
			t.Errorf("SanitizePose(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPoseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{input: "3", want: 3},
		{input: "03", want: 3},
		{input: "", want: 0},
		{input: "abc", want: 0},
		{input: "12", want: 12},
	}

	for _, tt := range tests {
		if got := PoseNumber(tt.input); got != tt.want {
			t.Errorf("PoseNumber(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

// ============================================================================
// CanonicalName Tests
// ============================================================================

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain ascii unchanged", input: "Tigers", want: "Tigers"},
		{name: "whitespace runs collapsed", input: "  John   Doe ", want: "John Doe"},
		{name: "tabs collapsed", input: "John\tDoe", want: "John Doe"},
		// "é" as e + combining acute composes to a single rune.
		{name: "decomposed accent composed", input: "José", want: "José"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalName(tt.input); got != tt.want {
				t.Errorf("CanonicalName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// macOS file names and CSV text spell accents differently; both forms must
// canonicalize identically.
func TestCanonicalName_CrossSourceAgreement(t *testing.T) {
	fromFile := "Équipe"  // decomposed, as HFS+/APFS stores it
	fromCSV := "Équipe"    // composed, as spreadsheets export it
	if CanonicalName(fromFile) != CanonicalName(fromCSV) {
		t.Errorf("canonical forms disagree: %q vs %q",
			CanonicalName(fromFile), CanonicalName(fromCSV))
	}
}

// ============================================================================
// IsImageFile Tests
// ============================================================================

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "a.jpg", want: true},
		{input: "a.JPG", want: true},
		{input: "a.jpeg", want: true},
		{input: "a.png", want: true},
		{input: "a.tiff", want: true},
		{input: "a.heic", want: true},
		{input: "a.heif", want: true},
		{input: "a.gif", want: false},
		{input: "a.txt", want: false},
		{input: "a", want: false},
		{input: "roster.csv", want: false},
	}

	for _, tt := range tests {
		if got := IsImageFile(tt.input); got != tt.want {
			t.Errorf("IsImageFile(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
