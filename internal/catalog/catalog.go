// Package catalog holds the template assignments that drive row synthesis:
// which print templates apply to each team, individually and for sports-mate
// composites, plus a global individual list used as a fallback for photos
// without a team assignment of their own.
//
// The in-memory Catalog is safe for concurrent use. Builds never read it
// live; they take a Snapshot, so an edit made while a build runs cannot
// shift its template set. Persistence lives in Store, which writes the
// catalog as JSON with an atomic replace and an optional timestamped backup
// of the previous file.
package catalog

import (
	"sort"
	"sync"

	"github.com/shutterworks/photoflow/internal/filename"
)

// TemplateDescriptor identifies one print template and its pose wiring.
type TemplateDescriptor struct {
	// FileName is the template's own file identifier, treated as opaque.
	FileName string `json:"fileName"`

	// IsMultiPose marks a template composing two poses of the same player.
	IsMultiPose bool `json:"isMultiPose"`

	// MainPose and SecondPose are pose tokens as they appear in photo file
	// names. SecondPose drives second-photo resolution.
	MainPose   string `json:"mainPose,omitempty"`
	SecondPose string `json:"secondPose,omitempty"`
}

// NeedsSecondPose reports whether second-pose resolution applies. Both
// conditions are required: a multi-pose template with an empty second pose
// resolves nothing.
func (t TemplateDescriptor) NeedsSecondPose() bool {
	return t.IsMultiPose && t.SecondPose != ""
}

// TeamTemplates is one team's template assignment.
type TeamTemplates struct {
	Individual  []TemplateDescriptor `json:"individual,omitempty"`
	SportsMates []TemplateDescriptor `json:"sportsMates,omitempty"`
}

func (t TeamTemplates) clone() TeamTemplates {
	return TeamTemplates{
		Individual:  cloneDescriptors(t.Individual),
		SportsMates: cloneDescriptors(t.SportsMates),
	}
}

func cloneDescriptors(in []TemplateDescriptor) []TemplateDescriptor {
	if in == nil {
		return nil
	}
	out := make([]TemplateDescriptor, len(in))
	copy(out, in)
	return out
}

// Catalog is the mutable registry of template assignments.
type Catalog struct {
	mu     sync.RWMutex
	teams  map[string]TeamTemplates
	global []TemplateDescriptor
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{teams: make(map[string]TeamTemplates)}
}

// SetTeam replaces the template assignment for a team.
func (c *Catalog) SetTeam(team string, t TeamTemplates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teams[team] = t.clone()
}

// Team returns a team's assignment.
// Returns false if the team has none.
func (c *Catalog) Team(team string) (TeamTemplates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.teams[team]
	if !ok {
		return TeamTemplates{}, false
	}
	return t.clone(), true
}

// RemoveTeam drops a team's assignment.
func (c *Catalog) RemoveTeam(team string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.teams, team)
}

// Teams returns all team names with assignments.
// Sorted for consistent ordering.
func (c *Catalog) Teams() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.teams))
	for name := range c.teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TeamCount returns the number of teams with assignments.
func (c *Catalog) TeamCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.teams)
}

// SetGlobal replaces the global individual template list.
func (c *Catalog) SetGlobal(ts []TemplateDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global = cloneDescriptors(ts)
}

// Global returns the global individual template list.
func (c *Catalog) Global() []TemplateDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneDescriptors(c.global)
}

// Snapshot returns a point-in-time copy of the whole catalog.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	teams := make(map[string]TeamTemplates, len(c.teams))
	for name, t := range c.teams {
		teams[name] = t.clone()
	}
	return Snapshot{Teams: teams, Global: cloneDescriptors(c.global)}
}

// Replace swaps in a whole new catalog state, typically one loaded from
// disk. The snapshot is copied, so the caller keeps ownership.
func (c *Catalog) Replace(snap Snapshot) {
	teams := make(map[string]TeamTemplates, len(snap.Teams))
	for name, t := range snap.Teams {
		teams[name] = t.clone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.teams = teams
	c.global = cloneDescriptors(snap.Global)
}

// Clear removes all assignments.
// Primarily useful for testing.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teams = make(map[string]TeamTemplates)
	c.global = nil
}

// Snapshot is a point-in-time copy of catalog state. Builds work from a
// snapshot rather than the live catalog so their template set is fixed for
// the whole run.
type Snapshot struct {
	Teams  map[string]TeamTemplates `json:"teams"`
	Global []TemplateDescriptor     `json:"global,omitempty"`
}

// TeamNames returns the snapshot's team names, sorted.
func (s Snapshot) TeamNames() []string {
	names := make([]string, 0, len(s.Teams))
	for name := range s.Teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Team returns a team's assignment from the snapshot. Lookup tries the
// exact name first, then canonical forms, so a team discovered from a
// decomposed macOS file name still finds its assignment.
// Returns false if the team has none.
func (s Snapshot) Team(team string) (TeamTemplates, bool) {
	if t, ok := s.Teams[team]; ok {
		return t, true
	}

	want := filename.CanonicalName(team)
	for _, name := range s.TeamNames() {
		if filename.CanonicalName(name) == want {
			return s.Teams[name], true
		}
	}
	return TeamTemplates{}, false
}

// FallbackIndividual finds the individual template for a photo whose team
// has no usable assignment: the named team's first individual template when
// present, then the first global individual template, then the first
// individual template of any team in sorted order. Returns false when the
// whole catalog has no individual template at all.
func (s Snapshot) FallbackIndividual(team string) (TemplateDescriptor, bool) {
	if team != "" {
		if t, ok := s.Team(team); ok && len(t.Individual) > 0 {
			return t.Individual[0], true
		}
	}
	if len(s.Global) > 0 {
		return s.Global[0], true
	}
	for _, name := range s.TeamNames() {
		if t := s.Teams[name]; len(t.Individual) > 0 {
			return t.Individual[0], true
		}
	}
	return TemplateDescriptor{}, false
}
