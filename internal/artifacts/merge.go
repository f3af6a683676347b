package artifacts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// Mode selects how a result is merged into an existing collection.
type Mode int

// Merge modes
const (
	// ModeSet replaces the collection; used for first-run stage generation.
	ModeSet Mode = iota
	// ModeAppend adds new items to the collection; used by generate-more.
	ModeAppend
)

func (m Mode) String() string {
	if m == ModeAppend {
		return "append"
	}
	return "set"
}

// Id prefixes
const (
	PrefixEpic      = "epic"
	PrefixStory     = "story"
	PrefixCriterion = "ac"
	PrefixTest      = "test"
	PrefixGherkin   = "gherkin"
)

// IDAllocator hands out ids of the form <prefix>_<n> that do not collide
// with any id already present in the job.
type IDAllocator struct {
	last map[string]int
}

// NewIDAllocator seeds an allocator with every id in the results.
func NewIDAllocator(r *types.Results) *IDAllocator {
	a := &IDAllocator{last: make(map[string]int)}
	for _, e := range r.Epics {
		a.observe(e.ID)
	}
	for _, s := range r.UserStories {
		a.observe(s.ID)
		for _, ac := range s.AcceptanceCriteria {
			a.observe(ac.ID)
		}
	}
	for _, t := range r.FunctionalTests {
		a.observe(t.ID)
	}
	for _, g := range r.GherkinTests {
		a.observe(g.ID)
	}
	return a
}

func (a *IDAllocator) observe(id string) {
	idx := strings.LastIndex(id, "_")
	if idx <= 0 {
		return
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return
	}
	prefix := id[:idx]
	if n > a.last[prefix] {
		a.last[prefix] = n
	}
}

// Next returns a fresh id for the prefix.
func (a *IDAllocator) Next(prefix string) string {
	a.last[prefix]++
	return fmt.Sprintf("%s_%d", prefix, a.last[prefix])
}

// Scope restricts an append to items whose back-reference is listed. A nil
// scope admits everything.
type Scope map[string]bool

// NewScope builds a scope from ids; no ids means unrestricted.
func NewScope(ids []string) Scope {
	if len(ids) == 0 {
		return nil
	}
	s := make(Scope, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// Admits reports whether a back-reference is within scope.
func (s Scope) Admits(id string) bool {
	return s == nil || s[id]
}

// Stats summarizes a merge.
type Stats struct {
	Added   int `json:"added"`
	Dropped int `json:"dropped"`
}

// MergeValidation stores the validation report and resets the gap fixes.
func MergeValidation(r *types.Results, res *generation.ValidationResult) Stats {
	report := res.Report
	r.ValidationReport = &report
	r.GapFixes = append([]types.GapFix{}, res.GapFixes...)
	if res.ProjectName != "" {
		r.ProjectName = res.ProjectName
	}
	return Stats{Added: len(res.Report.Gaps)}
}

// MergeEpics integrates generated epics and stories. Response ids are
// replaced by fresh ones and story epic references are remapped. In append
// mode a generated epic whose name matches an existing one is folded into it,
// and a scope restricts stories to the listed epics.
func MergeEpics(r *types.Results, res *generation.EpicsResult, mode Mode, scope Scope, alloc *IDAllocator) Stats {
	var stats Stats
	if mode == ModeAppend && res.Len() == 0 {
		return stats
	}

	existing := make(map[string]string)
	knownEpics := make(map[string]bool)
	if mode == ModeAppend {
		for _, e := range r.Epics {
			existing[strings.ToLower(strings.TrimSpace(e.Name))] = e.ID
			knownEpics[e.ID] = true
		}
	}

	remap := make(map[string]string, len(res.Epics))
	var newEpics []types.Epic
	for _, e := range res.Epics {
		if id, ok := existing[strings.ToLower(strings.TrimSpace(e.Name))]; ok {
			remap[e.ID] = id
			continue
		}
		fresh := types.Epic{ID: alloc.Next(PrefixEpic), Name: e.Name, Description: e.Description}
		remap[e.ID] = fresh.ID
		newEpics = append(newEpics, fresh)
	}

	var newStories []types.UserStory
	usedEpics := make(map[string]bool)
	for _, s := range res.Stories {
		epicID, ok := remap[s.EpicID]
		if !ok && knownEpics[s.EpicID] {
			epicID, ok = s.EpicID, true
		}
		if !ok || (mode == ModeAppend && !scope.Admits(epicID)) {
			stats.Dropped++
			continue
		}
		story := s.Clone()
		story.ID = alloc.Next(PrefixStory)
		story.EpicID = epicID
		story.RegenerationNeeded = false
		story.EditedAt = nil
		for i := range story.AcceptanceCriteria {
			story.AcceptanceCriteria[i].ID = alloc.Next(PrefixCriterion)
		}
		usedEpics[epicID] = true
		newStories = append(newStories, story)
	}

	// A scoped append only adds stories to existing epics.
	if mode == ModeAppend && scope != nil {
		var kept []types.Epic
		for _, e := range newEpics {
			if usedEpics[e.ID] && scope.Admits(e.ID) {
				kept = append(kept, e)
			} else {
				stats.Dropped++
			}
		}
		newEpics = kept
	}

	stats.Added = len(newEpics) + len(newStories)
	if mode == ModeSet {
		r.Epics = nonNil(newEpics)
		r.UserStories = nonNil(newStories)
		pruneOrphans(r)
		return stats
	}
	r.Epics = append(r.Epics, newEpics...)
	r.UserStories = append(r.UserStories, newStories...)
	return stats
}

// MergeFunctionalTests integrates generated functional tests. Tests naming
// an unknown story, or one outside the scope, are dropped.
func MergeFunctionalTests(r *types.Results, tests []types.FunctionalTest, mode Mode, scope Scope, alloc *IDAllocator) Stats {
	var stats Stats
	if mode == ModeAppend && len(tests) == 0 {
		return stats
	}
	stories := storyIDs(r)

	var added []types.FunctionalTest
	for _, t := range tests {
		if !stories[t.StoryID] || !scope.Admits(t.StoryID) {
			stats.Dropped++
			continue
		}
		t.ID = alloc.Next(PrefixTest)
		added = append(added, t)
	}
	stats.Added = len(added)

	if mode == ModeSet {
		r.FunctionalTests = nonNil(added)
	} else {
		r.FunctionalTests = append(r.FunctionalTests, added...)
	}
	return stats
}

// MergeGherkin integrates generated Gherkin scenarios with the same rules as
// MergeFunctionalTests.
func MergeGherkin(r *types.Results, scenarios []types.GherkinScenario, mode Mode, scope Scope, alloc *IDAllocator) Stats {
	var stats Stats
	if mode == ModeAppend && len(scenarios) == 0 {
		return stats
	}
	stories := storyIDs(r)

	var added []types.GherkinScenario
	for _, sc := range scenarios {
		if !stories[sc.StoryID] || !scope.Admits(sc.StoryID) {
			stats.Dropped++
			continue
		}
		sc.ID = alloc.Next(PrefixGherkin)
		added = append(added, sc)
	}
	stats.Added = len(added)

	if mode == ModeSet {
		r.GherkinTests = nonNil(added)
	} else {
		r.GherkinTests = append(r.GherkinTests, added...)
	}
	return stats
}

// MergeEntities integrates a generated data model. Entities are unique by
// name, ignoring case; duplicates are skipped. Source story ids are limited
// to existing stories, and a scope admits entities fed by a scoped story.
func MergeEntities(r *types.Results, res *generation.DataModelResult, mode Mode, scope Scope) Stats {
	var stats Stats
	if mode == ModeAppend && len(res.Entities) == 0 {
		return stats
	}
	stories := storyIDs(r)

	seen := make(map[string]bool)
	if mode == ModeAppend {
		for _, e := range r.Entities {
			seen[strings.ToLower(strings.TrimSpace(e.Name))] = true
		}
	}

	var added []types.Entity
	for _, e := range res.Entities {
		key := strings.ToLower(strings.TrimSpace(e.Name))
		sources := filter(append([]string(nil), e.SourceStoryIDs...), func(id string) bool { return stories[id] })
		if seen[key] || !admitsAny(scope, sources) {
			stats.Dropped++
			continue
		}
		seen[key] = true
		e.Fields = append([]types.EntityField(nil), e.Fields...)
		e.SourceStoryIDs = sources
		added = append(added, e)
	}
	stats.Added = len(added)

	if mode == ModeSet {
		r.Entities = nonNil(added)
		r.Mermaid = res.Mermaid
		return stats
	}
	if len(added) > 0 {
		r.Entities = append(r.Entities, added...)
		if res.Mermaid != "" {
			r.Mermaid = res.Mermaid
		}
	}
	return stats
}

// MergeCodeSkeleton replaces the code tree.
func MergeCodeSkeleton(r *types.Results, res *generation.CodeSkeletonResult) Stats {
	r.CodeTree = BuildCodeTree(res.Skeleton)
	return Stats{Added: res.Len()}
}

// ReplaceStoryTests swaps a story's functional tests and Gherkin scenarios
// for ones regenerated from basis, the story as it was when generation
// started. A kind for which nothing was generated keeps its existing items.
// The regeneration flag is cleared only when something was added and the
// story still matches basis.
func ReplaceStoryTests(r *types.Results, basis types.UserStory, tests []types.FunctionalTest, scenarios []types.GherkinScenario, alloc *IDAllocator, now time.Time) (Stats, error) {
	storyID := basis.ID
	story := findStory(r, storyID)
	if story == nil {
		return Stats{}, &NotFoundError{Kind: NodeStory, ID: storyID}
	}

	var stats Stats
	var freshTests []types.FunctionalTest
	for _, t := range tests {
		if t.StoryID != storyID {
			stats.Dropped++
			continue
		}
		t.ID = alloc.Next(PrefixTest)
		t.RegeneratedAt = timePtr(now)
		freshTests = append(freshTests, t)
	}
	if len(freshTests) > 0 {
		r.FunctionalTests = append(filter(r.FunctionalTests, func(t types.FunctionalTest) bool {
			return t.StoryID != storyID
		}), freshTests...)
	}

	var freshScenarios []types.GherkinScenario
	for _, sc := range scenarios {
		if sc.StoryID != storyID {
			stats.Dropped++
			continue
		}
		sc.ID = alloc.Next(PrefixGherkin)
		sc.RegeneratedAt = timePtr(now)
		freshScenarios = append(freshScenarios, sc)
	}
	if len(freshScenarios) > 0 {
		r.GherkinTests = append(filter(r.GherkinTests, func(sc types.GherkinScenario) bool {
			return sc.StoryID != storyID
		}), freshScenarios...)
	}

	stats.Added = len(freshTests) + len(freshScenarios)
	if stats.Added > 0 && sameStoryContent(story, &basis) {
		story.RegenerationNeeded = false
	}
	return stats, nil
}

func sameStoryContent(a, b *types.UserStory) bool {
	if a.Title != b.Title || a.Role != b.Role || a.Goal != b.Goal || a.Benefit != b.Benefit {
		return false
	}
	if len(a.AcceptanceCriteria) != len(b.AcceptanceCriteria) {
		return false
	}
	for i := range a.AcceptanceCriteria {
		if a.AcceptanceCriteria[i].Text != b.AcceptanceCriteria[i].Text {
			return false
		}
	}
	switch {
	case a.EditedAt == nil && b.EditedAt == nil:
		return true
	case a.EditedAt == nil || b.EditedAt == nil:
		return false
	default:
		return a.EditedAt.Equal(*b.EditedAt)
	}
}

// ReplaceEntities swaps the entities fed by any of the affected stories, and
// any entity sharing a name with a regenerated one, for the regenerated
// entities. Story regeneration flags are left as they are; they track the
// story's tests, which this does not touch.
func ReplaceEntities(r *types.Results, affected []string, res *generation.DataModelResult, now time.Time) Stats {
	affectedSet := NewScope(affected)
	stories := storyIDs(r)

	var fresh []types.Entity
	names := make(map[string]bool)
	for _, e := range res.Entities {
		key := strings.ToLower(strings.TrimSpace(e.Name))
		if names[key] {
			continue
		}
		names[key] = true
		e.Fields = append([]types.EntityField(nil), e.Fields...)
		e.SourceStoryIDs = filter(append([]string(nil), e.SourceStoryIDs...), func(id string) bool { return stories[id] })
		e.RegeneratedAt = timePtr(now)
		fresh = append(fresh, e)
	}

	var dropped int
	r.Entities = filter(r.Entities, func(e types.Entity) bool {
		stale := names[strings.ToLower(strings.TrimSpace(e.Name))] || (affectedSet != nil && admitsAny(affectedSet, e.SourceStoryIDs))
		if stale {
			dropped++
		}
		return !stale
	})
	r.Entities = append(nonNil(r.Entities), fresh...)
	if res.Mermaid != "" {
		r.Mermaid = res.Mermaid
	}
	return Stats{Added: len(fresh), Dropped: dropped}
}

// pruneOrphans removes tests and scenarios whose story no longer exists and
// scrubs missing stories from entity sources.
func pruneOrphans(r *types.Results) {
	stories := storyIDs(r)
	r.FunctionalTests = filter(r.FunctionalTests, func(t types.FunctionalTest) bool { return stories[t.StoryID] })
	r.GherkinTests = filter(r.GherkinTests, func(sc types.GherkinScenario) bool { return stories[sc.StoryID] })
	for i := range r.Entities {
		r.Entities[i].SourceStoryIDs = filter(r.Entities[i].SourceStoryIDs, func(id string) bool { return stories[id] })
	}
}

func storyIDs(r *types.Results) map[string]bool {
	ids := make(map[string]bool, len(r.UserStories))
	for _, s := range r.UserStories {
		ids[s.ID] = true
	}
	return ids
}

func admitsAny(scope Scope, ids []string) bool {
	if scope == nil {
		return true
	}
	for _, id := range ids {
		if scope[id] {
			return true
		}
	}
	return false
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func timePtr(t time.Time) *time.Time {
	return &t
}
