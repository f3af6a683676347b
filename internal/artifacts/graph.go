// Package artifacts maintains the generated artifact graph of a job: the
// ownership edges between epics, stories, tests and entities, cascading
// deletes, staleness flags and the merging of newly generated items.
//
// Every function here mutates the *types.Results it is given in place; the
// job registry hands them a private clone and publishes it afterwards.
package artifacts

import (
	"fmt"

	"github.com/jonathan/brd-pipeline/internal/types"
)

// NodeKind is the type of an artifact in the ownership graph.
type NodeKind string

// Node kinds
const (
	NodeEpic           NodeKind = "epic"
	NodeStory          NodeKind = "story"
	NodeFunctionalTest NodeKind = "functional_test"
	NodeGherkin        NodeKind = "gherkin_test"
	NodeEntity         NodeKind = "entity"

	// NodeGapFix is addressable for edits but has no ownership edges.
	NodeGapFix NodeKind = "gap_fix"
)

// Node addresses one artifact.
type Node struct {
	Kind NodeKind
	ID   string
}

func (n Node) String() string {
	return fmt.Sprintf("%s %s", n.Kind, n.ID)
}

// Graph is the ownership graph derived from a results snapshot. Owned edges
// cascade on delete; feed edges (story -> entity) do not.
type Graph struct {
	nodes map[Node]bool
	owned map[Node][]Node
	feeds map[Node][]Node
}

// BuildGraph derives the graph from back-references in the results.
func BuildGraph(r *types.Results) *Graph {
	g := &Graph{
		nodes: make(map[Node]bool),
		owned: make(map[Node][]Node),
		feeds: make(map[Node][]Node),
	}

	for _, e := range r.Epics {
		g.nodes[Node{NodeEpic, e.ID}] = true
	}
	for _, s := range r.UserStories {
		story := Node{NodeStory, s.ID}
		g.nodes[story] = true
		g.link(Node{NodeEpic, s.EpicID}, story)
	}
	for _, t := range r.FunctionalTests {
		test := Node{NodeFunctionalTest, t.ID}
		g.nodes[test] = true
		g.link(Node{NodeStory, t.StoryID}, test)
	}
	for _, sc := range r.GherkinTests {
		scenario := Node{NodeGherkin, sc.ID}
		g.nodes[scenario] = true
		g.link(Node{NodeStory, sc.StoryID}, scenario)
	}
	for _, e := range r.Entities {
		entity := Node{NodeEntity, e.Name}
		g.nodes[entity] = true
		for _, id := range e.SourceStoryIDs {
			story := Node{NodeStory, id}
			g.feeds[story] = append(g.feeds[story], entity)
		}
	}
	return g
}

func (g *Graph) link(parent, child Node) {
	g.owned[parent] = append(g.owned[parent], child)
}

// Has reports whether the node exists.
func (g *Graph) Has(n Node) bool {
	return g.nodes[n]
}

// Children returns the nodes directly owned by n.
func (g *Graph) Children(n Node) []Node {
	return g.owned[n]
}

// Feeds returns the entities derived from n.
func (g *Graph) Feeds(n Node) []Node {
	return g.feeds[n]
}

// Descendants returns root and every node reachable through owned edges,
// root first.
func (g *Graph) Descendants(root Node) []Node {
	seen := map[Node]bool{root: true}
	out := []Node{root}
	for i := 0; i < len(out); i++ {
		for _, child := range g.owned[out[i]] {
			if !seen[child] {
				seen[child] = true
				out = append(out, child)
			}
		}
	}
	return out
}

// Removal lists the ids removed by a cascade, by kind.
type Removal struct {
	Epics           []string `json:"epics,omitempty"`
	Stories         []string `json:"stories,omitempty"`
	FunctionalTests []string `json:"functional_tests,omitempty"`
	GherkinTests    []string `json:"gherkin_tests,omitempty"`
}

// Count is the total number of removed artifacts.
func (r Removal) Count() int {
	return len(r.Epics) + len(r.Stories) + len(r.FunctionalTests) + len(r.GherkinTests)
}

// CascadeDelete removes root and all of its descendants in one pass. Ids of
// removed stories are scrubbed from entity source lists; entities survive.
func CascadeDelete(r *types.Results, root Node) (Removal, error) {
	g := BuildGraph(r)
	if !g.Has(root) {
		return Removal{}, &NotFoundError{Kind: root.Kind, ID: root.ID}
	}

	doomed := make(map[Node]bool)
	var removal Removal
	for _, n := range g.Descendants(root) {
		doomed[n] = true
		switch n.Kind {
		case NodeEpic:
			removal.Epics = append(removal.Epics, n.ID)
		case NodeStory:
			removal.Stories = append(removal.Stories, n.ID)
		case NodeFunctionalTest:
			removal.FunctionalTests = append(removal.FunctionalTests, n.ID)
		case NodeGherkin:
			removal.GherkinTests = append(removal.GherkinTests, n.ID)
		}
	}

	r.Epics = filter(r.Epics, func(e types.Epic) bool { return !doomed[Node{NodeEpic, e.ID}] })
	r.UserStories = filter(r.UserStories, func(s types.UserStory) bool { return !doomed[Node{NodeStory, s.ID}] })
	r.FunctionalTests = filter(r.FunctionalTests, func(t types.FunctionalTest) bool {
		return !doomed[Node{NodeFunctionalTest, t.ID}]
	})
	r.GherkinTests = filter(r.GherkinTests, func(s types.GherkinScenario) bool {
		return !doomed[Node{NodeGherkin, s.ID}]
	})
	if len(removal.Stories) > 0 {
		for i := range r.Entities {
			r.Entities[i].SourceStoryIDs = filter(r.Entities[i].SourceStoryIDs, func(id string) bool {
				return !doomed[Node{NodeStory, id}]
			})
		}
	}
	return removal, nil
}

// filter keeps the elements for which keep returns true, reusing the backing
// array. A nil input stays nil.
func filter[T any](items []T, keep func(T) bool) []T {
	if items == nil {
		return nil
	}
	out := items[:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
