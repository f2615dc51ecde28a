package harvest

import (
	"context"
	"sort"

	"github.com/seekmed/medharvest/pkg/concepts"
)

// fakeSource serves scripted pages, subclass edges, and entity details,
// recording every call.
type fakeSource struct {
	pages    [][]concepts.QID
	pageErrs map[int]error
	edges    map[concepts.QID][]concepts.QID
	subErrAt map[int]error
	entities map[concepts.QID]concepts.Concept
	fetchErr map[int]error
	fetchFn  func(call int, ids []concepts.QID)

	pageCalls  []DiscoveryPage
	subCalls   [][]concepts.QID
	fetchCalls [][]concepts.QID
}

func (f *fakeSource) DiscoverPage(_ context.Context, page DiscoveryPage) ([]concepts.QID, error) {
	call := len(f.pageCalls)
	f.pageCalls = append(f.pageCalls, page)
	if err := f.pageErrs[call]; err != nil {
		return nil, err
	}
	if call < len(f.pages) {
		return f.pages[call], nil
	}
	return nil, nil
}

func (f *fakeSource) Subclasses(_ context.Context, parents []concepts.QID) ([]concepts.QID, error) {
	call := len(f.subCalls)
	f.subCalls = append(f.subCalls, append([]concepts.QID(nil), parents...))
	if err := f.subErrAt[call]; err != nil {
		return nil, err
	}
	var children []concepts.QID
	for _, p := range parents {
		children = append(children, f.edges[p]...)
	}
	return children, nil
}

func (f *fakeSource) FetchEntities(_ context.Context, ids []concepts.QID) (map[concepts.QID]concepts.Concept, error) {
	call := len(f.fetchCalls)
	f.fetchCalls = append(f.fetchCalls, append([]concepts.QID(nil), ids...))
	if f.fetchFn != nil {
		f.fetchFn(call, ids)
	}
	if err := f.fetchErr[call]; err != nil {
		return nil, err
	}
	out := make(map[concepts.QID]concepts.Concept)
	for _, id := range ids {
		if con, ok := f.entities[id]; ok {
			out[id] = con
		}
	}
	return out, nil
}

// graphSource implements discovery over an in-memory subclass graph with
// real reachability semantics, including subtree exclusion, so discoverer
// tests exercise the same set difference the query encodes.
type graphSource struct {
	fakeSource
	members map[concepts.QID][]concepts.QID // class → direct instances
}

func (g *graphSource) DiscoverPage(_ context.Context, page DiscoveryPage) ([]concepts.QID, error) {
	g.pageCalls = append(g.pageCalls, page)

	included := g.instancesOf(g.closure(page.Category))
	for _, root := range page.Exclude {
		for id := range g.instancesOf(g.closure(root)) {
			delete(included, id)
		}
	}

	all := make([]concepts.QID, 0, len(included))
	for id := range included {
		all = append(all, id)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	start := min(page.Offset, len(all))
	end := min(start+page.PageSize, len(all))
	return all[start:end], nil
}

// closure returns root plus everything reachable over subclass edges.
func (g *graphSource) closure(root concepts.QID) map[concepts.QID]struct{} {
	out := map[concepts.QID]struct{}{root: {}}
	frontier := []concepts.QID{root}
	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]
		for _, child := range g.edges[node] {
			if _, ok := out[child]; !ok {
				out[child] = struct{}{}
				frontier = append(frontier, child)
			}
		}
	}
	return out
}

// instancesOf returns the direct instances of every class in the set.
func (g *graphSource) instancesOf(classes map[concepts.QID]struct{}) map[concepts.QID]struct{} {
	out := make(map[concepts.QID]struct{})
	for class := range classes {
		for _, inst := range g.members[class] {
			out[inst] = struct{}{}
		}
	}
	return out
}
