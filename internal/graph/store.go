package graph

import (
	"sync"

	"github.com/nao1215/trustcrawl/internal/model"
)

// Store is a race-safe container for the graph discovered by one crawl.
type Store struct {
	// mu guards every field below; the registry and counter must change together.
	mu sync.Mutex

	// known is the visited registry.
	known map[model.Address]struct{}

	// order records addresses in registration order (seeds, then claims).
	order []model.Address

	// seeds is the number of pre-registered seed addresses at the head of order.
	seeds int

	// discovered counts first-time discoveries; seeds are not counted.
	discovered int

	// edges is the append-only edge list.
	edges []model.Edge
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		known: make(map[model.Address]struct{}),
		order: make([]model.Address, 0),
		edges: make([]model.Edge, 0),
	}
}

// Seed pre-registers addresses so they are never reported as newly
// discovered. Seeds do not advance the discovery counter. Duplicate or
// already known addresses are ignored.
func (s *Store) Seed(addrs ...model.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range addrs {
		if _, ok := s.known[a]; ok {
			continue
		}
		s.known[a] = struct{}{}
		s.order = append(s.order, a)
		s.seeds++
	}
}

// AddEdge appends an edge. It never fails.
func (s *Store) AddEdge(e model.Edge) {
	s.mu.Lock()
	s.edges = append(s.edges, e)
	s.mu.Unlock()
}

// TryClaim atomically decides whether addr should be expanded.
//
// If the discovery counter has already reached limit, or addr is already in
// the registry, nothing changes and the result is (known, false). Otherwise
// addr is registered, the counter is incremented and the result is
// (false, true). The limit is compared with the counter before the increment.
func (s *Store) TryClaim(addr model.Address, limit int) (alreadyKnown, shouldExpand bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, known := s.known[addr]
	if known || s.discovered >= limit {
		return known, false
	}

	s.known[addr] = struct{}{}
	s.order = append(s.order, addr)
	s.discovered++
	return false, true
}

// Snapshot is a copy of the store contents taken after the crawl finished.
type Snapshot struct {
	// Addresses lists the registry in discovery order: seeds first in input
	// order, then claimed addresses in claim order.
	Addresses []model.Address

	// Seeds is the number of seed addresses at the head of Addresses.
	Seeds int

	// Edges is the recorded edge list in insertion order.
	Edges []model.Edge

	// Discovered is the final discovery counter.
	Discovered int
}

// SeedAddresses returns the seed prefix of Addresses.
func (s Snapshot) SeedAddresses() []model.Address {
	return s.Addresses[:s.Seeds]
}

// Snapshot returns copies of the registry order and the edge list.
// It is meant to be called once every crawl task has finished.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := make([]model.Address, len(s.order))
	copy(addrs, s.order)
	edges := make([]model.Edge, len(s.edges))
	copy(edges, s.edges)

	return Snapshot{
		Addresses:  addrs,
		Seeds:      s.seeds,
		Edges:      edges,
		Discovered: s.discovered,
	}
}

// Distinct returns the number of distinct addresses in the graph: the
// registry plus any edge endpoint that was never claimed.
func (s Snapshot) Distinct() int {
	seen := make(map[model.Address]struct{}, len(s.Addresses))
	for _, a := range s.Addresses {
		seen[a] = struct{}{}
	}
	for _, e := range s.Edges {
		seen[e.From] = struct{}{}
		seen[e.To] = struct{}{}
	}
	return len(seen)
}
