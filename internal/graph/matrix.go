package graph

import (
	"errors"

	"github.com/nao1215/trustcrawl/internal/model"
)

// ErrNoSeeds is returned when a snapshot without seed addresses is turned into a matrix.
var ErrNoSeeds = errors.New("graph has no seed addresses")

// Matrix is the index-addressed form of a crawled graph.
type Matrix struct {
	// Index maps a dense index to its address.
	Index []model.Address

	// Pretrust holds one entry per seed with value 1/len(seeds).
	Pretrust []model.PretrustEntry

	// LocalTrust holds one entry per recorded edge, in edge order.
	LocalTrust []model.LocalTrustEntry

	// MaxIndex is the number of indexed addresses.
	MaxIndex int

	lookup map[model.Address]int
}

// BuildMatrix converts a crawl snapshot into pretrust and local trust entries.
//
// Indices follow the snapshot order (seeds first, then claim order). An edge
// may point at an address that was never claimed because the discovery limit
// had been reached; such addresses are indexed after the registry, in the
// order they first appear in the edge list.
func BuildMatrix(snap Snapshot) (*Matrix, error) {
	if snap.Seeds == 0 {
		return nil, ErrNoSeeds
	}

	m := &Matrix{
		Index:  make([]model.Address, 0, len(snap.Addresses)),
		lookup: make(map[model.Address]int, len(snap.Addresses)),
	}
	for _, a := range snap.Addresses {
		m.indexOf(a)
	}

	m.LocalTrust = make([]model.LocalTrustEntry, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		m.LocalTrust = append(m.LocalTrust, model.LocalTrustEntry{
			I: m.indexOf(e.From),
			J: m.indexOf(e.To),
			V: e.Weight,
		})
	}

	seeds := snap.SeedAddresses()
	share := 1 / float64(len(seeds))
	m.Pretrust = make([]model.PretrustEntry, 0, len(seeds))
	for _, s := range seeds {
		m.Pretrust = append(m.Pretrust, model.PretrustEntry{I: m.lookup[s], V: share})
	}

	m.MaxIndex = len(m.Index)
	return m, nil
}

// indexOf returns the index of a, assigning the next free one if needed.
func (m *Matrix) indexOf(a model.Address) int {
	if i, ok := m.lookup[a]; ok {
		return i
	}
	i := len(m.Index)
	m.lookup[a] = i
	m.Index = append(m.Index, a)
	return i
}

// AddressAt returns the address for index i.
func (m *Matrix) AddressAt(i int) (model.Address, bool) {
	if i < 0 || i >= len(m.Index) {
		return "", false
	}
	return m.Index[i], true
}

// RestoreMatrix rebuilds a Matrix from an index table and entry lists that
// were produced by BuildMatrix.
func RestoreMatrix(index []model.Address, pretrust []model.PretrustEntry, localTrust []model.LocalTrustEntry) *Matrix {
	m := &Matrix{
		Index:      index,
		Pretrust:   pretrust,
		LocalTrust: localTrust,
		MaxIndex:   len(index),
		lookup:     make(map[model.Address]int, len(index)),
	}
	for i, a := range index {
		m.lookup[a] = i
	}
	return m
}
