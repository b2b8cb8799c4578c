// Package linkset builds the linear-solver inputs of the analysis pipeline:
// the link-characteristic set, a dense per-(observer,bit) A·x=b
// system over a fixed link index, and the combined flow set, a
// differential variant built from a single flow's own measurements at
// successive points along its path.
package linkset

import (
	"github.com/COMSYS/ns3-efm-study-overview/internal/classify"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efm"
	"github.com/COMSYS/ns3-efm-study-overview/internal/simdata"
)

// Universe selects which links a link index map spans.
type Universe int

const (
	UniverseCoreOnly Universe = iota
	UniverseAll
)

// LinkIndex is a fixed, stable column assignment over a link universe, used
// both to build A's columns and, in reverse, to attribute a solved link
// value back to its topology link (the reverse index map).
type LinkIndex struct {
	links []simdata.Link
	col   map[simdata.Link]int
}

// NewLinkIndex builds the index over a result set's core links, or core
// plus edge links when u is UniverseAll. Order is topology import order;
// duplicates (a link appearing in both lists) keep their first index.
func NewLinkIndex(rs *simdata.ResultSet, u Universe) *LinkIndex {
	var candidates []simdata.Link
	candidates = append(candidates, rs.CoreLinks...)
	if u == UniverseAll {
		candidates = append(candidates, rs.EdgeLinks...)
	}
	col := make(map[simdata.Link]int, len(candidates))
	links := make([]simdata.Link, 0, len(candidates))
	for _, l := range candidates {
		if _, ok := col[l]; ok {
			continue
		}
		col[l] = len(links)
		links = append(links, l)
	}
	return &LinkIndex{links: links, col: col}
}

// Len is the number of columns (links) in the index.
func (li *LinkIndex) Len() int { return len(li.links) }

// Link returns the link a column attributes to.
func (li *LinkIndex) Link(col int) (simdata.Link, bool) {
	if col < 0 || col >= len(li.links) {
		return simdata.Link{}, false
	}
	return li.links[col], true
}

// Col returns a link's column, if it is in the index's universe.
func (li *LinkIndex) Col(l simdata.Link) (int, bool) {
	c, ok := li.col[l]
	return c, ok
}

// Bucket is one (observer, bit) system: A is row-major, each row a 0/1
// indicator over LinkIndex's columns; B holds the matching measurement.
type Bucket struct {
	A [][]float64
	B []float64
}

func (bk *Bucket) addRow(li *LinkIndex, path simdata.LinkPath, value float64) {
	row := make([]float64, li.Len())
	var any bool
	for _, l := range path {
		if c, ok := li.Col(l); ok {
			row[c] = 1
			any = true
		}
	}
	if !any {
		return
	}
	bk.A = append(bk.A, row)
	bk.B = append(bk.B, value)
}

// Set is the link-characteristic set: observerId -> bit -> Bucket.
type Set struct {
	Index   *LinkIndex
	buckets map[uint32]map[efm.Bit]*Bucket
}

func newSet(li *LinkIndex) *Set {
	return &Set{Index: li, buckets: make(map[uint32]map[efm.Bit]*Bucket)}
}

func (s *Set) ensureBucket(observer uint32, bit efm.Bit) *Bucket {
	m, ok := s.buckets[observer]
	if !ok {
		m = make(map[efm.Bit]*Bucket)
		s.buckets[observer] = m
	}
	bk, ok := m[bit]
	if !ok {
		bk = &Bucket{}
		m[bit] = bk
	}
	return bk
}

// Bucket returns the (observer, bit) system, if classification produced one.
func (s *Set) Bucket(observer uint32, bit efm.Bit) (*Bucket, bool) {
	m, ok := s.buckets[observer]
	if !ok {
		return nil, false
	}
	bk, ok := m[bit]
	return bk, ok
}

// Config bundles a classification run with the link universe to build the
// system over (the same walk the classifier itself makes).
type Config struct {
	classify.Config
	Universe Universe
}

// Build walks the result set exactly as classify.Build does and re-expresses
// every classified path as one row of its (observer, bit) system.
func Build(rs *simdata.ResultSet, cfg Config) *Set {
	li := NewLinkIndex(rs, cfg.Universe)
	classified := classify.Build(rs, cfg.Config)
	out := newSet(li)

	for _, observer := range classified.Observers() {
		for _, bit := range classified.Bits(observer) {
			bucket := out.ensureBucket(observer, bit)
			for _, p := range classified.Paths(observer, bit) {
				v := p.Measurement
				if bit.IsDelayBit() && v <= 0 {
					continue
				}
				if bit.IsLossBit() && v < 0 {
					v = 0
				}
				bucket.addRow(li, p.LinkPath, v)
			}
		}
	}
	return out
}
