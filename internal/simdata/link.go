// Package simdata holds the topology and per-flow/path/ping-pair data model
// that a simulation run's trace document is imported into: links, link
// paths, vantage points, and the result set that owns them.
package simdata

import "fmt"

// Link is a directed edge (srcNode, dstNode) between two topology nodes.
// Uniqueness in a topology is by the ordered pair.
type Link struct {
	Src, Dst uint32
}

func (l Link) String() string { return fmt.Sprintf("%d->%d", l.Src, l.Dst) }

// LinkPath is an ordered sequence of Links describing the route a
// measurement covers.
type LinkPath []Link

// ContainsNode reports whether n appears as the source or destination of
// any link on the path.
func (p LinkPath) ContainsNode(n uint32) bool {
	for _, l := range p {
		if l.Src == n || l.Dst == n {
			return true
		}
	}
	return false
}

// ContainsLink reports whether l appears on the path.
func (p LinkPath) ContainsLink(l Link) bool {
	for _, x := range p {
		if x == l {
			return true
		}
	}
	return false
}

// UpTo returns the prefix of the path through the first link whose
// destination is node. Empty if the path is empty or its first link's
// source is node (the node is reached before any link is traversed).
func (p LinkPath) UpTo(node uint32) LinkPath {
	if len(p) == 0 || p[0].Src == node {
		return LinkPath{}
	}
	for i, l := range p {
		if l.Dst == node {
			out := make(LinkPath, i+1)
			copy(out, p[:i+1])
			return out
		}
	}
	// node never reached as a destination: the whole path precedes it.
	out := make(LinkPath, len(p))
	copy(out, p)
	return out
}

// FromXToEnd returns the suffix of the path starting at the first link
// whose source is node.
func (p LinkPath) FromXToEnd(node uint32) LinkPath {
	for i, l := range p {
		if l.Src == node {
			out := make(LinkPath, len(p)-i)
			copy(out, p[i:])
			return out
		}
	}
	return LinkPath{}
}

// Append returns a new path with other's links appended after p's.
func (p LinkPath) Append(other LinkPath) LinkPath {
	out := make(LinkPath, 0, len(p)+len(other))
	out = append(out, p...)
	out = append(out, other...)
	return out
}

// AppendTo returns a new path with p's links appended after other's; it is
// the mirror of Append so that p.Append(q) == q.AppendTo(p).
func (p LinkPath) AppendTo(other LinkPath) LinkPath {
	return other.Append(p)
}

// FromNodes builds the link path implied by a sequence of consecutive
// observer/node ids (a flow path). Length < 1 (fewer than two nodes) is
// signalled by an empty, not nil, result; callers drop it.
func FromNodes(nodes []uint32) LinkPath {
	if len(nodes) < 2 {
		return LinkPath{}
	}
	out := make(LinkPath, 0, len(nodes)-1)
	for i := 0; i+1 < len(nodes); i++ {
		out = append(out, Link{Src: nodes[i], Dst: nodes[i+1]})
	}
	return out
}

// Reverse returns the path traversed in the opposite direction.
func (p LinkPath) Reverse() LinkPath {
	out := make(LinkPath, len(p))
	for i, l := range p {
		out[len(p)-1-i] = Link{Src: l.Dst, Dst: l.Src}
	}
	return out
}
