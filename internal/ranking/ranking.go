// Package ranking implements a small treap-backed ranked set: items ordered
// by a score plus a pluggable tie-break, used by the Skill Similarity
// Filter to rank candidates by mean-pairwise cosine.
//
// Adapted from the leaderboard treap in this lineage's ranking store: same
// score-scaled BST-with-random-priority structure and in-order-traversal
// ranking, generalized to accept a caller-supplied tie-break instead of a
// fixed score-desc/id-asc rule.
package ranking

import (
	"math"
	"math/rand"
)

// scoreScale controls fixed-point scaling from float64, matching the
// precision the teacher's leaderboard treap uses.
const scoreScale = 1_000_000_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	if math.IsInf(x, 1) {
		return scoreFP(math.MaxInt64)
	}
	if math.IsInf(x, -1) {
		return scoreFP(math.MinInt64)
	}
	scaled := x * scoreScale
	if scaled > float64(math.MaxInt64) {
		return scoreFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(scaled))
}

// Item is a single ranked entry: an opaque id and its score. Any richer
// tie-break data stays with the caller, whose TieBreak can look it up by ID.
type Item struct {
	ID    string
	Score float64
}

// TieBreak compares two items with equal score and reports whether a should
// rank ahead of b. Implementations must be a strict weak ordering.
type TieBreak func(a, b Item) bool

type node struct {
	item  Item
	score scoreFP
	prio  uint64
	left  *node
	right *node
}

// Set is a treap ordered by descending score, with ties broken by TieBreak.
// Not safe for concurrent use; callers build one per ranking decision.
type Set struct {
	root *node
	tie  TieBreak
	rng  *rand.Rand
}

// New creates an empty ranked set. tie breaks ties when two items have an
// equal fixed-point score; if nil, ties are broken by ID ascending.
func New(tie TieBreak) *Set {
	if tie == nil {
		tie = func(a, b Item) bool { return a.ID < b.ID }
	}
	return &Set{tie: tie, rng: rand.New(rand.NewSource(1))} //nolint:gosec // priorities only affect tree balance, not ordering
}

// less reports whether a should rank ahead of b (higher scores first, then
// the tie-break).
func (s *Set) less(a Item, aScore scoreFP, b Item, bScore scoreFP) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return s.tie(a, b)
}

// Insert adds item to the set.
func (s *Set) Insert(item Item) {
	s.root = s.insert(s.root, item)
}

func (s *Set) insert(n *node, item Item) *node {
	score := toFixedPoint(item.Score)
	if n == nil {
		return &node{item: item, score: score, prio: s.rng.Uint64()}
	}
	if s.less(item, score, n.item, n.score) {
		n.left = s.insert(n.left, item)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = s.insert(n.right, item)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	return n
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	return y
}

// TopK returns up to k items in rank order (best first).
func (s *Set) TopK(k int) []Item {
	out := make([]Item, 0, k)
	collect(s.root, k, &out)
	return out
}

func collect(n *node, limit int, out *[]Item) {
	if n == nil || len(*out) >= limit {
		return
	}
	collect(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.item)
	}
	if len(*out) < limit {
		collect(n.right, limit, out)
	}
}

// All returns every item in rank order.
func (s *Set) All() []Item {
	out := make([]Item, 0)
	collect(s.root, int(^uint(0)>>1), &out)
	return out
}

// TopK is a convenience wrapper that ranks items in one call without
// constructing a Set explicitly.
func TopK(items []Item, k int, tie TieBreak) []Item {
	s := New(tie)
	for _, it := range items {
		s.Insert(it)
	}
	if k <= 0 || k > len(items) {
		k = len(items)
	}
	return s.TopK(k)
}
