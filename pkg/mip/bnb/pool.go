package bnb

import (
	"fmt"
	"math"
	"strings"
)

// incumbentPool keeps the best k distinct integer-feasible assignments seen
// during a level's search, ordered best objective first.
type incumbentPool struct {
	cap     int
	entries []poolEntry
	seen    map[string]struct{}
}

type poolEntry struct {
	x   []float64
	obj float64
}

func newIncumbentPool(cap int) *incumbentPool {
	if cap < 1 {
		cap = 1
	}
	return &incumbentPool{cap: cap, seen: make(map[string]struct{})}
}

// offer inserts the assignment if it is distinct and good enough to rank
// within the pool's capacity. Returns true when the pool changed.
func (p *incumbentPool) offer(x []float64, obj float64) bool {
	key := assignmentKey(x)
	if _, dup := p.seen[key]; dup {
		return false
	}
	if len(p.entries) == p.cap && obj <= p.entries[len(p.entries)-1].obj {
		return false
	}
	p.seen[key] = struct{}{}
	pos := len(p.entries)
	for i, e := range p.entries {
		if obj > e.obj {
			pos = i
			break
		}
	}
	p.entries = append(p.entries, poolEntry{})
	copy(p.entries[pos+1:], p.entries[pos:])
	p.entries[pos] = poolEntry{x: x, obj: obj}
	if len(p.entries) > p.cap {
		drop := p.entries[len(p.entries)-1]
		delete(p.seen, assignmentKey(drop.x))
		p.entries = p.entries[:p.cap]
	}
	return true
}

func (p *incumbentPool) full() bool { return len(p.entries) == p.cap }

func (p *incumbentPool) empty() bool { return len(p.entries) == 0 }

// best returns the top entry; the pool must be non-empty.
func (p *incumbentPool) best() poolEntry { return p.entries[0] }

// worst returns the objective of the lowest-ranked kept entry.
func (p *incumbentPool) worst() float64 { return p.entries[len(p.entries)-1].obj }

// assignmentKey fingerprints an assignment at 1e-6 resolution so the pool
// holds distinct solutions only.
func assignmentKey(x []float64) string {
	var b strings.Builder
	for _, v := range x {
		fmt.Fprintf(&b, "%d|", int64(math.Round(v*1e6)))
	}
	return b.String()
}
