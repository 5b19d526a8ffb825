package bnb

import (
	"sync"
	"time"
)

// SearchStats holds statistics about a completed or in-flight solve.
type SearchStats struct {
	NodesExplored int64         // search nodes expanded across all levels
	LPSolves      int64         // LP relaxations solved
	Incumbents    int64         // incumbent improvements observed
	Pruned        int64         // nodes pruned by bound or infeasibility
	MaxDepth      int           // deepest node expanded
	Levels        int           // priority levels optimized
	StoppedLevels int           // levels abandoned by a StopLevel action
	SearchTime    time.Duration // total wall time in search
}

// monitor tracks statistics under a mutex; the engine's search loop and
// parallel evaluators both report into it.
type monitor struct {
	mu    sync.Mutex
	stats SearchStats
	start time.Time
}

func newMonitor() *monitor {
	return &monitor{start: time.Now()}
}

func (m *monitor) node(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.NodesExplored++
	if depth > m.stats.MaxDepth {
		m.stats.MaxDepth = depth
	}
}

func (m *monitor) lpSolve() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.LPSolves++
}

func (m *monitor) incumbent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Incumbents++
}

func (m *monitor) pruned() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Pruned++
}

func (m *monitor) level() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Levels++
}

func (m *monitor) stoppedLevel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.StoppedLevels++
}

// snapshot returns a copy of the current statistics with SearchTime filled.
func (m *monitor) snapshot() SearchStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.SearchTime = time.Since(m.start)
	return s
}
