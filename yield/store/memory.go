// Package store provides in-memory AllocationStore and RunLog implementations.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/warp/yield-engine/yield"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	inventory   *yield.CanonicalInventory
	allocations map[yield.Date]yield.DailyAllocation
	runs        []yield.RunRecord
}

func NewMemory() *Memory {
	return &Memory{
		allocations: make(map[yield.Date]yield.DailyAllocation),
	}
}

func (m *Memory) LoadCanonicalInventory(_ context.Context) (*yield.CanonicalInventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.inventory == nil {
		return nil, yield.ErrNoInventory
	}
	inv := copyInventory(*m.inventory)
	return &inv, nil
}

// SaveCanonicalInventory replaces the stored inventory with a copy of inv.
func (m *Memory) SaveCanonicalInventory(_ context.Context, inv yield.CanonicalInventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := copyInventory(inv)
	sort.SliceStable(cp.Snapshots, func(i, j int) bool {
		return cp.Snapshots[i].Date.Before(cp.Snapshots[j].Date)
	})
	m.inventory = &cp
	return nil
}

// SaveDecisions drops every allocation in r, then stores allocs. Atomic under the lock.
func (m *Memory) SaveDecisions(_ context.Context, r yield.DateRange, allocs []yield.DailyAllocation) error {
	if !r.Bounded() {
		return fmt.Errorf("save decisions %s: %w", r, yield.ErrUnboundedRange)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for d := range m.allocations {
		if r.Contains(d) {
			delete(m.allocations, d)
		}
	}
	for _, a := range allocs {
		a.Decisions = append([]yield.YieldDecision(nil), a.Decisions...)
		m.allocations[a.Date] = a
	}
	return nil
}

func (m *Memory) LoadDecisions(_ context.Context, r yield.DateRange) ([]yield.DailyAllocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []yield.DailyAllocation
	for d, a := range m.allocations {
		if r.Contains(d) {
			a.Decisions = append([]yield.YieldDecision(nil), a.Decisions...)
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// =============================================================================
// RUN LOG
// =============================================================================

func (m *Memory) RecordRun(_ context.Context, run yield.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (m *Memory) ListRuns(_ context.Context, limit int) ([]yield.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]yield.RunRecord, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		result = append(result, m.runs[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func copyInventory(inv yield.CanonicalInventory) yield.CanonicalInventory {
	out := yield.CanonicalInventory{
		Categories:   append([]yield.RoomCategory(nil), inv.Categories...),
		HasOccupancy: inv.HasOccupancy,
		Snapshots:    make([]yield.InventorySnapshot, len(inv.Snapshots)),
	}
	for i, s := range inv.Snapshots {
		rem := make(map[yield.RoomCategory]int, len(s.Remaining))
		for k, v := range s.Remaining {
			rem[k] = v
		}
		occ := s.Occupancy
		if !inv.HasOccupancy {
			occ = math.NaN()
		}
		out.Snapshots[i] = yield.InventorySnapshot{Date: s.Date, Remaining: rem, Occupancy: occ}
	}
	return out
}
