/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the yield domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - Envelope: Wrapper around every JSON response

ENVELOPE:
  {"status": "success" | "error", "message": "...", "data": ...}

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: ConfigJSON accepted by /api/custom-yield
*/
package api

import (
	"math"
	"sort"

	"github.com/warp/yield-engine/yield"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorDetails is the data of an error envelope.
type ErrorDetails struct {
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

// =============================================================================
// INVENTORY
// =============================================================================

// RawTableDTO is one raw source table.
type RawTableDTO struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

func (t RawTableDTO) toDomain() yield.RawTable {
	return yield.RawTable{Name: t.Name, Header: t.Header, Rows: t.Rows}
}

// CombineInventoryRequest carries the two sources to reconcile.
// With Format "pms_cm", First is a PMS room-code export and Second a CM
// "Left for sale" sheet; both are normalized before reconciliation.
type CombineInventoryRequest struct {
	First  RawTableDTO `json:"first"`
	Second RawTableDTO `json:"second"`
	Format string      `json:"format,omitempty"`
}

const (
	formatRaw   = "raw"
	formatPMSCM = "pms_cm"
)

// InventoryRowDTO is one canonical inventory day.
type InventoryRowDTO struct {
	Date      string         `json:"date"`
	Occupancy *float64       `json:"occupancy"`
	Rooms     map[string]int `json:"rooms"`
}

// InventoryDTO is the canonical inventory.
type InventoryDTO struct {
	Categories   []string          `json:"categories"`
	HasOccupancy bool              `json:"has_occupancy"`
	From         string            `json:"from,omitempty"`
	To           string            `json:"to,omitempty"`
	Rows         []InventoryRowDTO `json:"rows"`
}

func toInventoryDTO(inv *yield.CanonicalInventory) InventoryDTO {
	dto := InventoryDTO{
		Categories:   make([]string, 0, len(inv.Categories)),
		HasOccupancy: inv.HasOccupancy,
		Rows:         make([]InventoryRowDTO, 0, len(inv.Snapshots)),
	}
	for _, c := range inv.Categories {
		dto.Categories = append(dto.Categories, string(c))
	}
	if r := inv.Range(); !r.From.IsZero() {
		dto.From, dto.To = r.From.String(), r.To.String()
	}
	for _, s := range inv.Snapshots {
		row := InventoryRowDTO{Date: s.Date.String(), Rooms: make(map[string]int, len(s.Remaining))}
		if !math.IsNaN(s.Occupancy) {
			occ := s.Occupancy
			row.Occupancy = &occ
		}
		for c, n := range s.Remaining {
			row.Rooms[string(c)] = n
		}
		dto.Rows = append(dto.Rows, row)
	}
	return dto
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// DecisionDTO is one category's decision for a day.
type DecisionDTO struct {
	Category        string `json:"category"`
	Remaining       int    `json:"remaining_inventory"`
	OnlineAllotment int    `json:"online_inventory"`
	Rate            string `json:"bar_rate"`
	OverrideApplied bool   `json:"override_applied,omitempty"`
}

// AllocationDTO is one output row.
type AllocationDTO struct {
	Date        string        `json:"date"`
	DayOfWeek   string        `json:"day_of_week"`
	Season      string        `json:"season"`
	Occupancy   float64       `json:"occupancy"`
	DemandLevel string        `json:"demand_level"`
	Decisions   []DecisionDTO `json:"decisions"`
}

func toAllocationDTOs(allocs []yield.DailyAllocation) []AllocationDTO {
	dtos := make([]AllocationDTO, 0, len(allocs))
	for _, a := range allocs {
		dto := AllocationDTO{
			Date:        a.Date.String(),
			DayOfWeek:   a.DayOfWeek,
			Season:      string(a.Season),
			Occupancy:   a.Occupancy,
			DemandLevel: string(a.DemandLevel),
			Decisions:   make([]DecisionDTO, 0, len(a.Decisions)),
		}
		for _, d := range a.Decisions {
			dto.Decisions = append(dto.Decisions, DecisionDTO{
				Category:        string(d.Category),
				Remaining:       d.Remaining,
				OnlineAllotment: d.OnlineAllotment,
				Rate:            d.Rate.String(),
				OverrideApplied: d.OverrideApplied,
			})
		}
		dtos = append(dtos, dto)
	}
	return dtos
}

// allocationCategories returns every category decided in allocs, sorted.
func allocationCategories(allocs []yield.DailyAllocation) []yield.RoomCategory {
	seen := make(map[yield.RoomCategory]bool)
	var cats []yield.RoomCategory
	for _, a := range allocs {
		for _, d := range a.Decisions {
			if !seen[d.Category] {
				seen[d.Category] = true
				cats = append(cats, d.Category)
			}
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// =============================================================================
// RUNS
// =============================================================================

// WarningDTO is a non-fatal condition reported by a run.
type WarningDTO struct {
	Kind     string `json:"kind"`
	Date     string `json:"date"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// RunReportDTO summarizes a completed run.
type RunReportDTO struct {
	ID        string          `json:"id"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Evaluated int             `json:"evaluated"`
	Allocated int             `json:"allocated"`
	Skipped   int             `json:"skipped"`
	Warnings  []WarningDTO    `json:"warnings"`
	Rows      []AllocationDTO `json:"rows,omitempty"`
}

func toRunReportDTO(rep *yield.RunReport, withRows bool) RunReportDTO {
	dto := RunReportDTO{
		ID:        rep.ID,
		Evaluated: rep.Result.Evaluated,
		Allocated: len(rep.Result.Allocations),
		Skipped:   rep.Result.Skipped,
		Warnings:  make([]WarningDTO, 0, len(rep.Result.Warnings)),
	}
	if rep.Range.Bounded() {
		dto.From, dto.To = rep.Range.From.String(), rep.Range.To.String()
	}
	for _, w := range rep.Result.Warnings {
		dto.Warnings = append(dto.Warnings, WarningDTO{
			Kind:     string(w.Kind),
			Date:     w.Date.String(),
			Category: string(w.Category),
			Message:  w.Message,
		})
	}
	if withRows {
		dto.Rows = toAllocationDTOs(rep.Result.Allocations)
	}
	return dto
}

// RunDTO is one entry of the run log.
type RunDTO struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Status     string `json:"status"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Allocated  int    `json:"allocated"`
	Skipped    int    `json:"skipped"`
	Warnings   int    `json:"warnings"`
	Error      string `json:"error,omitempty"`
}

func toRunDTO(r yield.RunRecord) RunDTO {
	dto := RunDTO{
		ID:         r.ID,
		StartedAt:  r.StartedAt.UTC().Format(timeFormat),
		FinishedAt: r.FinishedAt.UTC().Format(timeFormat),
		Status:     string(r.Status),
		Allocated:  r.Allocated,
		Skipped:    r.Skipped,
		Warnings:   r.Warnings,
		Error:      r.Error,
	}
	if !r.Range.From.IsZero() {
		dto.From = r.Range.From.String()
	}
	if !r.Range.To.IsZero() {
		dto.To = r.Range.To.String()
	}
	return dto
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
