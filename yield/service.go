package yield

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SERVICE - Load -> classify -> decide -> persist
// =============================================================================

// Service runs the batch pipeline against an AllocationStore.
// Runs is optional; when set, every run is recorded there.
type Service struct {
	Store   AllocationStore
	Runs    RunLog
	Logger  Logger
	Workers int

	// Policies overrides reconciliation merge policies per column.
	Policies map[string]MergePolicy

	now func() time.Time
}

// NewService creates a service over store. runs may be nil.
func NewService(store AllocationStore, runs RunLog, logger Logger) *Service {
	return &Service{Store: store, Runs: runs, Logger: logger, now: time.Now}
}

// WithLogger returns a copy of s that logs to l.
func (s *Service) WithLogger(l Logger) *Service {
	cp := *s
	cp.Logger = l
	return &cp
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Reconcile merges two raw source tables and replaces the stored canonical inventory.
func (s *Service) Reconcile(ctx context.Context, a, b RawTable) (*CanonicalInventory, error) {
	r := &Reconciler{Policies: s.Policies, Logger: s.Logger}
	inv, err := r.Reconcile(a, b)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Store.SaveCanonicalInventory(ctx, *inv); err != nil {
		return nil, &PersistenceError{Op: "save canonical inventory", Err: err}
	}
	return inv, nil
}

// RunReport is the outcome of a successful Service.Run.
type RunReport struct {
	ID     string
	Range  DateRange
	Result *RunResult
}

// Run loads canonical inventory, evaluates it with cfg and matrix, and
// replaces the decisions for the inventory's date range.
//
// A run either fully succeeds or fails without writing decisions. A context
// cancelled before the save also leaves stored decisions untouched.
func (s *Service) Run(ctx context.Context, cfg Config, matrix RuleMatrix) (*RunReport, error) {
	log := loggerOrNop(s.Logger)
	record := RunRecord{ID: uuid.NewString(), StartedAt: s.clock()}

	report, err := s.run(ctx, cfg, matrix, &record)
	record.FinishedAt = s.clock()
	if err != nil {
		record.Status = RunFailed
		record.Error = err.Error()
		log.Warn("Yield run %s failed: %v", record.ID, err)
	} else {
		record.Status = RunSucceeded
	}
	s.recordRun(ctx, record)
	return report, err
}

func (s *Service) run(ctx context.Context, cfg Config, matrix RuleMatrix, record *RunRecord) (*RunReport, error) {
	log := loggerOrNop(s.Logger)
	log.Info("Starting yield run %s", record.ID)

	inv, err := s.Store.LoadCanonicalInventory(ctx)
	if err != nil {
		if errors.Is(err, ErrNoInventory) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "load canonical inventory", Err: err}
	}
	record.Range = inv.Range()
	log.Info("Loaded %d days of canonical inventory %s", len(inv.Snapshots), record.Range)

	engine := NewEngine(cfg, matrix)
	engine.Logger = s.Logger
	engine.Workers = s.Workers
	result, err := engine.Run(*inv)
	if err != nil {
		return nil, err
	}
	record.Allocated = len(result.Allocations)
	record.Skipped = result.Skipped
	record.Warnings = len(result.Warnings)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(inv.Snapshots) == 0 {
		log.Warn("Canonical inventory has no dates; stored decisions left unchanged")
		return &RunReport{ID: record.ID, Range: record.Range, Result: result}, nil
	}
	if err := s.Store.SaveDecisions(ctx, record.Range, result.Allocations); err != nil {
		return nil, &PersistenceError{Op: "save decisions", Err: err}
	}
	log.Info("Saved %d daily allocations for %s", len(result.Allocations), record.Range)

	return &RunReport{ID: record.ID, Range: record.Range, Result: result}, nil
}

// recordRun never fails the run; the decisions are already committed.
func (s *Service) recordRun(ctx context.Context, record RunRecord) {
	if s.Runs == nil {
		return
	}
	if err := s.Runs.RecordRun(context.WithoutCancel(ctx), record); err != nil {
		loggerOrNop(s.Logger).Warn("Failed to record run %s: %v", record.ID, err)
	}
}
