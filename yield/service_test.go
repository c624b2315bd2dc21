package yield_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/yield-engine/yield"
	"github.com/warp/yield-engine/yield/store"
)

func defaultSources() (yield.RawTable, yield.RawTable) {
	pms := yield.RawTable{
		Name:   "pms",
		Header: []string{"Date", "Deluxe Room", "Premiere Room", "Occupancy"},
		Rows: [][]string{
			{"2025-06-01", "40", "100", "72.5"},
			{"2025-06-02", "0", "90", "65"},
			{"2025-06-03", "20", "80", "130"},
		},
	}
	cm := yield.RawTable{
		Name:   "cm",
		Header: []string{"Date", "Deluxe Room", "Premiere Room"},
		Rows: [][]string{
			{"2025-06-01", "5", "20"},
			{"2025-06-02", "0", "10"},
			{"2025-06-03", "1", "1"},
		},
	}
	return pms, cm
}

func TestService_ReconcileThenRun(t *testing.T) {
	// GIVEN: A memory store and two source tables
	ctx := context.Background()
	mem := store.NewMemory()
	svc := yield.NewService(mem, mem, nil)

	pms, cm := defaultSources()
	inv, err := svc.Reconcile(ctx, pms, cm)
	require.NoError(t, err)
	assert.Len(t, inv.Snapshots, 3)

	// WHEN: Running with the default configuration
	rep, err := svc.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())
	require.NoError(t, err)

	// THEN: Two days allocated, the 130% day skipped
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, "2025-06-01", rep.Range.From.String())
	assert.Equal(t, "2025-06-03", rep.Range.To.String())
	assert.Len(t, rep.Result.Allocations, 2)
	assert.Equal(t, 1, rep.Result.Skipped)

	stored, err := mem.LoadDecisions(ctx, yield.DateRange{})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	deluxe, ok := stored[0].Decision(yield.CategoryDeluxe)
	require.True(t, ok)
	assert.Equal(t, 45, deluxe.Remaining)
	assert.Equal(t, yield.SeasonShoulder, stored[0].Season)
	assert.Equal(t, yield.DemandMedium, stored[0].DemandLevel)

	// Override: Deluxe sold out at 65% occupancy
	deluxe, ok = stored[1].Decision(yield.CategoryDeluxe)
	require.True(t, ok)
	assert.True(t, deluxe.OverrideApplied)
	assert.Equal(t, 2, deluxe.OnlineAllotment)

	runs, err := mem.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, yield.RunSucceeded, runs[0].Status)
	assert.Equal(t, rep.ID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Allocated)
	assert.Equal(t, 1, runs[0].Skipped)
}

func TestService_RunReplacesStaleDecisions(t *testing.T) {
	// GIVEN: A first run where every day was allocated
	ctx := context.Background()
	mem := store.NewMemory()
	svc := yield.NewService(mem, nil, nil)

	pms, cm := defaultSources()
	pms.Rows[2][3] = "50"
	_, err := svc.Reconcile(ctx, pms, cm)
	require.NoError(t, err)
	_, err = svc.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())
	require.NoError(t, err)

	all, err := mem.LoadDecisions(ctx, yield.DateRange{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	// WHEN: The same range is rerun and the last day becomes unclassifiable
	pms.Rows[2][3] = "130"
	_, err = svc.Reconcile(ctx, pms, cm)
	require.NoError(t, err)
	_, err = svc.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())
	require.NoError(t, err)

	// THEN: The skipped day no longer has a stored decision
	all, err = mem.LoadDecisions(ctx, yield.DateRange{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestService_RunOverEmptyInventoryKeepsDecisions(t *testing.T) {
	// GIVEN: Stored decisions from a run over three days
	ctx := context.Background()
	mem := store.NewMemory()
	svc := yield.NewService(mem, mem, nil)

	pms, cm := defaultSources()
	_, err := svc.Reconcile(ctx, pms, cm)
	require.NoError(t, err)
	_, err = svc.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())
	require.NoError(t, err)

	// WHEN: Header-only sources are reconciled and the engine runs again
	pms.Rows, cm.Rows = nil, nil
	inv, err := svc.Reconcile(ctx, pms, cm)
	require.NoError(t, err)
	require.Empty(t, inv.Snapshots)

	rep, err := svc.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())
	require.NoError(t, err)

	// THEN: Nothing allocated, and earlier decisions are still stored
	assert.Empty(t, rep.Result.Allocations)
	assert.False(t, rep.Range.Bounded())

	stored, err := mem.LoadDecisions(ctx, yield.DateRange{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	runs, err := mem.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, yield.RunSucceeded, runs[0].Status)
	assert.Equal(t, 0, runs[0].Allocated)
}

func TestMemory_SaveDecisionsRejectsOpenRange(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	d := yield.MustParseDate("2025-06-01")
	alloc := yield.DailyAllocation{Date: d, DayOfWeek: "Sunday", Season: yield.SeasonShoulder, DemandLevel: yield.DemandLow}
	require.NoError(t, mem.SaveDecisions(ctx, yield.DateRange{From: d, To: d}, []yield.DailyAllocation{alloc}))

	for _, r := range []yield.DateRange{{}, {From: d}, {To: d}, {From: d.AddDays(1), To: d}} {
		err := mem.SaveDecisions(ctx, r, nil)
		assert.ErrorIs(t, err, yield.ErrUnboundedRange, "range %s", r)
	}

	stored, err := mem.LoadDecisions(ctx, yield.DateRange{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestService_RunWithoutInventory(t *testing.T) {
	mem := store.NewMemory()
	svc := yield.NewService(mem, mem, nil)

	_, err := svc.Run(context.Background(), yield.DefaultConfig(), yield.DefaultMatrix())
	assert.ErrorIs(t, err, yield.ErrNoInventory)
	assert.True(t, yield.IsNotFound(err))

	runs, err := mem.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, yield.RunFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestService_MissingColumnWritesNothing(t *testing.T) {
	// GIVEN: Inventory without Premiere Room
	ctx := context.Background()
	mem := store.NewMemory()
	svc := yield.NewService(mem, mem, nil)

	a := yield.RawTable{Header: []string{"Date", "Deluxe Room", "Occupancy"}, Rows: [][]string{{"2025-06-01", "5", "50"}}}
	b := yield.RawTable{Header: []string{"Date", "Deluxe Room"}, Rows: [][]string{{"2025-06-01", "5"}}}
	_, err := svc.Reconcile(ctx, a, b)
	require.NoError(t, err)

	// WHEN: Running
	_, err = svc.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())

	// THEN: MissingColumnError and no decisions
	var mce *yield.MissingColumnError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, []string{"Premiere Room"}, mce.Columns)

	stored, err := mem.LoadDecisions(ctx, yield.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

// failingStore fails every decision write.
type failingStore struct {
	*store.Memory
}

var errDiskFull = errors.New("disk full")

func (f failingStore) SaveDecisions(context.Context, yield.DateRange, []yield.DailyAllocation) error {
	return errDiskFull
}

func TestService_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	svc := yield.NewService(failingStore{mem}, mem, nil)

	pms, cm := defaultSources()
	_, err := svc.Reconcile(ctx, pms, cm)
	require.NoError(t, err)

	_, err = svc.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())

	var pe *yield.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, yield.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)
	assert.False(t, yield.IsClientError(err))

	runs, err := mem.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, yield.RunFailed, runs[0].Status)
}

func TestService_CancelledContextWritesNothing(t *testing.T) {
	mem := store.NewMemory()
	svc := yield.NewService(mem, nil, nil)

	pms, cm := defaultSources()
	_, err := svc.Reconcile(context.Background(), pms, cm)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := mem.LoadDecisions(context.Background(), yield.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}
