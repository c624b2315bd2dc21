/*
handlers.go - HTTP API handlers for the yield engine

PURPOSE:
  Exposes the reconciliation and yield pipeline via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to yield.Service.

ENDPOINTS:
  Health:
    GET    /api/health                     Liveness and database check

  Inventory:
    POST   /api/combine-inventory          Reconcile two sources into canonical inventory
    GET    /api/db/combined-inventory      Stored canonical inventory

  Yield:
    POST   /api/yield                      Run with the default configuration
    POST   /api/custom-yield               Run with a full JSON configuration
    GET    /api/yield/stream               Run with defaults, streaming log lines (SSE)
    GET    /api/db/inventory-allocation    Stored decisions (?from=&to=&format=csv)
    GET    /api/runs                       Run log (?limit=)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: Reconcile/Run pipeline over the store
  - Store, Runs: Read access for the db endpoints
  - Configs: JSON to Config conversion
  - Logger: Shared logger; a streamed run logs to a fork of it

CONCURRENCY:
  Runs are serialized by runMu. A streamed run logs to its own forked logger,
  so its observer sees that run's lines and none from other requests.

ERROR HANDLING:
  Errors are returned in the envelope with an HTTP status:
  - 400: Reconciliation, missing column, invalid configuration, bad input
  - 404: No canonical inventory stored yet
  - 500: Persistence and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/warp/yield-engine/factory"
	"github.com/warp/yield-engine/ingest"
	"github.com/warp/yield-engine/logging"
	"github.com/warp/yield-engine/yield"
)

const maxBodyBytes = 32 << 20

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *yield.Service
	Store   yield.AllocationStore
	Runs    yield.RunLog
	Configs *factory.ConfigFactory
	Logger  *logging.Logger

	runMu sync.Mutex
}

// NewHandler creates a handler over store. runs may be nil.
func NewHandler(store yield.AllocationStore, runs yield.RunLog, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		Service: yield.NewService(store, runs, logger),
		Store:   store,
		Runs:    runs,
		Configs: factory.NewConfigFactory(),
		Logger:  logger,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and, when supported, database reachability.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{"database": "unknown"}
	if p, ok := h.Store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
			return
		}
		data["database"] = "ok"
	}
	writeSuccess(w, http.StatusOK, "ok", data)
}

// =============================================================================
// INVENTORY ENDPOINTS
// =============================================================================

// CombineInventory reconciles two raw sources and stores the result.
// POST /api/combine-inventory
func (h *Handler) CombineInventory(w http.ResponseWriter, r *http.Request) {
	var req CombineInventoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	first, second := req.First.toDomain(), req.Second.toDomain()
	switch strings.ToLower(req.Format) {
	case "", formatRaw:
	case formatPMSCM:
		first = ingest.NewPMSNormalizer(h.Logger).Normalize(first)
		second = ingest.NormalizeCM(second, h.Logger)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown format %q", req.Format), nil)
		return
	}

	inv, err := h.Service.Reconcile(r.Context(), first, second)
	if err != nil {
		writeDomainError(w, "Failed to combine inventory", err)
		return
	}
	h.Logger.Info("Combined inventory: %d days, %d categories", len(inv.Snapshots), len(inv.Categories))
	writeSuccess(w, http.StatusOK, "Inventory combined", toInventoryDTO(inv))
}

// GetCombinedInventory returns the stored canonical inventory.
// GET /api/db/combined-inventory
func (h *Handler) GetCombinedInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Store.LoadCanonicalInventory(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load combined inventory", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", toInventoryDTO(inv))
}

// =============================================================================
// YIELD ENDPOINTS
// =============================================================================

// RunYield runs the engine with the default configuration.
// POST /api/yield
func (h *Handler) RunYield(w http.ResponseWriter, r *http.Request) {
	h.runAndRespond(w, r, yield.DefaultConfig(), yield.DefaultMatrix())
}

// RunCustomYield runs the engine with a complete JSON configuration.
// POST /api/custom-yield
func (h *Handler) RunCustomYield(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	cfg, matrix, err := h.Configs.ParseConfig(body)
	if err != nil {
		writeDomainError(w, "Invalid configuration", err)
		return
	}
	h.runAndRespond(w, r, cfg, matrix)
}

func (h *Handler) runAndRespond(w http.ResponseWriter, r *http.Request, cfg yield.Config, matrix yield.RuleMatrix) {
	h.runMu.Lock()
	rep, err := h.Service.Run(r.Context(), cfg, matrix)
	h.runMu.Unlock()
	if err != nil {
		writeDomainError(w, "Yield run failed", err)
		return
	}
	msg := fmt.Sprintf("Yield completed: %d days allocated, %d skipped", len(rep.Result.Allocations), rep.Result.Skipped)
	writeSuccess(w, http.StatusOK, msg, toRunReportDTO(rep, r.URL.Query().Get("rows") != "false"))
}

// StreamYield runs the engine with defaults and streams its log as
// server-sent events. Each log line is a "log" event; the run ends with a
// "done" event carrying the report or an "error" event.
// GET /api/yield/stream
func (h *Handler) StreamYield(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.runMu.Lock()
	defer h.runMu.Unlock()

	runLog := h.Logger.Fork()
	lines := make(chan string, 64)
	remove := runLog.AddSink(func(level logging.Level, line string) {
		select {
		case lines <- fmt.Sprintf("[%s] %s", level, line):
		case <-ctx.Done():
		}
	})
	defer remove()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	type outcome struct {
		rep *yield.RunReport
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rep, err := h.Service.WithLogger(runLog).Run(ctx, yield.DefaultConfig(), yield.DefaultMatrix())
		done <- outcome{rep, err}
	}()

	for {
		select {
		case line := <-lines:
			writeEvent(w, "log", line)
			flusher.Flush()
		case res := <-done:
			cancel()
			remove()
			for drained := false; !drained; {
				select {
				case line := <-lines:
					writeEvent(w, "log", line)
				default:
					drained = true
				}
			}
			if res.err != nil {
				writeEvent(w, "error", res.err.Error())
			} else {
				payload, _ := json.Marshal(toRunReportDTO(res.rep, false))
				writeEvent(w, "done", string(payload))
			}
			flusher.Flush()
			return
		}
	}
}

// GetInventoryAllocation returns stored decisions, optionally bounded.
// GET /api/db/inventory-allocation?from=YYYY-MM-DD&to=YYYY-MM-DD&format=json|csv
func (h *Handler) GetInventoryAllocation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var rng yield.DateRange
	for _, p := range []struct {
		key  string
		into *yield.Date
	}{{"from", &rng.From}, {"to", &rng.To}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		d, err := yield.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s date", p.key), err)
			return
		}
		*p.into = d
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		writeError(w, http.StatusBadRequest, "to must not be before from", nil)
		return
	}

	allocs, err := h.Store.LoadDecisions(r.Context(), rng)
	if err != nil {
		writeDomainError(w, "Failed to load inventory allocation", err)
		return
	}

	if strings.EqualFold(q.Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="daily_inventory_allocation.csv"`)
		if err := ingest.WriteAllocationsCSV(w, allocs, allocationCategories(allocs)); err != nil {
			h.Logger.Error("Failed to write allocation CSV: %v", err)
		}
		return
	}
	writeSuccess(w, http.StatusOK, "", toAllocationDTOs(allocs))
}

// ListRuns returns the most recent runs.
// GET /api/runs?limit=N
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeSuccess(w, http.StatusOK, "", []RunDTO{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	runs, err := h.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeSuccess(w, http.StatusOK, "", dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(w http.ResponseWriter, r *http.Request, into any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Status: statusSuccess, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := Envelope{Status: statusError, Message: message}
	if err != nil {
		details := ErrorDetails{Details: err.Error()}
		var cfgErr *yield.ConfigError
		if errors.As(err, &cfgErr) {
			details.Field = cfgErr.Field
		}
		resp.Data = details
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps yield errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case yield.IsClientError(err):
		return http.StatusBadRequest
	case yield.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeEvent(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
