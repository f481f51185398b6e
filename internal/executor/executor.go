// Package executor drives a single report execution through its state
// machine: admission, time-range resolution, query, artifact encoding,
// delivery fan-out and finalization.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reportengine/internal/datasource"
	"github.com/reportengine/internal/delivery"
	"github.com/reportengine/internal/format"
	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/store"
	"github.com/reportengine/internal/timerange"
)

// errCancelled signals that an external cancellation request was observed at
// a pipeline checkpoint.
var errCancelled = errors.New("execution cancelled")

// ErrExecutionNotRunning is returned by Cancel for unknown or finished
// executions.
var ErrExecutionNotRunning = errors.New("execution is not running")

// Orchestrator sequences the execution pipeline. All persisted execution
// state is mutated here and nowhere else.
type Orchestrator struct {
	configs    store.ConfigStore
	execs      store.ExecutionStore
	sources    *datasource.Registry
	deliverers *delivery.Registry
	retry      *delivery.RetryEngine
	admission  *Admission
	outputRoot string
	log        zerolog.Logger

	now func() time.Time

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
	inFlight map[uint]int // running executions per schedule id
}

func NewOrchestrator(
	configs store.ConfigStore,
	execs store.ExecutionStore,
	sources *datasource.Registry,
	deliverers *delivery.Registry,
	retry *delivery.RetryEngine,
	admission *Admission,
	outputRoot string,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		configs:    configs,
		execs:      execs,
		sources:    sources,
		deliverers: deliverers,
		retry:      retry,
		admission:  admission,
		outputRoot: outputRoot,
		log:        log,
		now:        time.Now,
		cancels:    make(map[string]context.CancelFunc),
		inFlight:   make(map[uint]int),
	}
}

// Admission exposes the slot budget for health reporting.
func (o *Orchestrator) Admission() *Admission { return o.admission }

// InFlight reports how many executions of the given schedule are running.
func (o *Orchestrator) InFlight(scheduleID uint) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[scheduleID]
}

// Execute runs the full pipeline synchronously and returns the finalized
// execution record. Used by the cron scheduler, which already runs each
// firing in its own goroutine.
func (o *Orchestrator) Execute(ctx context.Context, configID uint, scheduleID *uint, executedBy string) (*models.ReportExecution, error) {
	exec, release, err := o.begin(ctx, configID, scheduleID, executedBy)
	if err != nil {
		return nil, err
	}
	defer release()
	o.runPipeline(ctx, exec)
	return exec, nil
}

// Submit starts an execution and returns its id as soon as the RUNNING
// record exists; the pipeline continues in the background on a detached
// context. Admission failures surface here, before any record is written.
func (o *Orchestrator) Submit(ctx context.Context, configID uint, scheduleID *uint, executedBy string) (string, error) {
	exec, release, err := o.begin(ctx, configID, scheduleID, executedBy)
	if err != nil {
		return "", err
	}
	go func() {
		defer release()
		o.runPipeline(context.Background(), exec)
	}()
	return exec.ID, nil
}

// Cancel requests RUNNING -> CANCELLED for an in-flight execution. The
// pipeline abandons remaining steps at its next checkpoint; an adapter call
// already in progress is not interrupted.
func (o *Orchestrator) Cancel(executionID string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[executionID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotRunning, executionID)
	}
	cancel()
	return nil
}

// begin performs admission and creates the RUNNING record. The returned
// release func tears down the slot and the in-flight bookkeeping; it must
// run on every exit path.
func (o *Orchestrator) begin(ctx context.Context, configID uint, scheduleID *uint, executedBy string) (*models.ReportExecution, func(), error) {
	if err := o.admission.Acquire(ctx); err != nil {
		return nil, nil, err
	}

	if executedBy == "" {
		executedBy = "system"
	}
	exec := &models.ReportExecution{
		ID:         uuid.NewString(),
		ConfigID:   configID,
		ScheduleID: scheduleID,
		Status:     models.ExecutionRunning,
		StartedAt:  o.now(),
		ExecutedBy: executedBy,
	}
	if err := o.execs.CreateExecution(exec); err != nil {
		o.admission.Release()
		return nil, nil, fmt.Errorf("failed to create execution record: %v", err)
	}

	o.mu.Lock()
	if scheduleID != nil {
		o.inFlight[*scheduleID]++
	}
	o.mu.Unlock()

	release := func() {
		o.mu.Lock()
		if scheduleID != nil {
			o.inFlight[*scheduleID]--
			if o.inFlight[*scheduleID] <= 0 {
				delete(o.inFlight, *scheduleID)
			}
		}
		o.mu.Unlock()
		o.admission.Release()
	}
	return exec, release, nil
}

// runPipeline executes steps 3..10 and always finalizes to a terminal
// status. Delivery failures are recorded in their own log rows and never
// flip the execution itself; its status reflects whether a report was
// produced, not whether it was fully delivered. (Flagging the execution on
// any delivery failure would be a one-line change in finalize.)
func (o *Orchestrator) runPipeline(parent context.Context, exec *models.ReportExecution) {
	ctx, cancel := context.WithCancel(parent)
	o.mu.Lock()
	o.cancels[exec.ID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, exec.ID)
		o.mu.Unlock()
		cancel()
	}()

	elog := o.log.With().
		Str("execution_id", exec.ID).
		Uint("config_id", exec.ConfigID).
		Logger()

	queryRan := false
	err := o.run(ctx, exec, elog, &queryRan)
	o.finalize(exec, elog, err, queryRan)
}

func (o *Orchestrator) run(ctx context.Context, exec *models.ReportExecution, elog zerolog.Logger, queryRan *bool) error {
	// Load configuration.
	cfg, err := o.configs.GetConfig(exec.ConfigID)
	if err != nil {
		return fmt.Errorf("config loading failed: %w", err)
	}
	ds, err := o.configs.GetDatasource(cfg.DatasourceID)
	if err != nil {
		return fmt.Errorf("config loading failed: %w", err)
	}
	deliveries, err := o.configs.ListActiveDeliveries(cfg.ID)
	if err != nil {
		return fmt.Errorf("config loading failed: %v", err)
	}

	var schedule *models.ReportSchedule
	if exec.ScheduleID != nil {
		schedule, err = o.configs.GetSchedule(*exec.ScheduleID)
		if err != nil {
			return fmt.Errorf("config loading failed: %w", err)
		}
	}
	elog.Info().
		Str("report", cfg.ReportName).
		Str("datasource", ds.Name).
		Int("deliveries", len(deliveries)).
		Msg("configuration loaded")

	if err := checkpoint(ctx); err != nil {
		return err
	}

	// Resolve the time window and substitute the query.
	window := timerange.Resolve(schedule, exec.StartedAt)
	vars := window.Variables()

	finalQuery, err := timerange.Substitute(cfg.ReportQuery, vars)
	if err != nil {
		return fmt.Errorf("template substitution failed: %w", err)
	}

	execCtx, _ := json.Marshal(map[string]interface{}{
		"original_query":  cfg.ReportQuery,
		"final_query":     finalQuery,
		"time_range":      vars,
		"datasource_kind": ds.Kind,
		"output_format":   cfg.OutputFormat,
		"config_version":  cfg.Version,
	})
	exec.Context = string(execCtx)
	if err := o.execs.UpdateExecution(exec); err != nil {
		elog.Error().Err(err).Msg("failed to persist execution context")
	}

	if err := checkpoint(ctx); err != nil {
		return err
	}

	// Run the query.
	source, err := o.sources.Get(ds.Kind)
	if err != nil {
		return fmt.Errorf("query failed: %v", err)
	}
	elog.Info().Str("method", window.Method).Msg("executing query")

	queryStart := o.now()
	result, err := source.Run(ctx, ds, finalQuery, time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.MaxRows)
	exec.QueryTimeMs = int(o.now().Sub(queryStart).Milliseconds())
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	*queryRan = true
	exec.RowsReturned = len(result.Rows)
	elog.Info().Int("rows", exec.RowsReturned).Int("duration_ms", exec.QueryTimeMs).Msg("query completed")

	if err := checkpoint(ctx); err != nil {
		return err
	}

	// Encode the artifact, namespaced by execution id so concurrent runs
	// never collide.
	fileName := artifactFileName(cfg.ReportName, exec.StartedAt, cfg.OutputFormat)
	outputPath := filepath.Join(o.outputRoot, exec.ID, fileName)
	size, err := format.Encode(result, cfg.OutputFormat, outputPath)
	if err != nil {
		return fmt.Errorf("file generation failed: %w", err)
	}
	exec.FilePath = outputPath
	exec.FileSizeBytes = size
	if err := o.execs.UpdateExecution(exec); err != nil {
		elog.Error().Err(err).Msg("failed to persist query results")
	}
	elog.Info().Str("file", outputPath).Int64("size_bytes", size).Msg("report file generated")

	if err := checkpoint(ctx); err != nil {
		return err
	}

	// Fan out deliveries. Each target is independent: a failure lands in
	// its own log row and must not stop the siblings.
	artifact := delivery.Artifact{
		Path:       outputPath,
		FileName:   fileName,
		SizeBytes:  size,
		ReportName: cfg.ReportName,
		Format:     cfg.OutputFormat,
	}
	for i := range deliveries {
		del := &deliveries[i]
		adapter, err := o.deliverers.Get(del.Method)
		if err != nil {
			elog.Warn().Str("method", string(del.Method)).Msg("skipping delivery with unsupported method")
			continue
		}
		recipients, err := o.configs.ListActiveRecipients(del.ID)
		if err != nil {
			elog.Error().Err(err).Uint("delivery_id", del.ID).Msg("failed to load recipients")
			continue
		}
		values := make([]string, 0, len(recipients))
		for _, r := range recipients {
			values = append(values, r.RecipientValue)
		}

		outcome := o.retry.Deliver(ctx, adapter, exec, del, values, artifact, vars)
		if !outcome.Succeeded() {
			elog.Warn().Err(outcome.Err).Uint("delivery_id", del.ID).Msg("delivery failed; execution continues")
		}

		if err := checkpoint(ctx); err != nil {
			return err
		}
	}

	return nil
}

// finalize moves the execution to its terminal status and, when the query
// ran, advances the schedule's incremental anchor. It must leave no
// execution RUNNING behind.
func (o *Orchestrator) finalize(exec *models.ReportExecution, elog zerolog.Logger, runErr error, queryRan bool) {
	now := o.now()
	exec.CompletedAt = &now

	switch {
	case runErr == nil:
		exec.Status = models.ExecutionCompleted
	case errors.Is(runErr, errCancelled), errors.Is(runErr, context.Canceled):
		exec.Status = models.ExecutionCancelled
		exec.ErrorMessage = "cancelled by external request"
	default:
		exec.Status = models.ExecutionFailed
		exec.ErrorMessage = runErr.Error()
	}

	if err := o.execs.UpdateExecution(exec); err != nil {
		elog.Error().Err(err).Msg("failed to finalize execution record")
	}

	// last_run_at only moves after the query actually ran, so a failed or
	// skipped query re-covers the same window next firing. Cancellation
	// never advances it.
	if exec.ScheduleID != nil && queryRan && exec.Status != models.ExecutionCancelled {
		if err := o.configs.AdvanceLastRun(*exec.ScheduleID, exec.StartedAt); err != nil {
			elog.Error().Err(err).Msg("failed to advance schedule last_run_at")
		}
	}

	evt := elog.Info()
	if exec.Status == models.ExecutionFailed {
		evt = elog.Error()
	}
	evt.Str("status", string(exec.Status)).
		Int("rows", exec.RowsReturned).
		Dur("elapsed", now.Sub(exec.StartedAt)).
		Msg("execution finished")
}

func checkpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", errCancelled, ctx.Err())
	}
	return nil
}

func artifactFileName(reportName string, startedAt time.Time, f models.OutputFormat) string {
	safe := strings.NewReplacer(" ", "_", "/", "_", ":", "-").Replace(reportName)
	return fmt.Sprintf("%s_%s.%s", safe, startedAt.Format("20060102_150405"), format.Extension(f))
}

// EnsureOutputRoot creates the artifact root directory.
func EnsureOutputRoot(path string) error {
	return os.MkdirAll(path, 0755)
}
