package delivery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/store"
)

// Outcome is the explicit terminal result of one delivery target: either the
// artifact reached its destination, or every attempt was exhausted. Retry
// exhaustion is a value, not a propagated panic of control flow.
type Outcome struct {
	Status   models.DeliveryStatus // SUCCESS or FAILED
	Attempts int
	Err      error
	LogID    uint
}

func (o Outcome) Succeeded() bool { return o.Status == models.DeliverySuccess }

// RetryEngine wraps any delivery adapter with attempt bookkeeping and
// linear-times-attempt backoff. One log row per delivery per execution,
// updated in place across attempts so the final row reflects the cumulative
// outcome.
type RetryEngine struct {
	logs store.ExecutionStore
	log  zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryEngine(logs store.ExecutionStore, log zerolog.Logger) *RetryEngine {
	return &RetryEngine{
		logs:  logs,
		log:   log,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// sleepCtx blocks only the owning delivery; cancellation cuts the backoff
// short.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deliver runs up to max_retry attempts of adapter.Send for one delivery
// target. On a failed non-final attempt it waits retry_interval * attempt
// before trying again. The returned Outcome is terminal; the caller decides
// what a failure means for the execution.
func (e *RetryEngine) Deliver(
	ctx context.Context,
	adapter Adapter,
	exec *models.ReportExecution,
	del *models.ReportDelivery,
	recipients []string,
	artifact Artifact,
	vars map[string]string,
) Outcome {
	logRow := &models.ReportDeliveryLog{
		ConfigID:       del.ConfigID,
		DeliveryID:     del.ID,
		ScheduleID:     exec.ScheduleID,
		ExecutionID:    exec.ID,
		Status:         models.DeliveryPending,
		SentAt:         e.now(),
		RecipientCount: len(recipients),
		FileSizeBytes:  artifact.SizeBytes,
	}
	if err := e.logs.CreateDeliveryLog(logRow); err != nil {
		return Outcome{Status: models.DeliveryFailed, Err: err}
	}

	maxRetry := del.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 1
	}
	interval := time.Duration(del.RetryIntervalMinutes) * time.Minute
	start := e.now()

	dlog := e.log.With().
		Str("execution_id", exec.ID).
		Uint("delivery_id", del.ID).
		Str("method", string(del.Method)).
		Logger()

	var lastErr error
	for attempt := 1; attempt <= maxRetry; attempt++ {
		detail, err := adapter.Send(ctx, del.DeliveryConfig, recipients, artifact, vars)
		if err == nil {
			now := e.now()
			logRow.Status = models.DeliverySuccess
			logRow.CompletedAt = &now
			logRow.SuccessCount = len(recipients)
			logRow.FailureCount = 0
			logRow.RetryCount = attempt - 1
			logRow.ErrorMessage = ""
			logRow.ProcessingMs = int(now.Sub(start).Milliseconds())
			logRow.DeliveryDetails = marshalDetail(detail)
			if uerr := e.logs.UpdateDeliveryLog(logRow); uerr != nil {
				dlog.Error().Err(uerr).Msg("failed to record delivery success")
			}
			dlog.Info().Int("attempt", attempt).Msg("delivery succeeded")
			return Outcome{Status: models.DeliverySuccess, Attempts: attempt, LogID: logRow.ID}
		}

		lastErr = err
		dlog.Warn().Err(err).Int("attempt", attempt).Int("max_retry", maxRetry).Msg("delivery attempt failed")

		if attempt < maxRetry {
			logRow.Status = models.DeliveryRetry
			logRow.RetryCount = attempt
			logRow.ErrorMessage = err.Error()
			if uerr := e.logs.UpdateDeliveryLog(logRow); uerr != nil {
				dlog.Error().Err(uerr).Msg("failed to record retry state")
			}
			if serr := e.sleep(ctx, interval*time.Duration(attempt)); serr != nil {
				lastErr = serr
				break
			}
		}
	}

	now := e.now()
	logRow.Status = models.DeliveryFailed
	logRow.CompletedAt = &now
	logRow.SuccessCount = 0
	logRow.FailureCount = len(recipients)
	logRow.RetryCount = maxRetry
	if lastErr != nil {
		logRow.ErrorMessage = lastErr.Error()
	}
	logRow.ProcessingMs = int(now.Sub(start).Milliseconds())
	if uerr := e.logs.UpdateDeliveryLog(logRow); uerr != nil {
		dlog.Error().Err(uerr).Msg("failed to record delivery failure")
	}
	dlog.Error().Err(lastErr).Msg("delivery failed after retries")
	return Outcome{Status: models.DeliveryFailed, Attempts: maxRetry, Err: lastErr, LogID: logRow.ID}
}

func marshalDetail(d Detail) string {
	if len(d) == 0 {
		return ""
	}
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}
