package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reportengine/internal/models"
)

func TestResolveLastRunAt(t *testing.T) {
	t.Parallel()

	last := time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC)
	now := time.Date(2025, 10, 6, 18, 0, 0, 0, time.UTC)
	schedule := &models.ReportSchedule{
		CronExpression: "0 */6 * * *",
		LastRunAt:      &last,
	}

	r := Resolve(schedule, now)
	require.Equal(t, MethodLastRun, r.Method)
	require.True(t, r.Start.Equal(last))
	require.True(t, r.End.Equal(now))
	require.Equal(t, 6.0, r.IntervalHours())
	require.Equal(t, 360.0, r.IntervalMinutes())
}

func TestResolveLastRunAtFractionalHours(t *testing.T) {
	t.Parallel()

	last := time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC)
	now := last.Add(90*time.Minute + 18*time.Second)
	schedule := &models.ReportSchedule{LastRunAt: &last}

	r := Resolve(schedule, now)
	require.Equal(t, 1.51, r.IntervalHours())
}

func TestResolveCronDetection(t *testing.T) {
	t.Parallel()

	// No last_run_at: window starts at the previous cron instant strictly
	// before now.
	now := time.Date(2025, 10, 6, 14, 30, 0, 0, time.UTC)
	schedule := &models.ReportSchedule{CronExpression: "0 */6 * * *"}

	r := Resolve(schedule, now)
	require.Equal(t, MethodCronDetection, r.Method)
	require.True(t, r.Start.Equal(time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC)))
	require.True(t, r.End.Equal(now))
}

func TestResolveCronDetectionOnBoundary(t *testing.T) {
	t.Parallel()

	// now exactly on a cron instant: the previous instant must be strictly
	// before now, not now itself.
	now := time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC)
	schedule := &models.ReportSchedule{CronExpression: "0 */6 * * *"}

	r := Resolve(schedule, now)
	require.True(t, r.Start.Equal(time.Date(2025, 10, 6, 6, 0, 0, 0, time.UTC)))
}

func TestResolveCronDetectionDaily(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 10, 6, 3, 15, 0, 0, time.UTC)
	schedule := &models.ReportSchedule{CronExpression: "30 2 * * *"}

	r := Resolve(schedule, now)
	require.Equal(t, MethodCronDetection, r.Method)
	require.True(t, r.Start.Equal(time.Date(2025, 10, 6, 2, 30, 0, 0, time.UTC)))
}

func TestResolveDefaultDaily(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 10, 6, 18, 0, 0, 0, time.UTC)

	r := Resolve(nil, now)
	require.Equal(t, MethodDefaultDaily, r.Method)
	require.True(t, r.Start.Equal(now.AddDate(0, 0, -1)))
	require.True(t, r.End.Equal(now))
	require.Equal(t, 24.0, r.IntervalHours())
}

func TestResolveInvalidCronFallsBackToDaily(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 10, 6, 18, 0, 0, 0, time.UTC)
	schedule := &models.ReportSchedule{CronExpression: "not a cron"}

	r := Resolve(schedule, now)
	require.Equal(t, MethodDefaultDaily, r.Method)
}

func TestResolveTimezoneNormalization(t *testing.T) {
	t.Parallel()

	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	now := time.Date(2025, 10, 6, 18, 0, 0, 0, time.UTC)
	schedule := &models.ReportSchedule{
		CronExpression: "0 0 * * *",
		Timezone:       "Asia/Jakarta",
	}

	r := Resolve(schedule, now)
	require.Equal(t, jakarta.String(), r.End.Location().String())
	// 18:00 UTC is 01:00 next day in Jakarta (+07:00).
	require.Equal(t, "2025-10-07 01:00:00", r.End.Format("2006-01-02 15:04:05"))
}

func TestVariables(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 10, 6, 12, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 6, 18, 0, 0, 0, time.UTC)
	vars := Range{Start: start, End: end, Method: MethodLastRun}.Variables()

	want := map[string]string{
		"start_datetime":     "2025-10-06 12:00:00",
		"end_datetime":       "2025-10-06 18:00:00",
		"start_date":         "2025-10-06",
		"end_date":           "2025-10-06",
		"start_time":         "12:00:00",
		"end_time":           "18:00:00",
		"interval_hours":     "6",
		"interval_minutes":   "360",
		"calculation_method": "last_run_at",
		"yesterday":          "2025-10-05",
		"last_week":          "2025-09-29",
		"last_month":         "2025-09-06",
		"execution_time":     "2025-10-06 18:00:00",
		"execution_date":     "2025-10-06",
		"execution_hour":     "18",
	}
	require.Equal(t, want, vars)
}
