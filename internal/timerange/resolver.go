package timerange

import (
	"math"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reportengine/internal/models"
)

const (
	MethodLastRun       = "last_run_at"
	MethodCronDetection = "cron_detection"
	MethodDefaultDaily  = "default_daily"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Range is the query time window for one execution.
type Range struct {
	Start  time.Time
	End    time.Time
	Method string
}

// Resolve computes the query window for an execution starting at now.
//
// Priority: the schedule's last_run_at gives a gapless incremental window;
// failing that, the previous cron instant strictly before now; with no
// schedule at all the window defaults to the trailing 24 hours.
// Times are normalized to the schedule's timezone (UTC if none). Pure: no
// clock or storage access, inject now.
func Resolve(schedule *models.ReportSchedule, now time.Time) Range {
	loc := time.UTC
	if schedule != nil && schedule.Timezone != "" {
		if l, err := time.LoadLocation(schedule.Timezone); err == nil {
			loc = l
		}
	}
	end := now.In(loc)

	if schedule != nil && schedule.LastRunAt != nil {
		return Range{Start: schedule.LastRunAt.In(loc), End: end, Method: MethodLastRun}
	}

	if schedule != nil && schedule.CronExpression != "" {
		if sched, err := cronParser.Parse(schedule.CronExpression); err == nil {
			if prev, ok := prevInstant(sched, end); ok {
				return Range{Start: prev, End: end, Method: MethodCronDetection}
			}
		}
	}

	return Range{Start: end.AddDate(0, 0, -1), End: end, Method: MethodDefaultDaily}
}

// prevInstant finds the latest scheduled instant strictly before t.
//
// cron.Schedule only exposes Next, so walk forward from the smallest
// lookback window that contains at least one firing.
func prevInstant(sched cron.Schedule, t time.Time) (time.Time, bool) {
	lookbacks := []time.Duration{
		time.Hour,
		24 * time.Hour,
		7 * 24 * time.Hour,
		31 * 24 * time.Hour,
		366 * 24 * time.Hour,
	}
	for _, lb := range lookbacks {
		from := t.Add(-lb)
		next := sched.Next(from)
		if next.IsZero() || !next.Before(t) {
			continue
		}
		prev := next
		for {
			n := sched.Next(prev)
			if n.IsZero() || !n.Before(t) {
				return prev, true
			}
			prev = n
		}
	}
	return time.Time{}, false
}

// IntervalHours is the window length in hours, rounded to 2 decimals.
func (r Range) IntervalHours() float64 {
	return math.Round(r.End.Sub(r.Start).Hours()*100) / 100
}

// IntervalMinutes is the window length in minutes, rounded to 2 decimals.
func (r Range) IntervalMinutes() float64 {
	return math.Round(r.End.Sub(r.Start).Minutes()*100) / 100
}

// Variables returns the template variable set derived from the window.
// These are the placeholders query templates and delivery templates may
// reference.
func (r Range) Variables() map[string]string {
	return map[string]string{
		"start_datetime":     r.Start.Format(dateTimeLayout),
		"end_datetime":       r.End.Format(dateTimeLayout),
		"start_date":         r.Start.Format(dateLayout),
		"end_date":           r.End.Format(dateLayout),
		"start_time":         r.Start.Format(timeLayout),
		"end_time":           r.End.Format(timeLayout),
		"interval_hours":     formatFloat(r.IntervalHours()),
		"interval_minutes":   formatFloat(r.IntervalMinutes()),
		"calculation_method": r.Method,
		"yesterday":          r.End.AddDate(0, 0, -1).Format(dateLayout),
		"last_week":          r.End.AddDate(0, 0, -7).Format(dateLayout),
		"last_month":         r.End.AddDate(0, 0, -30).Format(dateLayout),
		"execution_time":     r.End.Format(dateTimeLayout),
		"execution_date":     r.End.Format(dateLayout),
		"execution_hour":     r.End.Format("15"),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
