// Package scheduler keeps the cron runtime in sync with the schedule table
// and fires executions through the orchestrator.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/store"
)

// Runner is the orchestrator surface the scheduler drives.
type Runner interface {
	Execute(ctx context.Context, configID uint, scheduleID *uint, executedBy string) (*models.ReportExecution, error)
	Submit(ctx context.Context, configID uint, scheduleID *uint, executedBy string) (string, error)
	InFlight(scheduleID uint) int
}

// entry is the registered shape of one schedule. A registration is replaced
// only when the expression or timezone changed.
type entry struct {
	cronID   cron.EntryID
	configID uint
	spec     string
	timezone string
}

// JobInfo describes one registered schedule for health and CLI listings.
type JobInfo struct {
	ScheduleID uint      `json:"schedule_id"`
	ConfigID   uint      `json:"config_id"`
	Spec       string    `json:"cron_expression"`
	Timezone   string    `json:"timezone"`
	NextRun    time.Time `json:"next_run"`
	PrevRun    time.Time `json:"prev_run,omitempty"`
	InFlight   int       `json:"in_flight"`
}

// Manager owns the cron runtime. Reload reconciles the registered set
// against the database without restarting the process.
type Manager struct {
	configs store.ConfigStore
	runner  Runner
	log     zerolog.Logger

	skipOverlapping bool

	cron *cron.Cron

	mu      sync.Mutex
	entries map[uint]entry
}

func NewManager(configs store.ConfigStore, runner Runner, timezone string, skipOverlapping bool, log zerolog.Logger) *Manager {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Warn().Str("timezone", timezone).Msg("unknown scheduler timezone, using UTC")
		loc = time.UTC
	}
	return &Manager{
		configs:         configs,
		runner:          runner,
		log:             log,
		skipOverlapping: skipOverlapping,
		cron:            cron.New(cron.WithLocation(loc)),
		entries:         make(map[uint]entry),
	}
}

// Start begins firing registered schedules.
func (m *Manager) Start() { m.cron.Start() }

// Stop halts the cron runtime and waits for in-flight firings to hand off.
func (m *Manager) Stop() context.Context { return m.cron.Stop() }

// Reload reconciles the registered cron set against the active schedules in
// the database. Unchanged registrations are left alone, changed ones are
// replaced, vanished ones are removed. A fetch failure aborts the whole
// reload and keeps the previous set intact; a single unparseable expression
// only skips that schedule.
func (m *Manager) Reload() error {
	schedules, err := m.configs.ListActiveSchedules()
	if err != nil {
		return fmt.Errorf("failed to load active schedules: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uint]bool, len(schedules))
	added, replaced, removed := 0, 0, 0

	for i := range schedules {
		s := &schedules[i]
		seen[s.ID] = true

		cur, ok := m.entries[s.ID]
		if ok && cur.spec == s.CronExpression && cur.timezone == s.Timezone && cur.configID == s.ConfigID {
			continue
		}

		spec := s.CronExpression
		if s.Timezone != "" {
			spec = fmt.Sprintf("CRON_TZ=%s %s", s.Timezone, s.CronExpression)
		}
		scheduleID, configID := s.ID, s.ConfigID
		cronID, err := m.cron.AddFunc(spec, func() {
			m.fire(scheduleID, configID)
		})
		if err != nil {
			m.log.Error().Err(err).
				Uint("schedule_id", s.ID).
				Str("cron", s.CronExpression).
				Msg("skipping schedule with invalid cron expression")
			continue
		}

		if ok {
			m.cron.Remove(cur.cronID)
			replaced++
		} else {
			added++
		}
		m.entries[s.ID] = entry{cronID: cronID, configID: s.ConfigID, spec: s.CronExpression, timezone: s.Timezone}
	}

	for id, cur := range m.entries {
		if !seen[id] {
			m.cron.Remove(cur.cronID)
			delete(m.entries, id)
			removed++
		}
	}

	m.log.Info().
		Int("registered", len(m.entries)).
		Int("added", added).
		Int("replaced", replaced).
		Int("removed", removed).
		Msg("schedule reconciliation completed")
	return nil
}

// fire runs one scheduled execution. Overlap suppression is opt-in; by
// default concurrent firings of the same schedule are allowed and admission
// arbitrates them.
func (m *Manager) fire(scheduleID, configID uint) {
	if m.skipOverlapping && m.runner.InFlight(scheduleID) > 0 {
		m.log.Warn().
			Uint("schedule_id", scheduleID).
			Msg("previous firing still running, skipping this one")
		return
	}

	exec, err := m.runner.Execute(context.Background(), configID, &scheduleID, "scheduler")
	if err != nil {
		m.log.Error().Err(err).
			Uint("schedule_id", scheduleID).
			Uint("config_id", configID).
			Msg("scheduled execution was not admitted")
		return
	}
	m.log.Info().
		Uint("schedule_id", scheduleID).
		Str("execution_id", exec.ID).
		Str("status", string(exec.Status)).
		Msg("scheduled execution finished")
}

// TriggerSchedule starts the schedule's report out of band and returns the
// execution id. The firing carries the schedule identity, so its time window
// and last_run_at bookkeeping behave exactly like a cron firing.
func (m *Manager) TriggerSchedule(ctx context.Context, scheduleID uint, executedBy string) (string, error) {
	schedule, err := m.configs.GetSchedule(scheduleID)
	if err != nil {
		return "", err
	}
	return m.runner.Submit(ctx, schedule.ConfigID, &schedule.ID, executedBy)
}

// Jobs lists the registered schedules sorted by schedule id.
func (m *Manager) Jobs() []JobInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]JobInfo, 0, len(m.entries))
	for id, e := range m.entries {
		ce := m.cron.Entry(e.cronID)
		out = append(out, JobInfo{
			ScheduleID: id,
			ConfigID:   e.configID,
			Spec:       e.spec,
			Timezone:   e.timezone,
			NextRun:    ce.Next,
			PrevRun:    ce.Prev,
			InFlight:   m.runner.InFlight(id),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduleID < out[j].ScheduleID })
	return out
}
