// Package health produces the runtime snapshot served by the API and CLI.
package health

import (
	"time"

	"github.com/reportengine/internal/executor"
	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/scheduler"
	"github.com/reportengine/internal/store"
)

type Snapshot struct {
	Status            string              `json:"status"`
	UptimeSeconds     int64               `json:"uptime_seconds"`
	RunningExecutions int64               `json:"running_executions"`
	SlotsInUse        int                 `json:"slots_in_use"`
	SlotsCapacity     int                 `json:"slots_capacity"`
	RegisteredJobs    int                 `json:"registered_jobs"`
	Jobs              []scheduler.JobInfo `json:"jobs"`
	CheckedAt         time.Time           `json:"checked_at"`
}

type Monitor struct {
	execs     store.ExecutionStore
	scheduler *scheduler.Manager
	admission *executor.Admission
	startedAt time.Time
}

func NewMonitor(execs store.ExecutionStore, sched *scheduler.Manager, admission *executor.Admission) *Monitor {
	return &Monitor{
		execs:     execs,
		scheduler: sched,
		admission: admission,
		startedAt: time.Now(),
	}
}

// Snapshot reports degraded instead of failing when the execution store is
// unreachable, so the endpoint stays useful during database trouble.
func (m *Monitor) Snapshot() *Snapshot {
	now := time.Now()
	s := &Snapshot{
		Status:        "ok",
		UptimeSeconds: int64(now.Sub(m.startedAt).Seconds()),
		SlotsInUse:    m.admission.InUse(),
		SlotsCapacity: m.admission.Capacity(),
		CheckedAt:     now,
	}

	running, err := m.execs.CountByStatus(models.ExecutionRunning)
	if err != nil {
		s.Status = "degraded"
	} else {
		s.RunningExecutions = running
	}

	jobs := m.scheduler.Jobs()
	s.Jobs = jobs
	s.RegisteredJobs = len(jobs)
	return s
}
