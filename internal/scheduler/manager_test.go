package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/store"
)

type fakeScheduleStore struct {
	mu        sync.Mutex
	schedules map[uint]*models.ReportSchedule
	listErr   error
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{schedules: map[uint]*models.ReportSchedule{}}
}

func (s *fakeScheduleStore) add(id, configID uint, spec, tz string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := &models.ReportSchedule{ConfigID: configID, CronExpression: spec, Timezone: tz, IsActive: true}
	sc.ID = id
	s.schedules[id] = sc
}

func (s *fakeScheduleStore) remove(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, id)
}

func (s *fakeScheduleStore) GetConfig(uint) (*models.ReportConfig, error) {
	return nil, store.ErrConfigNotFound
}

func (s *fakeScheduleStore) GetDatasource(uint) (*models.ReportDatasource, error) {
	return nil, store.ErrDatasourceNotFound
}

func (s *fakeScheduleStore) GetSchedule(id uint) (*models.ReportSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return nil, store.ErrScheduleNotFound
	}
	cp := *sc
	return &cp, nil
}

func (s *fakeScheduleStore) ListActiveSchedules() ([]models.ReportSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ReportSchedule
	for _, sc := range s.schedules {
		if sc.IsActive {
			out = append(out, *sc)
		}
	}
	return out, nil
}

func (s *fakeScheduleStore) ListActiveDeliveries(uint) ([]models.ReportDelivery, error) {
	return nil, nil
}

func (s *fakeScheduleStore) ListActiveRecipients(uint) ([]models.ReportDeliveryRecipient, error) {
	return nil, nil
}

func (s *fakeScheduleStore) AdvanceLastRun(uint, time.Time) error { return nil }

type fakeRunner struct {
	mu       sync.Mutex
	executed []uint
	inFlight map[uint]int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{inFlight: map[uint]int{}}
}

func (r *fakeRunner) Execute(_ context.Context, configID uint, scheduleID *uint, _ string) (*models.ReportExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, *scheduleID)
	return &models.ReportExecution{ID: "exec-1", ConfigID: configID, ScheduleID: scheduleID, Status: models.ExecutionCompleted}, nil
}

func (r *fakeRunner) Submit(_ context.Context, configID uint, scheduleID *uint, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, *scheduleID)
	return "exec-async", nil
}

func (r *fakeRunner) InFlight(scheduleID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[scheduleID]
}

func (r *fakeRunner) calls() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.executed...)
}

func newTestManager(t *testing.T, skipOverlapping bool) (*Manager, *fakeScheduleStore, *fakeRunner) {
	t.Helper()
	schedules := newFakeScheduleStore()
	runner := newFakeRunner()
	m := NewManager(schedules, runner, "UTC", skipOverlapping, zerolog.Nop())
	return m, schedules, runner
}

func TestReloadRegistersActiveSchedules(t *testing.T) {
	t.Parallel()

	m, schedules, _ := newTestManager(t, false)
	schedules.add(1, 10, "0 */6 * * *", "UTC")
	schedules.add(2, 20, "30 2 * * *", "Asia/Jakarta")

	require.NoError(t, m.Reload())

	jobs := m.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, uint(1), jobs[0].ScheduleID)
	require.Equal(t, "0 */6 * * *", jobs[0].Spec)
	require.Equal(t, uint(2), jobs[1].ScheduleID)
	require.Equal(t, "Asia/Jakarta", jobs[1].Timezone)
}

func TestReloadIsIdempotent(t *testing.T) {
	t.Parallel()

	m, schedules, _ := newTestManager(t, false)
	schedules.add(1, 10, "0 */6 * * *", "UTC")

	require.NoError(t, m.Reload())
	require.NoError(t, m.Reload())
	require.Len(t, m.Jobs(), 1)
}

func TestReloadRemovesVanishedSchedule(t *testing.T) {
	t.Parallel()

	m, schedules, _ := newTestManager(t, false)
	schedules.add(1, 10, "0 */6 * * *", "UTC")
	schedules.add(2, 20, "30 2 * * *", "UTC")
	require.NoError(t, m.Reload())

	schedules.remove(2)
	require.NoError(t, m.Reload())

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, uint(1), jobs[0].ScheduleID)
}

func TestReloadReplacesChangedExpression(t *testing.T) {
	t.Parallel()

	m, schedules, _ := newTestManager(t, false)
	schedules.add(1, 10, "0 */6 * * *", "UTC")
	require.NoError(t, m.Reload())

	schedules.add(1, 10, "*/15 * * * *", "UTC")
	require.NoError(t, m.Reload())

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, "*/15 * * * *", jobs[0].Spec)
}

func TestReloadSkipsInvalidExpression(t *testing.T) {
	t.Parallel()

	m, schedules, _ := newTestManager(t, false)
	schedules.add(1, 10, "0 */6 * * *", "UTC")
	schedules.add(2, 20, "every now and then", "UTC")

	require.NoError(t, m.Reload())

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, uint(1), jobs[0].ScheduleID)
}

func TestReloadFetchFailureKeepsPriorSet(t *testing.T) {
	t.Parallel()

	m, schedules, _ := newTestManager(t, false)
	schedules.add(1, 10, "0 */6 * * *", "UTC")
	require.NoError(t, m.Reload())

	schedules.listErr = errors.New("database gone")
	require.Error(t, m.Reload())
	require.Len(t, m.Jobs(), 1)
}

func TestFireRunsSchedule(t *testing.T) {
	t.Parallel()

	m, _, runner := newTestManager(t, false)
	m.fire(5, 50)

	require.Equal(t, []uint{5}, runner.calls())
}

func TestFireSkipsOverlappingWhenConfigured(t *testing.T) {
	t.Parallel()

	m, _, runner := newTestManager(t, true)
	runner.inFlight[5] = 1

	m.fire(5, 50)
	require.Empty(t, runner.calls())

	runner.inFlight[5] = 0
	m.fire(5, 50)
	require.Equal(t, []uint{5}, runner.calls())
}

func TestFireAllowsOverlapByDefault(t *testing.T) {
	t.Parallel()

	m, _, runner := newTestManager(t, false)
	runner.inFlight[5] = 1

	m.fire(5, 50)
	require.Equal(t, []uint{5}, runner.calls())
}

func TestTriggerSchedule(t *testing.T) {
	t.Parallel()

	m, schedules, runner := newTestManager(t, false)
	schedules.add(7, 70, "0 */6 * * *", "UTC")

	id, err := m.TriggerSchedule(context.Background(), 7, "arif")
	require.NoError(t, err)
	require.Equal(t, "exec-async", id)
	require.Equal(t, []uint{7}, runner.calls())
}

func TestTriggerScheduleUnknown(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, false)

	_, err := m.TriggerSchedule(context.Background(), 99, "arif")
	require.ErrorIs(t, err, store.ErrScheduleNotFound)
}
