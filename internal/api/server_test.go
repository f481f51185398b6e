package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reportengine/internal/datasource"
	"github.com/reportengine/internal/delivery"
	"github.com/reportengine/internal/executor"
	"github.com/reportengine/internal/health"
	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/scheduler"
	"github.com/reportengine/internal/store"
)

type stubSource struct{}

func (stubSource) Run(context.Context, *models.ReportDatasource, string, time.Duration, int) (*datasource.Result, error) {
	return &datasource.Result{Columns: []string{"id"}, Rows: [][]string{{"1"}}}, nil
}

type testEnv struct {
	server *Server
	store  *store.GormStore
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ReportDatasource{},
		&models.ReportConfig{},
		&models.ReportSchedule{},
		&models.ReportDelivery{},
		&models.ReportDeliveryRecipient{},
		&models.ReportExecution{},
		&models.ReportDeliveryLog{},
	))

	st := store.NewGormStore(db)

	sources := datasource.NewRegistry()
	sources.Register(models.DatasourceMySQL, stubSource{})

	orch := executor.NewOrchestrator(
		st, st, sources, delivery.NewRegistry(),
		delivery.NewRetryEngine(st, zerolog.Nop()),
		executor.NewAdmission(2, time.Second),
		t.TempDir(), zerolog.Nop(),
	)
	sched := scheduler.NewManager(st, orch, "UTC", false, zerolog.Nop())
	monitor := health.NewMonitor(st, sched, orch.Admission())

	return &testEnv{
		server: NewServer(orch, sched, monitor, st),
		store:  st,
		db:     db,
	}
}

func (e *testEnv) seedConfig(t *testing.T) *models.ReportConfig {
	t.Helper()
	ds := &models.ReportDatasource{Name: "warehouse", Kind: models.DatasourceMySQL, ConnectionURL: "dsn", IsActive: true}
	require.NoError(t, e.db.Create(ds).Error)
	cfg := &models.ReportConfig{
		ReportName:   "Daily Transactions",
		ReportQuery:  "SELECT * FROM trx WHERE created_at >= '{{start_datetime}}'",
		OutputFormat: models.FormatCSV,
		DatasourceID: ds.ID,
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(cfg).Error)
	return cfg
}

func (e *testEnv) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)

	body := map[string]interface{}{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestExecuteConfigEndpoint(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.seedConfig(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/configs/"+itoa(cfg.ID)+"/execute")
	require.Equal(t, http.StatusAccepted, rec.Code)
	executionID, _ := body["execution_id"].(string)
	require.NotEmpty(t, executionID)

	require.Eventually(t, func() bool {
		exec, err := env.store.GetExecution(executionID)
		return err == nil && exec.Status.Terminal()
	}, 3*time.Second, 20*time.Millisecond)

	rec, body = env.do(t, http.MethodGet, "/api/v1/executions/"+executionID)
	require.Equal(t, http.StatusOK, rec.Code)
	exec, _ := body["execution"].(map[string]interface{})
	require.Equal(t, string(models.ExecutionCompleted), exec["status"])
}

func TestExecuteConfigInvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/configs/abc/execute")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetExecutionNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/executions/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelUnknownExecutionConflicts(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/executions/nope/cancel")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerUnknownSchedule(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/schedules/99/trigger")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReloadAndListJobs(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.seedConfig(t)
	sched := &models.ReportSchedule{ConfigID: cfg.ID, CronExpression: "0 */6 * * *", Timezone: "UTC", IsActive: true}
	require.NoError(t, env.db.Create(sched).Error)

	rec, body := env.do(t, http.MethodPost, "/api/v1/schedules/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs, _ := body["jobs"].([]interface{})
	require.Len(t, jobs, 1)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []scheduler.JobInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, sched.ID, listed[0].ScheduleID)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
