package main

import (
	"log"
	"time"

	"github.com/reportengine/internal/api"
	"github.com/reportengine/internal/config"
	"github.com/reportengine/internal/database"
	"github.com/reportengine/internal/datasource"
	"github.com/reportengine/internal/delivery"
	"github.com/reportengine/internal/executor"
	"github.com/reportengine/internal/health"
	"github.com/reportengine/internal/logging"
	"github.com/reportengine/internal/models"
	"github.com/reportengine/internal/scheduler"
	"github.com/reportengine/internal/store"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()

	logger := logging.New(cfg.Log.Level, cfg.Log.File)

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	st := store.NewGormStore(database.GetDB())

	if err := executor.EnsureOutputRoot(cfg.Output.Path); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// Register query adapters
	sources := datasource.NewRegistry()
	sources.Register(models.DatasourceMySQL, datasource.NewMySQLAdapter())

	// Register delivery adapters
	deliverers := delivery.NewRegistry()
	deliverers.Register(models.DeliveryEmail, delivery.NewEmailAdapter(delivery.SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		From:     cfg.Mail.From,
		Password: cfg.Mail.Password,
	}))
	deliverers.Register(models.DeliverySlack, delivery.NewSlackAdapter())
	deliverers.Register(models.DeliveryWebhook, delivery.NewWebhookAdapter())
	deliverers.Register(models.DeliverySFTP, delivery.NewSFTPAdapter())

	// Initialize the execution pipeline
	admission := executor.NewAdmission(
		cfg.Execution.MaxConcurrent,
		time.Duration(cfg.Execution.AdmissionWaitSeconds)*time.Second,
	)
	retry := delivery.NewRetryEngine(st, logger)
	orchestrator := executor.NewOrchestrator(
		st, st, sources, deliverers, retry, admission,
		cfg.Output.Path, logger,
	)

	// Initialize the scheduler and register the current schedule set
	sched := scheduler.NewManager(st, orchestrator, cfg.Scheduler.Timezone, cfg.Scheduler.SkipOverlapping, logger)
	if err := sched.Reload(); err != nil {
		log.Fatalf("Failed to load schedules: %v", err)
	}
	if cfg.Scheduler.Enabled {
		sched.Start()
		defer sched.Stop()
	}

	monitor := health.NewMonitor(st, sched, admission)

	// Initialize and start API server
	server := api.NewServer(orchestrator, sched, monitor, st)
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
