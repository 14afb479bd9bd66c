package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benvon/voice-planner/internal/config"
	"github.com/benvon/voice-planner/internal/database"
	"github.com/benvon/voice-planner/internal/logger"
	"github.com/benvon/voice-planner/internal/queue"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/benvon/voice-planner/internal/scheduler"
	"github.com/benvon/voice-planner/internal/services/gcalendar"
	"github.com/benvon/voice-planner/internal/telemetry"
	"github.com/benvon/voice-planner/internal/workers"
	"go.uber.org/zap"
)

const (
	serviceName = "voice-planner-worker"

	maintenanceTimeout = 10 * time.Minute
	dlqGCInterval      = time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	noSchedule := flag.Bool("no-schedule", false, "Only consume jobs; do not run the daily routine schedule")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(serviceName, cfg.LogFormat, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.Bool("calendar_enabled", cfg.CalendarEnabled()),
		zap.Bool("schedule_enabled", !*noSchedule),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, _ := telemetry.Setup(ctx, cfg.OTELEnabled, serviceName, cfg.OTELEndpoint, cfg.OTELSampleRatio, zapLogger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	jobQueue, err := queue.Connect(ctx, cfg.RabbitMQURL, queue.DefaultConnectAttempts, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	routineRepo := database.NewRoutineRepository(db)
	planningRepo := database.NewPlanningRepository(db)
	userRepo := database.NewUserRepository(db)

	lifecycle := routines.NewLifecycle(routineRepo, zapLogger, routines.WithExpiringWindow(cfg.RoutineExpiringWindowDays))

	var publisher workers.CalendarPublisher
	if cfg.CalendarEnabled() {
		client, err := gcalendar.NewClientFromCredentialsFile(ctx, cfg.GoogleCalendarCredentials)
		if err != nil {
			zapLogger.Fatal("failed_to_create_calendar_client", zap.Error(err))
		}
		publisher = gcalendar.NewPublisher(client, planningRepo, cfg.GoogleCalendarID, cfg.GoogleCalendarRPS, zapLogger)
		zapLogger.Info("calendar_publishing_enabled", zap.String("calendar_id", cfg.GoogleCalendarID))
	}

	processor := workers.NewJobProcessor(lifecycle, publisher, jobQueue, zapLogger)

	if !*noSchedule {
		sched := scheduler.New(cfg.SchedulerLocation(), zapLogger)
		maintenance := workers.NewMaintenance(jobQueue, userRepo, zapLogger)
		if _, err := sched.ScheduleDaily("routine_sweep", cfg.RoutineSweepTime, maintenanceTimeout, maintenance.EnqueueSweep); err != nil {
			zapLogger.Fatal("failed_to_schedule_routine_sweep", zap.Error(err))
		}
		if _, err := sched.ScheduleDaily("routine_expiry_check", cfg.RoutineExpiryCheckTime, maintenanceTimeout, maintenance.EnqueueExpiryNotices); err != nil {
			zapLogger.Fatal("failed_to_schedule_expiry_check", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
		zapLogger.Info("routine_schedule_started",
			zap.String("sweep_time", cfg.RoutineSweepTime),
			zap.String("expiry_check_time", cfg.RoutineExpiryCheckTime),
			zap.String("timezone", cfg.SchedulerTimezone),
		)
	}

	dlqGC := queue.NewGarbageCollector(jobQueue, dlqGCInterval, cfg.DLQRetention, zapLogger)
	go func() {
		if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					return
				}
				job := msg.Job()
				if err := processor.ProcessJob(ctx, msg); err != nil {
					zapLogger.Error("failed_to_process_job",
						zap.String("job_id", job.ID.String()),
						zap.String("job_type", string(job.Type)),
						zap.Error(err),
					)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	zapLogger.Info("worker_shutting_down")

	cancel()
	wg.Wait()

	zapLogger.Info("worker_stopped")
}
