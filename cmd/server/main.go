package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/config"
	v1 "github.com/dmehra2102/prod-golang-projects/carequeue/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/queue"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/realtime"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/repository"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/service"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	collector := metrics.NewCollector("carequeue")
	if err := database.Observe(db, func(operation, table string, elapsed time.Duration) {
		collector.DBQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
	}); err != nil {
		return err
	}
	go reportDBStats(db, collector)

	apptRepo := repository.NewAppointmentRepo(db)
	doctorRepo := repository.NewDoctorRepo(db)
	profileRepo := repository.NewHealthProfileRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	hub := realtime.NewHub(cfg.Queue.PushBufferSize, log.Named("hub"))
	hub.OnDrop(collector.WSDroppedPushes.Inc)
	hub.OnDisconnect(collector.WSConnections.Dec)
	hub.OnSend(func(eventType string) {
		collector.WSEventsSentTotal.WithLabelValues(eventType).Inc()
	})
	dispatcher := realtime.NewDispatcher(hub)

	mat := queue.NewMaterializer(apptRepo, profileRepo, doctorRepo,
		cfg.Queue.DefaultConsultationMins, log.Named("materializer"))
	mat.OnMaterialize(func(d time.Duration) {
		collector.MaterializationsTotal.Inc()
		collector.MaterializeDuration.Observe(d.Seconds())
	})
	mat.OnSkip(collector.ScoringSkippedTotal.Inc)

	auditSvc := service.NewAuditService(auditRepo, log.Named("audit"))
	auditSvc.OnEnqueue(collector.AuditEntriesTotal.Inc)
	auditSvc.OnDrop(collector.AuditBufferDropped.Inc)
	defer auditSvc.Shutdown()

	queueSvc := service.NewQueueService(apptRepo, profileRepo, doctorRepo,
		mat, dispatcher, auditSvc, cfg.Queue.EmergencySearchDays, log.Named("queue"))
	intakeSvc := service.NewIntakeService(profileRepo, queueSvc, auditSvc, log.Named("intake"))

	jwtManager := auth.NewJWTManager(cfg.JWT)

	router := v1.NewRouter(v1.RouterDeps{
		Cfg:        cfg,
		JWTManager: jwtManager,
		Collector:  collector,
		Queue:      v1.NewQueueHandler(queueSvc, collector),
		Intake:     v1.NewIntakeHandler(intakeSvc),
		WS:         v1.NewWSHandler(hub, jwtManager, collector, cfg.Queue, log.Named("ws")),
		Log:        log.Named("http"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Environment),
			zap.String("version", cfg.App.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}

// reportDBStats samples the connection pool into the gauge every 15s.
func reportDBStats(db *gorm.DB, collector *metrics.Collector) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		collector.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
	}
}
