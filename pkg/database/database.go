package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain/healthprofile"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:          true,
		DisableAutomaticPing: false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

const queryStartKey = "carequeue:query_start"

// Observe registers gorm callbacks that report the latency of every query to
// fn along with the operation kind and target table.
func Observe(db *gorm.DB, fn func(operation, table string, elapsed time.Duration)) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "raw"
			}
			fn(operation, table, time.Since(start))
		}
	}

	var firstErr error
	check := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	check(db.Callback().Create().Before("gorm:create").Register("metrics:before_create", before))
	check(db.Callback().Create().After("gorm:create").Register("metrics:after_create", after("create")))
	check(db.Callback().Query().Before("gorm:query").Register("metrics:before_query", before))
	check(db.Callback().Query().After("gorm:query").Register("metrics:after_query", after("query")))
	check(db.Callback().Update().Before("gorm:update").Register("metrics:before_update", before))
	check(db.Callback().Update().After("gorm:update").Register("metrics:after_update", after("update")))
	check(db.Callback().Delete().Before("gorm:delete").Register("metrics:before_delete", before))
	check(db.Callback().Delete().After("gorm:delete").Register("metrics:after_delete", after("delete")))
	check(db.Callback().Row().Before("gorm:row").Register("metrics:before_row", before))
	check(db.Callback().Row().After("gorm:row").Register("metrics:after_row", after("row")))
	check(db.Callback().Raw().Before("gorm:raw").Register("metrics:before_raw", before))
	check(db.Callback().Raw().After("gorm:raw").Register("metrics:after_raw", after("raw")))

	if firstErr != nil {
		return fmt.Errorf("registering query callbacks: %w", firstErr)
	}
	return nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	schemas := []string{"clinical", "audit"} // logical namespace
	for _, schema := range schemas {
		if err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)).Error; err != nil {
			return fmt.Errorf("creating schema %s: %w", schema, err)
		}
	}

	models := []any{
		&domain.AuditLog{},
		&doctor.Doctor{},
		&healthprofile.HealthProfile{},
		&appointment.Appointment{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		// The materializer's hot path: active appointments for one doctor-day.
		{
			name:  "idx_appointments_doctor_day_active",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_doctor_day_active ON clinical.appointments (doctor_id, slot_date, token_number) WHERE deleted_at IS NULL AND status = 'booked'`,
		},
		{
			name:  "idx_appointments_patient_active",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_patient_active ON clinical.appointments (patient_id) WHERE deleted_at IS NULL AND status = 'booked'`,
		},
		{
			name:  "idx_appointments_slot",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_slot ON clinical.appointments (doctor_id, slot_date, slot_time) WHERE deleted_at IS NULL AND status = 'booked'`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}

	return nil
}
