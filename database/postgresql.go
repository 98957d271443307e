package database

import (
	"DentalClinic/models"
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported values of DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// InitDB opens one tenant database, configures its pool and migrates it.
func InitDB(ctx context.Context, driver, dsn string, development bool) (*gorm.DB, error) {
	// Configure logging level based on environment
	logMode := logger.Silent
	if development {
		logMode = logger.Info
	}

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	// sqlite runs on a single connection; preparing outside a transaction would wait on it
	prepareStmt := !strings.EqualFold(driver, DriverSQLite)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: false,
		PrepareStmt:                              prepareStmt,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database connection")
	}

	if err := configureConnectionPool(db, driver); err != nil {
		return nil, err
	}

	if err := testDatabaseConnection(ctx, db); err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return db, nil
}

// configureConnectionPool sets up the connection pool settings for the database.
func configureConnectionPool(db *gorm.DB, driver string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB from GORM")
	}
	if strings.EqualFold(driver, DriverSQLite) {
		// sqlite serializes writers; one connection keeps transactions from failing with SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	sqlDB.SetMaxOpenConns(40)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	return nil
}

// testDatabaseConnection verifies that the database connection is functional.
func testDatabaseConnection(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB from GORM")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to ping database")
	}
	return nil
}

// RunMigrations performs database schema migrations.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ClinicSettings{},
		&models.Medic{},
		&models.Patient{},
		&models.Treatment{},
		&models.WorkingHours{},
		&models.DayOff{},
		&models.AvailabilitySlot{},
		&models.ClinicAvailability{},
		&models.Appointment{},
		&models.AppointmentTreatment{},
		&models.PatientRequest{},
		&models.IDCounter{},
	)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB from GORM")
	}
	return sqlDB.Close()
}
