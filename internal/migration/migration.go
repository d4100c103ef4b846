package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	enrollmentdomain "github.com/smallbiznis/feeledger/internal/enrollment/domain"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	feeplandomain "github.com/smallbiznis/feeledger/internal/feeplan/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded Postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

// Models lists every table the ledger owns, in dependency order.
func Models() []any {
	return []any{
		&enrollmentdomain.Franchise{},
		&enrollmentdomain.Batch{},
		&enrollmentdomain.Enrollment{},
		&feeplandomain.FeePlan{},
		&feeplandomain.FeeTemplate{},
		&feedomain.StudentFeeAccount{},
		&feedomain.Installment{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate builds the schema from the models. It serves the dialects the
// SQL migrations do not cover.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
