package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
	jobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	dispatchdomain "github.com/smallbiznis/orderbridge/internal/dispatch/domain"
	ledgerdomain "github.com/smallbiznis/orderbridge/internal/eventledger/domain"
	matchingdomain "github.com/smallbiznis/orderbridge/internal/matching/domain"
	settingsdomain "github.com/smallbiznis/orderbridge/internal/settings/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres schema.
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
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table the worker reads or writes.
func Models() []any {
	return []any{
		&credentialdomain.Credential{},
		&ledgerdomain.Entry{},
		&jobdomain.Category{},
		&jobdomain.Job{},
		&jobdomain.Place{},
		&jobdomain.Bill{},
		&matchingdomain.Driver{},
		&matchingdomain.Location{},
		&matchingdomain.Allocation{},
		&dispatchdomain.Offer{},
		&settingsdomain.Setting{},
	}
}

// AutoMigrate creates the schema from the gorm models. It backs the sqlite
// and mysql dialects, which the embedded SQL does not target.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
