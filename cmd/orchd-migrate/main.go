// Command orchd-migrate applies and rolls back the SQL migrations under
// store/pgxv5/migrations against a Postgres database, using
// golang-migrate. It is a thin wrapper: all the actual schema lives in
// store/pgxv5/migrations, this command just drives golang-migrate's
// *migrate.Migrate over it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("orchd-migrate failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("orchd-migrate", flag.ExitOnError)
	dbURL := fs.String("database-url", os.Getenv("ORCHD_DATABASE_URL"), "Postgres connection string (default: $ORCHD_DATABASE_URL)")
	migrationsDir := fs.String("migrations-dir", "store/pgxv5/migrations", "directory of golang-migrate SQL files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dbURL == "" {
		return errors.New("orchd-migrate: -database-url or ORCHD_DATABASE_URL is required")
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("orchd-migrate: expected a subcommand: up, down, version, force <version>, goto <version>, drop")
	}

	m, err := migrate.New("file://"+*migrationsDir, *dbURL)
	if err != nil {
		return fmt.Errorf("orchd-migrate: create migrator: %w", err)
	}
	defer m.Close()

	switch rest[0] {
	case "up":
		return runUp(m)
	case "down":
		return runDown(m, rest[1:])
	case "version":
		return runVersion(m)
	case "force":
		return runForce(m, rest[1:])
	case "goto":
		return runGoto(m, rest[1:])
	case "drop":
		return m.Drop()
	default:
		return fmt.Errorf("orchd-migrate: unknown subcommand %q", rest[0])
	}
}

func runUp(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	v, dirty, _ := m.Version()
	slog.Info("migration complete", "version", v, "dirty", dirty)
	return nil
}

func runDown(m *migrate.Migrate, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q: %w", args[0], err)
		}
		steps = n
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	v, dirty, _ := m.Version()
	slog.Info("rollback complete", "version", v, "dirty", dirty)
	return nil
}

func runVersion(m *migrate.Migrate) error {
	v, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}
	fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	return nil
}

func runForce(m *migrate.Migrate, args []string) error {
	if len(args) != 1 {
		return errors.New("orchd-migrate: force requires a version argument")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	slog.Info("forced version", "version", version)
	return nil
}

func runGoto(m *migrate.Migrate, args []string) error {
	if len(args) != 1 {
		return errors.New("orchd-migrate: goto requires a version argument")
	}
	version, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate goto: %w", err)
	}
	slog.Info("migrated to version", "version", version)
	return nil
}
