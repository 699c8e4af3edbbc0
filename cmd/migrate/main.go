// Command migrate applies or reverts the pipeline's Postgres schema,
// following the teacher's cmd/migrate flag shape (-dsn/-migrations/-direction)
// but driving golang-migrate's library instead of hand-splitting SQL files.
package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/shelfmark/productpipeline/internal/config"
)

func main() {
	var (
		dsn           string
		migrationsDir string
		direction     string
		steps         int
	)
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL connection string (defaults to DATABASE_* env vars)")
	flag.StringVar(&migrationsDir, "migrations", "migrations", "directory containing *.up.sql/*.down.sql migration files")
	flag.StringVar(&direction, "direction", "up", "migration direction: up, down, or steps")
	flag.IntVar(&steps, "steps", 0, "when -direction=steps, how many versions to move (negative reverts)")
	flag.Parse()

	if dsn == "" {
		cfg, err := config.Load("")
		if err != nil {
			log.Fatalf("loading config for DSN: %v", err)
		}
		dsn = cfg.Database.URL()
	}

	m, err := migrate.New("file://"+migrationsDir, dsn)
	if err != nil {
		log.Fatalf("initializing migrator: %v", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Printf("closing migration source: %v", srcErr)
		}
		if dbErr != nil {
			log.Printf("closing migration database: %v", dbErr)
		}
	}()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = m.Steps(steps)
	default:
		log.Fatalf("unknown -direction %q (want up, down, or steps)", direction)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration failed: %v", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		log.Fatalf("reading schema version: %v", verr)
	}
	log.Printf("schema now at version %d (dirty=%v)", version, dirty)
	os.Exit(0)
}
