// Command migrate applies the SQL migrations under db/migrations against the
// database named by DATABASE_URL. The API server already migrates up on
// startup; this tool covers what that path cannot: stepping down, pinning a
// version, and clearing a dirty flag left by an interrupted deploy.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

type job struct {
	direction  string
	steps      int
	forceTo    int
	clearDirty bool
}

func parseFlags(args []string) (job, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	j := job{}
	fs.StringVar(&j.direction, "direction", "up", "up or down")
	fs.IntVar(&j.steps, "steps", 0, "number of migrations to apply (0 = all)")
	fs.IntVar(&j.forceTo, "force", -1, "pin the schema version without running migrations")
	fs.BoolVar(&j.clearDirty, "force-dirty", false, "re-pin a dirty database to its current version")
	if err := fs.Parse(args); err != nil {
		return job{}, err
	}
	if j.direction != "up" && j.direction != "down" {
		return job{}, fmt.Errorf("direction must be up or down, got %q", j.direction)
	}
	return j, nil
}

// migrator is the slice of *migrate.Migrate the CLI drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
}

func execute(j job, m migrator) (string, error) {
	if j.clearDirty {
		v, dirty, err := m.Version()
		if err != nil {
			return "", fmt.Errorf("read schema version: %w", err)
		}
		if !dirty {
			return "schema is clean, nothing to force", nil
		}
		if err := m.Force(int(v)); err != nil {
			return "", fmt.Errorf("clear dirty flag at version %d: %w", v, err)
		}
		return fmt.Sprintf("cleared dirty flag, schema pinned at version %d", v), nil
	}
	if j.forceTo >= 0 {
		if err := m.Force(j.forceTo); err != nil {
			return "", fmt.Errorf("pin schema version %d: %w", j.forceTo, err)
		}
		return fmt.Sprintf("schema pinned at version %d", j.forceTo), nil
	}

	var err error
	switch {
	case j.direction == "up" && j.steps > 0:
		err = m.Steps(j.steps)
	case j.direction == "down" && j.steps > 0:
		err = m.Steps(-j.steps)
	case j.direction == "up":
		err = m.Up()
	default:
		err = m.Down()
	}
	if err == migrate.ErrNoChange {
		return "schema already up to date", nil
	}
	if err != nil {
		return "", fmt.Errorf("migrate %s: %w", j.direction, err)
	}
	return fmt.Sprintf("migration %s complete", j.direction), nil
}

func main() {
	j, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to init migration driver: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	msg, err := execute(j, m)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(msg)
}
