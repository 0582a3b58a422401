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
	_ "github.com/lib/pq"
)

func main() {
	upCmd := flag.Bool("up", false, "Apply all pending migrations")
	downCmd := flag.Bool("down", false, "Roll back all migrations")
	stepsCmd := flag.Int("steps", 0, "Apply +/- N steps")
	src := flag.String("path", "db/migrations", "Migrations directory")
	flag.Parse()

	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	sslmode := envOr("DB_SSLMODE", "disable")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Migrate driver error: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+*src, "postgres", driver)
	if err != nil {
		log.Fatalf("Migrate init error: %v", err)
	}

	switch {
	case *upCmd:
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied.")
	case *downCmd:
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Migrations rolled back.")
	case *stepsCmd != 0:
		if err := m.Steps(*stepsCmd); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Migration steps failed: %v", err)
		}
		log.Printf("Applied %d step(s).", *stepsCmd)
	default:
		version, dirty, err := m.Version()
		if err != nil {
			log.Println("No schema version found (empty database?). Use -up, -down or -steps.")
			return
		}
		log.Printf("Schema version %d (dirty=%v). Use -up, -down or -steps.", version, dirty)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
