package database

import (
	"errors"

	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type PgPomochatRepository struct {
	conn *sql.DB
	dsn  string
}

func NewPgPomochatRepository(dsn string) (*PgPomochatRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgPomochatRepository{conn: db, dsn: dsn}, nil
}

func (db *PgPomochatRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgPomochatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Migrate applies any pending schema migrations from sourceURL, e.g.
// "file://internal/database/migrations".
func (db *PgPomochatRepository) Migrate(sourceURL string) error {
	driver, err := postgres.WithInstance(db.conn, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
