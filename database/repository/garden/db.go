package gardenRepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DB struct {
	*sqlx.DB
}

// NewDB opens the garden database and checks the connection.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open garden database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping garden database: %w", err)
	}
	return &DB{conn}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS garden_bookings (
	id           TEXT PRIMARY KEY,
	client_id    TEXT NOT NULL,
	client_name  TEXT NOT NULL DEFAULT '',
	subject_id   TEXT NOT NULL DEFAULT '',
	subject_name TEXT NOT NULL DEFAULT '',
	start_at     TIMESTAMPTZ NOT NULL,
	end_at       TIMESTAMPTZ NOT NULL,
	status       TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS garden_bookings_start_at_idx ON garden_bookings (start_at);
`

// EnsureSchema creates the garden table when it does not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create garden schema: %w", err)
	}
	return nil
}
