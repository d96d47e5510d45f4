// Package sqlite archives charts in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/birthchart/internal/chart"
	"github.com/chrissnell/birthchart/internal/storage"
	"github.com/chrissnell/birthchart/pkg/migrate"
)

// Migrations holds the archive schema, applied by New.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationTable tracks the applied archive schema version.
const MigrationTable = "chart_migrations"

// Store is a storage.ChartStore backed by SQLite.
type Store struct {
	db     *sqlx.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

var _ storage.ChartStore = (*Store)(nil)

type summaryRow struct {
	ID          string  `db:"id"`
	Subject     string  `db:"subject"`
	JulianDay   float64 `db:"julian_day"`
	HouseSystem string  `db:"house_system"`
	CreatedAt   int64   `db:"created_at"`
}

// New opens (creating if needed) the database at path.
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	migrator := migrate.NewMigrator(db.DB, migrate.NewFSProvider(Migrations, "migrations", MigrationTable), logger)
	if err := migrator.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate chart schema: %w", err)
	}
	logger.Infof("chart archive ready at %s", path)
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// SaveChart stores c, replacing any chart with the same ID.
func (s *Store) SaveChart(ctx context.Context, c *chart.Chart) (string, error) {
	storage.Prepare(c, s.now())
	payload, err := storage.Encode(c)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO charts (id, subject, julian_day, house_system, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET subject = excluded.subject,
		    julian_day = excluded.julian_day, house_system = excluded.house_system,
		    payload = excluded.payload`,
		c.ID, c.Input.Subject, c.JulianDay, c.Input.HouseSystem.String(), c.CreatedAt.UnixNano(), payload)
	if err != nil {
		return "", fmt.Errorf("error saving chart %s: %w", c.ID, err)
	}
	s.logger.Debugf("saved chart %s (%d bytes)", c.ID, len(payload))
	return c.ID, nil
}

// GetChart loads the chart with the given ID.
func (s *Store) GetChart(ctx context.Context, id string) (*chart.Chart, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM charts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading chart %s: %w", id, err)
	}
	return storage.Decode(payload)
}

// ListCharts returns the newest charts first.
func (s *Store) ListCharts(ctx context.Context, opts storage.ListOptions) ([]storage.Summary, error) {
	query := `SELECT id, subject, julian_day, house_system, created_at FROM charts`
	args := []any{}
	if opts.Subject != "" {
		query += ` WHERE subject = ?`
		args = append(args, opts.Subject)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, opts.EffectiveLimit())

	var rows []summaryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error listing charts: %w", err)
	}
	out := make([]storage.Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, storage.Summary{
			ID:          r.ID,
			Subject:     r.Subject,
			JulianDay:   r.JulianDay,
			HouseSystem: r.HouseSystem,
			CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
		})
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
