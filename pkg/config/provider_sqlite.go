package config

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/birthchart/pkg/migrate"
)

// Migrations holds the configuration schema, applied by NewSQLiteProvider.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationTable tracks the applied configuration schema version.
const MigrationTable = "config_migrations"

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens dbPath and creates the configuration tables if
// they do not exist yet.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(Migrations, "migrations", MigrationTable), nil)
	if err := migrator.MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	eph, err := s.GetEphemerisConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ephemeris config: %w", err)
	}
	config.Ephemeris = *eph

	subjects, err := s.GetSubjects()
	if err != nil {
		return nil, fmt.Errorf("failed to load subjects: %w", err)
	}
	config.Subjects = subjects

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	server, err := s.GetServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	config.Server = *server

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetEphemerisConfig returns the ephemeris row, or zero values if unset
func (s *SQLiteProvider) GetEphemerisConfig() (*EphemerisData, error) {
	var path, hsys sql.NullString
	var orb sql.NullFloat64

	err := s.db.QueryRow(`SELECT path, house_system, orb FROM ephemeris_config WHERE id = 1`).
		Scan(&path, &hsys, &orb)
	if errors.Is(err, sql.ErrNoRows) {
		return &EphemerisData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ephemeris config: %w", err)
	}
	return &EphemerisData{Path: path.String, HouseSystem: hsys.String, Orb: orb.Float64}, nil
}

// SetEphemerisConfig replaces the ephemeris row
func (s *SQLiteProvider) SetEphemerisConfig(e *EphemerisData) error {
	_, err := s.db.Exec(`
		INSERT INTO ephemeris_config (id, path, house_system, orb) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET path = excluded.path,
		    house_system = excluded.house_system, orb = excluded.orb`,
		e.Path, e.HouseSystem, e.Orb)
	if err != nil {
		return fmt.Errorf("failed to save ephemeris config: %w", err)
	}
	return nil
}

// GetSubjects returns all subjects ordered by name
func (s *SQLiteProvider) GetSubjects() ([]SubjectData, error) {
	rows, err := s.db.Query(`
		SELECT name, year, month, day, hour, calendar, latitude, longitude, house_system
		FROM subjects
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []SubjectData
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, *subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subjects: %w", err)
	}
	return subjects, nil
}

// GetSubject returns the subject called name
func (s *SQLiteProvider) GetSubject(name string) (*SubjectData, error) {
	row := s.db.QueryRow(`
		SELECT name, year, month, day, hour, calendar, latitude, longitude, house_system
		FROM subjects
		WHERE name = ?`, name)
	subject, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrSubjectNotFound, name)
	}
	return subject, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubject(row scanner) (*SubjectData, error) {
	var subject SubjectData
	var calendar, hsys sql.NullString

	err := row.Scan(&subject.Name, &subject.Year, &subject.Month, &subject.Day, &subject.Hour,
		&calendar, &subject.Latitude, &subject.Longitude, &hsys)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subject row: %w", err)
	}
	subject.Calendar = calendar.String
	subject.HouseSystem = hsys.String
	return &subject, nil
}

// SaveSubject inserts or replaces a subject
func (s *SQLiteProvider) SaveSubject(subject *SubjectData) error {
	if subject.Name == "" {
		return errors.New("subject name is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO subjects (name, year, month, day, hour, calendar, latitude, longitude, house_system)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET year = excluded.year, month = excluded.month,
		    day = excluded.day, hour = excluded.hour, calendar = excluded.calendar,
		    latitude = excluded.latitude, longitude = excluded.longitude,
		    house_system = excluded.house_system`,
		subject.Name, subject.Year, subject.Month, subject.Day, subject.Hour,
		subject.Calendar, subject.Latitude, subject.Longitude, subject.HouseSystem)
	if err != nil {
		return fmt.Errorf("failed to save subject %q: %w", subject.Name, err)
	}
	return nil
}

// DeleteSubject removes a subject
func (s *SQLiteProvider) DeleteSubject(name string) error {
	res, err := s.db.Exec(`DELETE FROM subjects WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete subject %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrSubjectNotFound, name)
	}
	return nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	rows, err := s.db.Query(`SELECT backend, path, connection_string FROM storage_configs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backend string
		var path, connStr sql.NullString
		if err := rows.Scan(&backend, &path, &connStr); err != nil {
			return nil, fmt.Errorf("failed to scan storage row: %w", err)
		}
		switch backend {
		case "sqlite":
			storage.SQLite = &SQLiteData{Path: path.String}
		case "postgres":
			storage.Postgres = &PostgresData{ConnectionString: connStr.String}
		}
	}
	return storage, rows.Err()
}

// SetStorageConfig replaces the storage rows
func (s *SQLiteProvider) SetStorageConfig(storage *StorageData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM storage_configs`); err != nil {
		return fmt.Errorf("failed to clear storage configs: %w", err)
	}
	if storage.SQLite != nil {
		if _, err := tx.Exec(`INSERT INTO storage_configs (backend, path) VALUES ('sqlite', ?)`, storage.SQLite.Path); err != nil {
			return fmt.Errorf("failed to save sqlite storage config: %w", err)
		}
	}
	if storage.Postgres != nil {
		if _, err := tx.Exec(`INSERT INTO storage_configs (backend, connection_string) VALUES ('postgres', ?)`,
			storage.Postgres.ConnectionString); err != nil {
			return fmt.Errorf("failed to save postgres storage config: %w", err)
		}
	}
	return tx.Commit()
}

// GetServerConfig returns the server row, or zero values if unset
func (s *SQLiteProvider) GetServerConfig() (*ServerData, error) {
	var listenAddr, cert, key sql.NullString
	var port sql.NullInt64

	err := s.db.QueryRow(`SELECT listen_addr, port, cert_file, key_file FROM server_config WHERE id = 1`).
		Scan(&listenAddr, &port, &cert, &key)
	if errors.Is(err, sql.ErrNoRows) {
		return &ServerData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query server config: %w", err)
	}
	return &ServerData{
		ListenAddr: listenAddr.String,
		Port:       int(port.Int64),
		Cert:       cert.String,
		Key:        key.String,
	}, nil
}

// SetServerConfig replaces the server row
func (s *SQLiteProvider) SetServerConfig(server *ServerData) error {
	_, err := s.db.Exec(`
		INSERT INTO server_config (id, listen_addr, port, cert_file, key_file) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET listen_addr = excluded.listen_addr,
		    port = excluded.port, cert_file = excluded.cert_file, key_file = excluded.key_file`,
		server.ListenAddr, server.Port, server.Cert, server.Key)
	if err != nil {
		return fmt.Errorf("failed to save server config: %w", err)
	}
	return nil
}

// SaveConfig writes every section of cfg, replacing what is stored.
// Subjects not in cfg are removed.
func (s *SQLiteProvider) SaveConfig(cfg *ConfigData) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.SetEphemerisConfig(&cfg.Ephemeris); err != nil {
		return err
	}

	existing, err := s.GetSubjects()
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(cfg.Subjects))
	for i := range cfg.Subjects {
		keep[cfg.Subjects[i].Name] = true
		if err := s.SaveSubject(&cfg.Subjects[i]); err != nil {
			return err
		}
	}
	for _, old := range existing {
		if !keep[old.Name] {
			if err := s.DeleteSubject(old.Name); err != nil {
				return err
			}
		}
	}

	if err := s.SetStorageConfig(&cfg.Storage); err != nil {
		return err
	}
	return s.SetServerConfig(&cfg.Server)
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
