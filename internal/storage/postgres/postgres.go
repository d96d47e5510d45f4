// Package postgres archives charts in PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chrissnell/birthchart/internal/chart"
	"github.com/chrissnell/birthchart/internal/database"
	"github.com/chrissnell/birthchart/internal/storage"
)

// Record is the row layout of the charts table. Queryable fields are
// denormalized next to the encoded chart.
type Record struct {
	ID          string    `gorm:"primaryKey;type:uuid"`
	Subject     string    `gorm:"index:charts_subject_idx,priority:1;not null;default:''"`
	JulianDay   float64   `gorm:"not null"`
	BirthTime   time.Time `gorm:"not null"`
	Latitude    float64   `gorm:"not null"`
	Longitude   float64   `gorm:"not null"`
	HouseSystem string    `gorm:"type:char(1);not null"`
	Payload     []byte    `gorm:"type:bytea;not null"`
	CreatedAt   time.Time `gorm:"index:charts_subject_idx,priority:2;not null"`
}

// TableName overrides the gorm default of "records".
func (Record) TableName() string {
	return "charts"
}

// Store is a storage.ChartStore backed by PostgreSQL.
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

var _ storage.ChartStore = (*Store)(nil)

// New connects to PostgreSQL and migrates the charts table.
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	s := NewWithDB(db, logger)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing gorm connection.
func NewWithDB(db *gorm.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Migrate creates or updates the charts table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("error migrating charts table: %w", err)
	}
	return nil
}

// ToRecord converts a prepared chart into its row.
func ToRecord(c *chart.Chart) (*Record, error) {
	payload, err := storage.Encode(c)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:          c.ID,
		Subject:     c.Input.Subject,
		JulianDay:   c.JulianDay,
		BirthTime:   c.Input.Time(),
		Latitude:    c.Input.Latitude,
		Longitude:   c.Input.Longitude,
		HouseSystem: c.Input.HouseSystem.String(),
		Payload:     payload,
		CreatedAt:   c.CreatedAt,
	}, nil
}

// SaveChart upserts c.
func (s *Store) SaveChart(ctx context.Context, c *chart.Chart) (string, error) {
	storage.Prepare(c, s.now())
	rec, err := ToRecord(c)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return "", fmt.Errorf("error saving chart %s: %w", c.ID, err)
	}
	s.logger.Debugf("saved chart %s", c.ID)
	return c.ID, nil
}

// GetChart loads the chart with the given ID.
func (s *Store) GetChart(ctx context.Context, id string) (*chart.Chart, error) {
	if !storage.ValidID(id) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	var rec Record
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading chart %s: %w", id, err)
	}
	return storage.Decode(rec.Payload)
}

// ListCharts returns the newest charts first.
func (s *Store) ListCharts(ctx context.Context, opts storage.ListOptions) ([]storage.Summary, error) {
	var recs []Record
	if err := s.listQuery(ctx, opts).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("error listing charts: %w", err)
	}
	out := make([]storage.Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, storage.Summary{
			ID:          r.ID,
			Subject:     r.Subject,
			JulianDay:   r.JulianDay,
			HouseSystem: r.HouseSystem,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *Store) listQuery(ctx context.Context, opts storage.ListOptions) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Record{}).
		Select("id", "subject", "julian_day", "house_system", "created_at")
	if opts.Subject != "" {
		q = q.Where("subject = ?", opts.Subject)
	}
	return q.Order("created_at DESC").Order("id").Limit(opts.EffectiveLimit())
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
