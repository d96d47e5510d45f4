// Package app assembles the chart provider, archive and server from
// configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chrissnell/birthchart/internal/chart"
	"github.com/chrissnell/birthchart/internal/storage"
	"github.com/chrissnell/birthchart/internal/storage/postgres"
	"github.com/chrissnell/birthchart/internal/storage/sqlite"
	"github.com/chrissnell/birthchart/pkg/config"
	"github.com/chrissnell/birthchart/pkg/ephemeris"
	"github.com/chrissnell/birthchart/pkg/houses"
)

// NewProvider builds the ephemeris provider for cfg and returns it along with
// the fileset identifier of its data files. A missing or incomplete data set
// is logged, not fatal: the Sun, Moon and nodes need no files and the other
// bodies report per-row diagnostics.
func NewProvider(cfg config.EphemerisData, logger *zap.SugaredLogger) (*ephemeris.MeeusProvider, string) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := ephemeris.NewMeeusProvider(cfg.Path, logger)
	if cfg.Path == "" {
		logger.Warn("no ephemeris path configured; planet positions will be unavailable")
		return p, ""
	}

	if err := ephemeris.ValidatePath(cfg.Path); err != nil {
		logger.Warnf("ephemeris path: %v", err)
	}
	fileset, err := ephemeris.Fileset(cfg.Path)
	if err != nil {
		logger.Warnf("ephemeris fileset: %v", err)
		return p, ""
	}
	logger.Infof("ephemeris %s using %s (%s)", ephemeris.EngineVersion(), fileset, cfg.Path)
	return p, fileset
}

// ChartOptions derives chart.Options and the default house system from cfg.
func ChartOptions(cfg config.EphemerisData) (chart.Options, houses.System, error) {
	system := houses.Placidus
	if cfg.HouseSystem != "" {
		s, err := houses.Parse(cfg.HouseSystem)
		if err != nil {
			return chart.Options{}, 0, fmt.Errorf("ephemeris.house_system: %w", err)
		}
		system = s
	}
	return chart.Options{Orb: cfg.Orb}, system, nil
}

// NewChartStore opens the configured archive. PostgreSQL wins when both
// backends are configured; with neither, it returns a nil store.
func NewChartStore(ctx context.Context, cfg config.StorageData, logger *zap.SugaredLogger) (storage.ChartStore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	switch {
	case cfg.Postgres != nil:
		if cfg.SQLite != nil {
			logger.Warn("both sqlite and postgres storage configured; using postgres")
		}
		s, err := postgres.New(ctx, cfg.Postgres.ConnectionString, logger)
		if err != nil {
			return nil, fmt.Errorf("could not open postgres chart archive: %w", err)
		}
		return s, nil
	case cfg.SQLite != nil:
		s, err := sqlite.New(ctx, cfg.SQLite.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("could not open sqlite chart archive: %w", err)
		}
		return s, nil
	}
	return nil, nil
}

// InputFromSubject converts a configured subject into a chart input.
// fallback is used when the subject names no house system.
func InputFromSubject(s config.SubjectData, fallback houses.System) (chart.Input, error) {
	cal, err := ephemeris.ParseCalendar(s.Calendar)
	if err != nil {
		return chart.Input{}, fmt.Errorf("subject %q: %w", s.Name, err)
	}
	system := fallback
	if strings.TrimSpace(s.HouseSystem) != "" {
		if system, err = houses.Parse(strings.TrimSpace(s.HouseSystem)); err != nil {
			return chart.Input{}, fmt.Errorf("subject %q: %w", s.Name, err)
		}
	}

	in := chart.Input{
		Subject:     s.Name,
		Year:        s.Year,
		Month:       s.Month,
		Day:         s.Day,
		Hour:        s.Hour,
		Calendar:    cal,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		HouseSystem: system,
	}
	if err := in.Validate(); err != nil {
		return chart.Input{}, fmt.Errorf("subject %q: %w", s.Name, err)
	}
	return in, nil
}
