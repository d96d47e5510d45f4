// Package storage defines the chart archive and the pieces shared by its
// backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/birthchart/internal/chart"
	"github.com/chrissnell/birthchart/pkg/responseformat"
)

// ErrNotFound is returned when no chart has the requested ID.
var ErrNotFound = errors.New("chart not found")

// ChartStore archives computed charts.
type ChartStore interface {
	// SaveChart assigns an ID and creation time to c if missing, then stores it.
	SaveChart(ctx context.Context, c *chart.Chart) (string, error)
	GetChart(ctx context.Context, id string) (*chart.Chart, error)
	ListCharts(ctx context.Context, opts ListOptions) ([]Summary, error)
	Close() error
}

// ListOptions filter ListCharts. A zero Limit means DefaultListLimit.
type ListOptions struct {
	Subject string
	Limit   int
}

const DefaultListLimit = 100

// Summary is the index entry of an archived chart.
type Summary struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject,omitempty"`
	JulianDay   float64   `json:"julian_day"`
	HouseSystem string    `json:"house_system"`
	CreatedAt   time.Time `json:"created_at"`
}

// Prepare fills in the ID and creation time of a chart about to be stored.
func Prepare(c *chart.Chart, now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now.UTC().Truncate(time.Microsecond)
	}
}

// ValidID reports whether id is a chart ID this package could have issued.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// EffectiveLimit applies the default and upper bound to Limit.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 || o.Limit > 1000 {
		return DefaultListLimit
	}
	return o.Limit
}

// Encode serializes a chart for storage.
func Encode(c *chart.Chart) ([]byte, error) {
	data, err := responseformat.MarshalMsgPack(c)
	if err != nil {
		return nil, fmt.Errorf("error encoding chart %s: %w", c.ID, err)
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*chart.Chart, error) {
	var c chart.Chart
	if err := responseformat.UnmarshalMsgPack(data, &c); err != nil {
		return nil, fmt.Errorf("error decoding chart: %w", err)
	}
	return &c, nil
}

// SummaryOf builds the index entry for c.
func SummaryOf(c *chart.Chart) Summary {
	return Summary{
		ID:          c.ID,
		Subject:     c.Input.Subject,
		JulianDay:   c.JulianDay,
		HouseSystem: c.Input.HouseSystem.String(),
		CreatedAt:   c.CreatedAt,
	}
}
