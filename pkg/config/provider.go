package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrSubjectNotFound is returned by GetSubject for unknown names.
var ErrSubjectNotFound = errors.New("subject not found")

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetEphemerisConfig() (*EphemerisData, error)
	GetSubjects() ([]SubjectData, error)
	GetSubject(name string) (*SubjectData, error)
	GetStorageConfig() (*StorageData, error)
	GetServerConfig() (*ServerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Ephemeris EphemerisData `json:"ephemeris" yaml:"ephemeris"`
	Subjects  []SubjectData `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	Storage   StorageData   `json:"storage,omitempty" yaml:"storage,omitempty"`
	Server    ServerData    `json:"server,omitempty" yaml:"server,omitempty"`
}

// EphemerisData configures the ephemeris provider and chart defaults
type EphemerisData struct {
	// Path is the directory holding the VSOP87B files.
	Path        string  `json:"path,omitempty" yaml:"path,omitempty"`
	HouseSystem string  `json:"house_system,omitempty" yaml:"house_system,omitempty"`
	Orb         float64 `json:"orb,omitempty" yaml:"orb,omitempty"`
}

// SubjectData is a named birth record. Hour is decimal UT.
type SubjectData struct {
	Name        string  `json:"name" yaml:"name"`
	Year        int     `json:"year" yaml:"year"`
	Month       int     `json:"month" yaml:"month"`
	Day         int     `json:"day" yaml:"day"`
	Hour        float64 `json:"hour" yaml:"hour"`
	Calendar    string  `json:"calendar,omitempty" yaml:"calendar,omitempty"`
	Latitude    float64 `json:"latitude" yaml:"latitude"`
	Longitude   float64 `json:"longitude" yaml:"longitude"`
	HouseSystem string  `json:"house_system,omitempty" yaml:"house_system,omitempty"`
}

// StorageData holds the configuration for the chart archive backends
type StorageData struct {
	SQLite   *SQLiteData   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresData `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type PostgresData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// ServerData configures the chart HTTP server
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
}

// Addr returns the listen address, defaulting to port 8080 on all
// interfaces.
func (s ServerData) Addr() string {
	port := s.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", s.ListenAddr, port)
}

// Validate checks the configuration for obvious mistakes.
func (c *ConfigData) Validate() error {
	var problems []string
	seen := make(map[string]bool)
	for i, s := range c.Subjects {
		if s.Name == "" {
			problems = append(problems, fmt.Sprintf("subject %d has no name", i))
		} else if seen[s.Name] {
			problems = append(problems, fmt.Sprintf("duplicate subject %q", s.Name))
		}
		seen[s.Name] = true
	}
	if c.Ephemeris.Orb < 0 {
		problems = append(problems, fmt.Sprintf("negative aspect orb %v", c.Ephemeris.Orb))
	}
	if s := c.Storage; s.SQLite != nil && s.SQLite.Path == "" {
		problems = append(problems, "sqlite storage without a path")
	}
	if s := c.Storage; s.Postgres != nil && s.Postgres.ConnectionString == "" {
		problems = append(problems, "postgres storage without a connection string")
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		problems = append(problems, "server cert and key must be set together")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func findSubject(subjects []SubjectData, name string) (*SubjectData, error) {
	for i := range subjects {
		if subjects[i].Name == name {
			s := subjects[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSubjectNotFound, name)
}

// Open returns the provider for backend ("yaml" or "sqlite") reading from
// filename.
func Open(filename, backend string) (ConfigProvider, error) {
	filename, _ = filepath.Abs(filename)

	switch backend {
	case "yaml", "":
		return NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", backend)
}
