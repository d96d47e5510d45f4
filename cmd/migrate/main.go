package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/chrissnell/birthchart/internal/log"
	"github.com/chrissnell/birthchart/internal/storage/sqlite"
	"github.com/chrissnell/birthchart/pkg/config"
	"github.com/chrissnell/birthchart/pkg/migrate"
)

// schemas are the embedded migration sets this tool can manage.
var schemas = map[string]struct {
	fsys  fs.FS
	table string
}{
	"archive": {sqlite.Migrations, sqlite.MigrationTable},
	"config":  {config.Migrations, config.MigrationTable},
}

func main() {
	var (
		dbPath        = flag.String("db", "", "Path to the SQLite database")
		schema        = flag.String("schema", "archive", "Schema to migrate: archive, config")
		command       = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		helpFlag      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -db flag is required\n")
		showHelp()
		os.Exit(1)
	}
	set, ok := schemas[*schema]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown schema: %s\n", *schema)
		os.Exit(1)
	}

	if err := log.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		fatalf("Failed to ping database: %v", err)
	}

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(set.fsys, "migrations", set.table), log.Logger())

	switch *command {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "down", "to":
		if *targetVersion == "" {
			fatalf("-target flag is required for %s command", *command)
		}
		target, perr := strconv.Atoi(*targetVersion)
		if perr != nil {
			fatalf("Invalid target version: %v", perr)
		}
		if *command == "down" {
			err = migrator.MigrateDown(ctx, target)
		} else {
			err = migrator.MigrateTo(ctx, target)
		}
	case "version":
		version, err := migrator.GetCurrentVersion(ctx)
		if err != nil {
			fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(ctx, migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func fatalf(format string, args ...interface{}) {
	log.Errorf(format, args...)
	log.Sync()
	os.Exit(1)
}

func showStatus(ctx context.Context, migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}

	pending, err := migrator.GetPendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))

	if len(pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Schema Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -db string         SQLite database path (required)")
	fmt.Println("  -schema string     archive or config (default: archive)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -db charts.db -command status")
	fmt.Println("  migrate -db charts.db -command down -target 1")
	fmt.Println("  migrate -db config.db -schema config -command up")
}
