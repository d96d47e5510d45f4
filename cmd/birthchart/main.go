package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chrissnell/birthchart/internal/app"
	"github.com/chrissnell/birthchart/internal/constants"
	"github.com/chrissnell/birthchart/internal/chart"
	"github.com/chrissnell/birthchart/internal/log"
	"github.com/chrissnell/birthchart/pkg/config"
	"github.com/chrissnell/birthchart/pkg/ephemeris"
	"github.com/chrissnell/birthchart/pkg/houses"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run casts one chart and writes it to stdout. It returns 0 on success and 1
// on any failure, including a failed house calculation.
func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("birthchart", flag.ContinueOnError)
	cfgFile := fs.String("config", "", "Path to configuration source (YAML file or SQLite database)")
	cfgBackend := fs.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	subject := fs.String("subject", "", "Cast the chart of this configured subject")
	date := fs.String("date", "", "Birth date as YYYY-MM-DD")
	hour := fs.Float64("hour", 0, "Birth time as decimal hour UT")
	calendar := fs.String("calendar", "", "Calendar of -date: 'gregorian' or 'julian'")
	lat := fs.Float64("lat", 0, "Geographic latitude, north positive")
	lon := fs.Float64("lon", 0, "Geographic longitude, east positive")
	hsys := fs.String("hsys", "", "House system letter (P, R, C, O, E, A, W)")
	ephePath := fs.String("ephe-path", "", "Directory holding the VSOP87B data files")
	extended := fs.Bool("extended", false, "Append placements, lunar phase and aspects")
	store := fs.Bool("store", false, "Archive the chart in the configured storage backend")
	debug := fs.Bool("debug", false, "Turn on debugging output")
	showVersion := fs.Bool("version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *showVersion {
		fmt.Fprintf(stdout, "birthchart %s (%s)\n", constants.Version, ephemeris.EngineVersion())
		return 0
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	cfg := &config.ConfigData{}
	var provider config.ConfigProvider
	if *cfgFile != "" {
		var err error
		provider, err = config.Open(*cfgFile, *cfgBackend)
		if err != nil {
			log.Errorf("Failed to open configuration: %v", err)
			return 1
		}
		defer provider.Close()

		cfg, err = provider.LoadConfig()
		if err != nil {
			log.Errorf("error reading config file. Run with -h for help: %v", err)
			return 1
		}
	}
	if *ephePath != "" {
		cfg.Ephemeris.Path = *ephePath
	}

	opts, defaultSystem, err := app.ChartOptions(cfg.Ephemeris)
	if err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return 1
	}

	in := chart.DefaultInput()
	in.HouseSystem = defaultSystem
	if *subject != "" {
		if provider == nil {
			log.Errorf("-subject requires -config")
			return 1
		}
		s, err := provider.GetSubject(*subject)
		if err != nil {
			log.Errorf("%v", err)
			return 1
		}
		if in, err = app.InputFromSubject(*s, defaultSystem); err != nil {
			log.Errorf("%v", err)
			return 1
		}
	}

	// explicit flags override the subject or the reference chart
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		if flagErr != nil {
			return
		}
		switch f.Name {
		case "date":
			in.Year, in.Month, in.Day, flagErr = parseDate(*date)
		case "hour":
			in.Hour = *hour
		case "calendar":
			in.Calendar, flagErr = ephemeris.ParseCalendar(*calendar)
		case "lat":
			in.Latitude = *lat
		case "lon":
			in.Longitude = *lon
		case "hsys":
			in.HouseSystem, flagErr = houses.Parse(*hsys)
		}
	})
	if flagErr != nil {
		log.Errorf("%v", flagErr)
		return 1
	}

	eph, _ := app.NewProvider(cfg.Ephemeris, log.Logger())
	c, err := chart.Compute(eph, in, opts)
	if c == nil {
		log.Errorf("%v", err)
		return 1
	}
	for _, r := range c.Failed() {
		log.Debugf("%s: %v", r.Name, r.Err)
	}

	if rerr := chart.Render(stdout, c, chart.RenderOptions{Extended: *extended}); rerr != nil {
		log.Errorf("Failed to write chart: %v", rerr)
		return 1
	}
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	if *store {
		if err := archive(cfg.Storage, c); err != nil {
			log.Errorf("%v", err)
			return 1
		}
	}
	return 0
}

func archive(cfg config.StorageData, c *chart.Chart) error {
	ctx := context.Background()
	s, err := app.NewChartStore(ctx, cfg, log.Logger())
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("-store requires a storage backend in the configuration")
	}
	defer s.Close()

	id, err := s.SaveChart(ctx, c)
	if err != nil {
		return err
	}
	log.Infof("archived chart %s", id)
	return nil
}

// parseDate splits YYYY-MM-DD. Negative (astronomical) years are accepted.
func parseDate(v string) (year, month, day int, err error) {
	var rest string
	n, _ := fmt.Sscanf(v, "%d-%d-%d%s", &year, &month, &day, &rest)
	if n != 3 {
		return 0, 0, 0, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", v)
	}
	return year, month, day, nil
}
