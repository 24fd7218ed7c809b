package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rumbo/drivermatch/internal/adapters/csvio"
	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/synth"
	"github.com/rumbo/drivermatch/pkg/logger"
)

// Default configuration constants.
const (
	defaultTimeout      = 30 * time.Second
	defaultWaitTimeout  = 10 * time.Minute
	defaultPollInterval = 250 * time.Millisecond
	directoryPermission = 0o750
)

type options struct {
	drivers   int
	routes    int
	seed      uint64
	outDir    string
	submitURL string
	requestID string
	wait      bool
	timeout   time.Duration
}

func main() {
	var opts options
	flag.IntVar(&opts.drivers, "drivers", synth.DefaultDrivers, "Number of drivers to generate")
	flag.IntVar(&opts.routes, "routes", synth.DefaultRoutes, "Number of routes to generate")
	flag.Uint64Var(&opts.seed, "seed", synth.DefaultSeed, "Generator seed")
	flag.StringVar(&opts.outDir, "out-dir", "data", "Directory for drivers.csv and routes.csv (empty skips writing)")
	flag.StringVar(&opts.submitURL, "submit", "", "Base URL of a drivermatch service to submit the fleet to")
	flag.StringVar(&opts.requestID, "request-id", "", "Idempotency key for -submit (default: fleet-SEED-DxR)")
	flag.BoolVar(&opts.wait, "wait", true, "With -submit, wait for the run to finish and print its summary")
	flag.DurationVar(&opts.timeout, "timeout", defaultTimeout, "HTTP request timeout")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultWaitTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		logger.Get().Error(ctx, "gen-fleet failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	if opts.drivers < 0 || opts.routes < 0 {
		return fmt.Errorf("drivers and routes must not be negative: %d, %d", opts.drivers, opts.routes)
	}
	l := logger.Get().Named("gen-fleet")

	g := synth.New(opts.seed)
	drivers := g.Drivers(opts.drivers)
	routes := g.Routes(opts.routes)

	if opts.outDir != "" {
		if err := writeFleet(opts.outDir, drivers, routes); err != nil {
			return err
		}
		l.Info(ctx, "fleet written",
			logger.String("dir", opts.outDir),
			logger.Int("drivers", len(drivers)),
			logger.Int("routes", len(routes)),
			logger.Any("seed", opts.seed))
	}

	if opts.submitURL == "" {
		return nil
	}

	requestID := opts.requestID
	if requestID == "" {
		requestID = fmt.Sprintf("fleet-%d-%dx%d", opts.seed, opts.drivers, opts.routes)
	}

	client := synth.NewClient(opts.submitURL, opts.timeout)
	if err := client.CheckHealth(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}
	ack, err := client.Submit(ctx, requestID, drivers, routes)
	if err != nil {
		return fmt.Errorf("submit fleet: %w", err)
	}
	l.Info(ctx, "fleet submitted",
		logger.String("run_id", ack.RunID),
		logger.String("request_id", requestID),
		logger.Bool("duplicate", ack.Duplicate))

	if !opts.wait {
		_, err = fmt.Fprintln(stdout, ack.RunID)
		return err
	}

	st, err := client.Wait(ctx, ack.RunID, defaultPollInterval)
	if err != nil {
		return fmt.Errorf("run %s: %w", ack.RunID, err)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func writeFleet(dir string, drivers []model.RawDriver, routes []model.RawRoute) error {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeFile(filepath.Join(dir, "drivers.csv"), func(w io.Writer) error {
		return csvio.WriteDrivers(w, drivers)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "routes.csv"), func(w io.Writer) error {
		return csvio.WriteRoutes(w, routes)
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
