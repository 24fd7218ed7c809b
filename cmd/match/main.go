package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rumbo/drivermatch/internal/adapters/csvio"
	app "github.com/rumbo/drivermatch/internal/app"
	"github.com/rumbo/drivermatch/internal/config"
	"github.com/rumbo/drivermatch/internal/domain/matching"
	"github.com/rumbo/drivermatch/internal/domain/result"
	"github.com/rumbo/drivermatch/pkg/logger"
)

type options struct {
	drivers   string
	routes    string
	out       string
	summary   string
	report    string
	algorithm string
	top       int
}

var errUsage = errors.New("usage: match -drivers d.csv -routes r.csv -out assignments.csv")

func main() {
	var opts options
	flag.StringVar(&opts.drivers, "drivers", "", "Drivers CSV (required)")
	flag.StringVar(&opts.routes, "routes", "", "Routes CSV (required)")
	flag.StringVar(&opts.out, "out", "", "Assignments CSV to write (required)")
	flag.StringVar(&opts.summary, "summary", "", "Optional summary JSON output")
	flag.StringVar(&opts.report, "report", "", "Optional text report output")
	flag.StringVar(&opts.algorithm, "algorithm", "", "hungarian or mincostflow (default from config)")
	flag.IntVar(&opts.top, "top", result.DefaultTopMatches, "Number of top matches listed in the report")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Writer: os.Stderr}); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		logger.Get().Error(ctx, "match failed",
			logger.String("reason", matching.Reason(err)),
			logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer) error {
	if opts.drivers == "" || opts.routes == "" || opts.out == "" {
		return errUsage
	}
	if opts.algorithm != "" {
		cfg.Solver.Algorithm = opts.algorithm
	}
	l := logger.Get().Named("match")

	engine, err := app.NewEngine(cfg, l)
	if err != nil {
		return err
	}

	drivers, err := readFile(opts.drivers, csvio.ReadDrivers)
	if err != nil {
		return err
	}
	routes, err := readFile(opts.routes, csvio.ReadRoutes)
	if err != nil {
		return err
	}

	if cfg.Solver.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Solver.Timeout)
		defer cancel()
	}
	out, err := engine.Run(ctx, drivers, routes)
	if err != nil {
		return err
	}

	if err := writeFile(opts.out, func(w io.Writer) error {
		return csvio.WriteAssignments(w, out.Assignments)
	}); err != nil {
		return err
	}
	if opts.summary != "" {
		if err := writeFile(opts.summary, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(out.Summary)
		}); err != nil {
			return err
		}
	}
	if opts.report != "" {
		if err := writeFile(opts.report, func(w io.Writer) error {
			return result.WriteReport(w, out.Summary, out.Assignments, opts.top)
		}); err != nil {
			return err
		}
	}

	l.Info(ctx, "matching complete",
		logger.String("algorithm", string(out.Algorithm)),
		logger.Int("assigned", out.Summary.Assigned),
		logger.Int("unassigned", out.Summary.Unassigned),
		logger.Duration("elapsed", out.Timings.Total()))
	_, err = fmt.Fprintf(stdout, "assigned %d of %d routes, total match score %.2f, wrote %s\n",
		out.Summary.Assigned, out.Summary.Routes, out.Summary.TotalWeight, opts.out)
	return err
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
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
