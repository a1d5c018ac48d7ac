// Command harvest runs one stormwater harvesting simulation from the command
// line and writes the per-step results table.
//
// Usage:
//
//	harvest -in rain.csv -out results.csv -tank-max 100 -tank-start 0 -pump 0.05 \
//	    -det-max 50 -demand 0.0002
//	harvest -in rain.csv -format dnrm -tank-max 100 -tank-start 0 -pump 0.05 -det-max 50 \
//	    -demand-mode estimated -area 5000 -targets irrigation.csv -target-period month
//
// The mass balance error is printed both as a volume and as a percentage of
// total runoff.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
	"github.com/danielcopelin/stormwater-harvesting/internal/service/simulate"
	"github.com/danielcopelin/stormwater-harvesting/internal/storage"
	"github.com/danielcopelin/stormwater-harvesting/internal/timeseries"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	in, format, out string
	targets         string
	db              string
	jsonSummary     bool
	params          model.Params
	demandMode      string
	targetPeriod    string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("harvest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.in, "in", "", "input series CSV (required)")
	fs.StringVar(&o.format, "format", "table", "input format: table or dnrm")
	fs.StringVar(&o.out, "out", "", "results CSV path (default: none)")
	fs.Float64Var(&o.params.TankMax, "tank-max", 0, "tank capacity, m³")
	fs.Float64Var(&o.params.TankStart, "tank-start", 0, "initial tank volume, m³")
	fs.Float64Var(&o.params.PumpCapacity, "pump", 0, "pump capacity, m³/s")
	fs.Float64Var(&o.params.DetentionMax, "det-max", 0, "detention basin capacity, m³")
	fs.StringVar(&o.demandMode, "demand-mode", string(model.DemandConstant), "demand mode: constant or estimated")
	fs.Float64Var(&o.params.Demand, "demand", 0, "constant demand flow, m³/s")
	fs.Float64Var(&o.params.IrrigationArea, "area", 0, "irrigated area, m² (estimated mode)")
	fs.StringVar(&o.targets, "targets", "", "irrigation targets CSV: date,irrigation (estimated mode)")
	fs.StringVar(&o.targetPeriod, "target-period", string(model.TargetByMonth), "targets keyed by month or week")
	fs.StringVar(&o.db, "db", "", "store the run: postgres:// URL or SQLite path (default: not stored)")
	fs.BoolVar(&o.jsonSummary, "json", false, "print the run as JSON instead of text")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.params.DemandMode = model.DemandMode(o.demandMode)
	o.params.TargetPeriod = model.TargetPeriod(o.targetPeriod)

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var missing []string
	for _, name := range requiredFlags(o.params.DemandMode) {
		if !set[name] {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		return o, fmt.Errorf("missing required flags: %s", strings.Join(missing, " "))
	}
	return o, nil
}

// requiredFlags lists the flags without a meaningful default for a demand
// mode. Parameters never fall back to zero silently.
func requiredFlags(mode model.DemandMode) []string {
	names := []string{"in", "tank-max", "tank-start", "pump", "det-max"}
	if mode == model.DemandEstimated {
		return append(names, "area", "targets")
	}
	return append(names, "demand")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "harvest: %v\n", err)
		return 2
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := simulateOnce(ctx, o, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "harvest: %v\n", err)
		return 1
	}
	return 0
}

func simulateOnce(ctx context.Context, o options, stdout io.Writer, logger *slog.Logger) error {
	series, err := readSeries(o.in, timeseries.Format(o.format))
	if err != nil {
		return err
	}
	if o.params.DemandMode == model.DemandEstimated {
		f, err := os.Open(o.targets)
		if err != nil {
			return err
		}
		o.params.IrrigationTargets, err = timeseries.ReadIrrigationTargets(f, o.params.TargetPeriod)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("targets %s: %w", o.targets, err)
		}
	} else {
		o.params.TargetPeriod = ""
	}

	out, err := simulate.Execute(ctx, o.in, series, o.params)
	if err != nil {
		return err
	}

	if o.out != "" {
		if err := writeRows(o.out, out.Rows); err != nil {
			return err
		}
	}
	if o.db != "" {
		store, err := storage.Open(ctx, o.db, logger)
		if err != nil {
			return err
		}
		err = store.SaveRun(ctx, out.Run)
		store.Close(ctx)
		if err != nil {
			return fmt.Errorf("store run: %w", err)
		}
	}

	if o.jsonSummary {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Run)
	}
	printSummary(stdout, out.Run)
	return nil
}

func readSeries(path string, format timeseries.Format) (timeseries.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	s, err := timeseries.Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func writeRows(path string, rows []model.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := timeseries.WriteRows(f, rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func printSummary(w io.Writer, run model.Run) {
	s := run.Summary
	mb := run.MassBalance

	fmt.Fprintf(w, "run            %s\n", run.ID)
	fmt.Fprintf(w, "steps          %d\n", run.Steps)
	fmt.Fprintf(w, "demand total   %.3f m³\n", s.DemandTotal)
	fmt.Fprintf(w, "harvest total  %.3f m³\n", s.HarvestTotal)
	if s.FractionSupplied.Valid {
		fmt.Fprintf(w, "supplied       %.1f%%\n", 100*s.FractionSupplied.Value)
	} else {
		fmt.Fprintf(w, "supplied       undefined (no demand)\n")
	}
	fmt.Fprintf(w, "runoff total   %.3f m³\n", s.RunoffTotal)
	fmt.Fprintf(w, "overflow       %.3f m³ (tank %.3f m³)\n", s.OverflowTotal, s.TankOverflowTotal)

	pct := 0.0
	if s.RunoffTotal > 0 {
		pct = 100 * mb.Error / s.RunoffTotal
	}
	fmt.Fprintf(w, "mass balance   %.3g m³ (%.3g%% of runoff)\n", mb.Error, pct)
	for _, warn := range run.Warnings {
		fmt.Fprintf(w, "warning        %s\n", warn)
	}
}
