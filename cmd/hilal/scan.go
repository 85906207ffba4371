package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/hilalscope/internal/observability"
	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/internal/visibility"
)

var (
	scanDate    string
	scanStep    float64
	scanExports []string
	scanAll     bool
)

// tally counts classified cells per tier on their way to the real sinks.
type tally struct {
	render.Sink
	counts map[visibility.Tier]int
}

func (t *tally) ClearTier(tier visibility.Tier) {
	delete(t.counts, tier)
	t.Sink.ClearTier(tier)
}

func (t *tally) AddPoint(tier visibility.Tier, lat, lon float64, color string) {
	t.counts[tier]++
	t.Sink.AddPoint(tier, lat, lon, color)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Sweep the globe for one evening",
	Long: "Classify every grid cell for one evening and optionally export the result. " +
		"The export format follows the file extension: .geojson/.json or .xlsx.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		date, err := parseDate(scanDate)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("step") {
			cfg.Scan.StepDegrees = scanStep
		}

		shutdown, err := observability.InitTracing(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer observability.ShutdownWithTimeout(ctx, shutdown)

		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}

		var geo *render.GeoJSON
		var wb *render.Workbook
		var fan render.Fanout
		for _, path := range scanExports {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".geojson", ".json":
				if geo == nil {
					geo = render.NewGeoJSON()
					geo.IncludeNotVisible = scanAll
					fan = append(fan, geo)
				}
			case ".xlsx":
				if wb == nil {
					wb = render.NewWorkbook()
					wb.IncludeNotVisible = scanAll
					fan = append(fan, wb)
				}
			default:
				return eris.Errorf("unsupported export %q, want .geojson, .json or .xlsx", path)
			}
		}

		sink := &tally{Sink: fan, counts: make(map[visibility.Tier]int)}
		var done *scan.Completion
		sched, err := engine.NewScheduler(sink, scan.OnComplete(func(c scan.Completion) {
			done = &c
			if wb != nil {
				wb.Complete(c)
			}
		}))
		if err != nil {
			return err
		}

		q := scan.NewQueue()
		sched.Run(q, date)
		if err := q.Drain(ctx); err != nil {
			return eris.Wrap(err, "scan interrupted")
		}
		if done == nil {
			return eris.New("scan ended without completing")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Scan %s: %d cells in %s (run %s)\n",
			date.Format(time.DateOnly), done.Cells, done.Elapsed.Round(time.Millisecond), done.RunID)
		for _, t := range visibility.Tiers {
			fmt.Fprintf(out, "  %-32s %d\n", t.Label(), sink.counts[t])
		}

		g, _ := errgroup.WithContext(ctx)
		for _, path := range scanExports {
			g.Go(func() error {
				if strings.ToLower(filepath.Ext(path)) == ".xlsx" {
					return wb.Save(path)
				}
				data, err := geo.MarshalJSON()
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, data, 0644); err != nil {
					return eris.Wrapf(err, "failed to write %s", path)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, path := range scanExports {
			zap.L().Info("scan exported", zap.String("path", path), zap.String("run_id", done.RunID))
			fmt.Fprintf(out, "wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanDate, "date", "", "evening to scan (YYYY-MM-DD, default today UTC)")
	scanCmd.Flags().Float64Var(&scanStep, "step", 0, "grid step in degrees (default from config)")
	scanCmd.Flags().StringArrayVar(&scanExports, "export", nil, "write the scan to a .geojson or .xlsx file (repeatable)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "include NOT_VISIBLE cells in exports")
	rootCmd.AddCommand(scanCmd)
}
