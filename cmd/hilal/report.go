package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/internal/db"
	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/qibla"
)

// locationFlags select the evening and the place a report is computed for.
type locationFlags struct {
	date   string
	lat    float64
	lon    float64
	place  string
	asJSON bool
}

func (f *locationFlags) register(cmd *cobra.Command, withDate bool) {
	if withDate {
		cmd.Flags().StringVar(&f.date, "date", "", "evening to evaluate (YYYY-MM-DD, default today UTC)")
	}
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "longitude in degrees")
	cmd.Flags().StringVar(&f.place, "place", "", "place name (saved places first, then Nominatim)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of text")
}

// resolve builds a State for the chosen place and date. Without --lat/--lon
// or --place the configured observer is used.
func (f *locationFlags) resolve(ctx context.Context, cmd *cobra.Command) (*app.State, app.Detail, error) {
	date, err := parseDate(f.date)
	if err != nil {
		return nil, app.Detail{}, err
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, app.Detail{}, err
	}
	sink := render.NewGeoJSON()
	sched, err := engine.NewScheduler(sink)
	if err != nil {
		return nil, app.Detail{}, err
	}

	deps := app.Deps{
		Scheduler:  sched,
		Sink:       sink,
		Evaluator:  engine.Classifier,
		Summaries:  engine.Summaries,
		Geocoder:   app.NewGeocoder(cfg.Geocode),
		Formatter:  engine.Formatter,
		Initial:    app.Location{Latitude: cfg.Observer.Latitude, Longitude: cfg.Observer.Longitude, Label: cfg.Observer.Name},
		InitialDay: date,
	}
	if f.place == "" {
		state, err := app.New(deps)
		if err != nil {
			return nil, app.Detail{}, err
		}
		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
			d, err := state.Select(f.lat, f.lon, "")
			return state, d, err
		}
		return state, state.Detail(), nil
	}

	if cfg.Database.Enabled {
		database, err := db.Connect(ctx, cfg.Database)
		if err != nil {
			zap.L().Warn("saved places unavailable", zap.Error(err))
		} else {
			defer database.Close()
			deps.Places = app.SavedPlaces{Repo: db.NewPlaceRepository(database)}
		}
	}
	state, err := app.New(deps)
	if err != nil {
		return nil, app.Detail{}, err
	}
	d, err := state.Search(ctx, f.place)
	return state, d, err
}

var classifyFlags locationFlags

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify crescent visibility for one place",
	Long:  "Evaluate the Odeh criterion at sunset for one place and print the visibility tier.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		state, d, err := classifyFlags.resolve(ctx, cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if classifyFlags.asJSON {
			return writeJSON(out, map[string]interface{}{
				"date":       state.Date().Format(time.DateOnly),
				"location":   d.Location,
				"label":      d.Assessment.Tier.Label(),
				"color":      d.Assessment.Tier.Color(),
				"assessment": d.Assessment,
			})
		}

		a := d.Assessment
		f := state.Formatter()
		fmt.Fprintf(out, "%s  %s\n", state.Date().Format(time.DateOnly), d.Location.Label)
		fmt.Fprintf(out, "%s (%s)\n", a.Tier, a.Tier.Label())
		if a.Excluded != visibility.NotExcluded {
			fmt.Fprintf(out, "reason: %s\n", a.Excluded)
			return nil
		}
		fmt.Fprintf(out, "V = %s  (moon altitude %s, elongation %s)\n",
			f.Number(a.V, 2), f.Degrees(a.Moon.Altitude), f.Degrees(a.Elongation))
		return nil
	},
}

var summaryFlags locationFlags

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the moon summary for one place",
	Long:  "Print illumination, phase, sunset, moonrise, moonset, lag time, Qibla and the visibility assessment.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		state, d, err := summaryFlags.resolve(ctx, cmd)
		if err != nil {
			return err
		}
		if summaryFlags.asJSON {
			return writeJSON(cmd.OutOrStdout(), d)
		}
		writeRows(cmd.OutOrStdout(), state.Rows(d))
		return nil
	},
}

var qiblaFlags locationFlags

var qiblaCmd = &cobra.Command{
	Use:   "qibla",
	Short: "Print the Qibla direction and distance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		state, d, err := qiblaFlags.resolve(ctx, cmd)
		if err != nil {
			return err
		}
		if qiblaFlags.asJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"location": d.Location,
				"qibla":    d.Qibla,
			})
		}
		f := state.Formatter()
		writeRows(cmd.OutOrStdout(), []render.Row{
			{Label: "Location", Value: d.Location.Label},
			{Label: "Bearing", Value: f.Degrees(d.Qibla.BearingDegrees)},
			{Label: "Direction", Value: qibla.Cardinal(d.Qibla.BearingDegrees)},
			{Label: "Distance", Value: f.Number(d.Qibla.DistanceKm, 0) + " km"},
		})
		return nil
	},
}

func init() {
	classifyFlags.register(classifyCmd, true)
	summaryFlags.register(summaryCmd, true)
	qiblaFlags.register(qiblaCmd, false)
	rootCmd.AddCommand(classifyCmd, summaryCmd, qiblaCmd)
}

func writeRows(w io.Writer, rows []render.Row) {
	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %s\n", width, r.Label, r.Value)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}
