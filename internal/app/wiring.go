package app

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/internal/summary"
	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/config"
	"github.com/unklstewy/hilalscope/pkg/ephemeris"
	"github.com/unklstewy/hilalscope/pkg/geocode"
)

// Engine is the computational core built from configuration: the oracle and
// everything that only depends on it.
type Engine struct {
	Oracle     ephemeris.Oracle
	Classifier *visibility.Classifier
	Summaries  *summary.Calculator
	Formatter  *render.Formatter
	Grid       scan.Grid
	Budget     time.Duration
}

// NewEngine builds the Meeus-backed engine described by cfg.
func NewEngine(cfg *config.Config) (*Engine, error) {
	opts := ephemeris.DefaultOptions()
	opts.Refraction = cfg.Ephemeris.Refraction
	return NewEngineWithOracle(cfg, ephemeris.NewMeeus(opts))
}

// NewEngineWithOracle builds an engine around an existing oracle.
func NewEngineWithOracle(cfg *config.Config, oracle ephemeris.Oracle) (*Engine, error) {
	grid := scan.Grid{LatMax: cfg.Scan.LatMax, LatMin: cfg.Scan.LatMin, Step: cfg.Scan.StepDegrees}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	formatter, err := render.NewFormatter(cfg.Display.Locale, cfg.Display.TimeZone)
	if err != nil {
		return nil, eris.Wrap(err, "invalid display settings")
	}
	window := cfg.Ephemeris.SearchWindowDays
	return &Engine{
		Oracle:     oracle,
		Classifier: visibility.NewClassifier(oracle, visibility.WithSearchWindow(window)),
		Summaries:  summary.NewCalculator(oracle, window),
		Formatter:  formatter,
		Grid:       grid,
		Budget:     cfg.Scan.SliceBudget(),
	}, nil
}

// NewScheduler returns a scheduler sweeping the engine's grid into sink.
func (e *Engine) NewScheduler(sink scan.Sink, opts ...scan.Option) (*scan.Scheduler, error) {
	base := []scan.Option{scan.WithGrid(e.Grid), scan.WithBudget(e.Budget)}
	return scan.NewScheduler(e.Classifier, sink, append(base, opts...)...)
}

// NewState wires a State for a host. places and geocoder may be nil.
func (e *Engine) NewState(cfg *config.Config, sched *scan.Scheduler, sink render.Sink, places PlaceStore, geocoder Geocoder) (*State, error) {
	deps := Deps{
		Scheduler: sched,
		Sink:      sink,
		Evaluator: e.Classifier,
		Summaries: e.Summaries,
		Places:    places,
		Geocoder:  geocoder,
		Formatter: e.Formatter,
		Initial: Location{
			Latitude:  cfg.Observer.Latitude,
			Longitude: cfg.Observer.Longitude,
			Label:     cfg.Observer.Name,
		},
	}
	return New(deps)
}

// NewGeocoder returns a Nominatim client configured by cfg. Empty fields keep
// the client defaults.
func NewGeocoder(cfg config.GeocodeConfig) *geocode.Client {
	retry := geocode.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	opts := []geocode.Option{
		geocode.WithRateLimit(cfg.RequestsPerSecond),
		geocode.WithRetry(retry),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.BaseURL))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, geocode.WithUserAgent(cfg.UserAgent))
	}
	if cfg.Timeout() > 0 {
		opts = append(opts, geocode.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}))
	}
	return geocode.NewClient(opts...)
}
