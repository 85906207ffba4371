// Hilalscope terminal viewer.
// Draws the global crescent visibility map for a chosen evening and the
// detail panel for one selected location.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/internal/db"
	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/pkg/config"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	dateFlag   = flag.String("date", "", "Evening to show (YYYY-MM-DD, default today UTC)")
	logFile    = flag.String("log", "hilal-tui.log", "Log file (the terminal is owned by the UI)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return eris.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return eris.Wrap(err, "invalid config")
	}

	if cfg.Log.File == "" {
		cfg.Log.File = *logFile
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "failed to init logger")
	}
	defer func() { _ = zap.L().Sync() }()

	date := time.Now().UTC()
	if *dateFlag != "" {
		date, err = time.Parse(time.DateOnly, *dateFlag)
		if err != nil {
			return eris.Wrapf(err, "invalid -date %q", *dateFlag)
		}
	}

	engine, err := app.NewEngine(cfg)
	if err != nil {
		return err
	}

	canvas := render.NewCanvas()
	progress := &scanProgress{}
	sched, err := engine.NewScheduler(canvas, scan.OnComplete(func(c scan.Completion) {
		progress.done = true
		progress.completed = c
	}))
	if err != nil {
		return err
	}

	places, closeDB := openPlaces(cfg)
	defer closeDB()

	state, err := engine.NewState(cfg, sched, canvas, places, app.NewGeocoder(cfg.Geocode))
	if err != nil {
		return err
	}

	p := tea.NewProgram(newModel(state, canvas, progress, date), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// openPlaces connects to the saved-places database when enabled. Failure is
// not fatal: the viewer runs without saved places.
func openPlaces(cfg *config.Config) (app.PlaceStore, func()) {
	if !cfg.Database.Enabled {
		return nil, func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		zap.L().Warn("saved places unavailable", zap.Error(err))
		return nil, func() {}
	}
	if err := database.InitSchema(ctx); err != nil {
		zap.L().Warn("failed to init schema", zap.Error(err))
		database.Close()
		return nil, func() {}
	}
	return app.SavedPlaces{Repo: db.NewPlaceRepository(database)}, func() { database.Close() }
}
