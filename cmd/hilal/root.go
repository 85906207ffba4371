// Command hilal is the headless crescent visibility tool: single-location
// reports, full scans with GeoJSON/XLSX export, place search and saved places.
package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/pkg/config"
)

var (
	cfg     *config.Config
	cfgFile string
)

// newEngine builds the computational core. Tests swap in a stub oracle.
var newEngine = app.NewEngine

var rootCmd = &cobra.Command{
	Use:   "hilal",
	Short: "Lunar crescent visibility from the command line",
	Long: "Classifies new crescent visibility with the Odeh criterion for any place and evening, " +
		"sweeps the globe into GeoJSON or XLSX, and reports the Qibla direction.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if err := c.Validate(); err != nil {
			return eris.Wrap(err, "validate config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.json", "path to configuration file")
}

// parseDate reads a YYYY-MM-DD flag value, defaulting to today in UTC.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid date %q, want YYYY-MM-DD", raw)
	}
	return date, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
