package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/pkg/config"
	"github.com/unklstewy/hilalscope/pkg/ephemeris/ephemeristest"
)

// execute runs the root command against a stub oracle and a config path
// that does not exist, so every run starts from the defaults.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	orig := newEngine
	newEngine = func(c *config.Config) (*app.Engine, error) {
		return app.NewEngineWithOracle(c, &ephemeristest.Stub{})
	}
	t.Cleanup(func() { newEngine = orig })
	t.Setenv("HILAL_LOG_LEVEL", "error")

	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.json")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags clears values left behind by earlier runs of the shared tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"classify", "summary", "qibla", "scan", "search", "places", "config"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}

	placeNames := make(map[string]bool)
	for _, c := range placesCmd.Commands() {
		placeNames[c.Name()] = true
	}
	for _, name := range []string{"list", "add", "rm"} {
		assert.True(t, placeNames[name], "places should have subcommand %q", name)
	}
}

func TestScanCommand_Flags(t *testing.T) {
	for _, name := range []string{"date", "step", "export", "all"} {
		assert.NotNil(t, scanCmd.Flags().Lookup(name), "scan should have --%s flag", name)
	}
	assert.Equal(t, "5", searchCmd.Flags().Lookup("limit").DefValue)
}

func TestClassify(t *testing.T) {
	out, err := execute(t, "classify", "--date", "2024-03-10", "--lat", "10", "--lon", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-10")
	assert.Contains(t, out, "EASILY_VISIBLE")
	assert.Contains(t, out, "V = ")
}

func TestClassifyJSON(t *testing.T) {
	out, err := execute(t, "classify", "--date", "2024-03-10", "--json")
	require.NoError(t, err)

	var body struct {
		Date       string       `json:"date"`
		Location   app.Location `json:"location"`
		Color      string       `json:"color"`
		Assessment struct {
			Tier string `json:"tier"`
		} `json:"assessment"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body), out)
	assert.Equal(t, "2024-03-10", body.Date)
	assert.Equal(t, "Mecca", body.Location.Label)
	assert.Equal(t, "EASILY_VISIBLE", body.Assessment.Tier)
	assert.Equal(t, "#00FF00", body.Color)
}

func TestClassifyRejectsBadInput(t *testing.T) {
	_, err := execute(t, "classify", "--date", "March 10")
	assert.Error(t, err)

	_, err = execute(t, "classify", "--lat", "100", "--lon", "0")
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	out, err := execute(t, "summary", "--date", "2024-03-10")
	require.NoError(t, err)
	assert.Contains(t, out, "Mecca")
	assert.Contains(t, out, "Sunset")
	assert.Contains(t, out, "15:00")
	assert.Contains(t, out, "Qibla")
	assert.Contains(t, out, "Crescent")
}

func TestQibla(t *testing.T) {
	out, err := execute(t, "qibla", "--lat", "51.5074", "--lon", "-0.1278")
	require.NoError(t, err)
	assert.Contains(t, out, "Bearing")
	assert.Contains(t, out, "ESE")
	assert.Contains(t, out, "km")
}

func TestScanExport(t *testing.T) {
	dir := t.TempDir()
	geoPath := filepath.Join(dir, "scan.geojson")
	xlsxPath := filepath.Join(dir, "scan.xlsx")

	out, err := execute(t, "scan", "--date", "2024-03-10", "--step", "30",
		"--export", geoPath, "--export", xlsxPath)
	require.NoError(t, err)
	assert.Contains(t, out, "60 cells")
	assert.Contains(t, out, "wrote "+geoPath)
	assert.Contains(t, out, "wrote "+xlsxPath)

	data, err := os.ReadFile(geoPath)
	require.NoError(t, err)
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Len(t, fc.Features, 60)

	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(render.VisibilitySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 61)
}

func TestScanRejectsUnknownExport(t *testing.T) {
	_, err := execute(t, "scan", "--step", "30", "--export", filepath.Join(t.TempDir(), "scan.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export")
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Cairo", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"30.0443879","lon":"31.2357257","display_name":"Cairo, Egypt"}]`)) //nolint:errcheck
	}))
	defer srv.Close()
	t.Setenv("HILAL_GEOCODE_BASE_URL", srv.URL)
	t.Setenv("HILAL_GEOCODE_REQUESTS_PER_SECOND", "0")

	out, err := execute(t, "search", "Cairo")
	require.NoError(t, err)
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "Cairo, Egypt")
	assert.Contains(t, out, "30.0444")
}

func TestPlacesRequireDatabase(t *testing.T) {
	_, err := execute(t, "places", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")

	_, err = execute(t, "places", "add", "home", "95", "0")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hilal.json")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Observer, loaded.Observer)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err)

	_, err = execute(t, "config", "init", "--force", path)
	require.NoError(t, err)
}

func TestConfigShowMasksPassword(t *testing.T) {
	t.Setenv("HILAL_DATABASE_PASSWORD", "hunter2")
	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
}
