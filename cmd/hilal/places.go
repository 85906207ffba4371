package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/unklstewy/hilalscope/internal/app"
	"github.com/unklstewy/hilalscope/internal/db"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/geocode"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Look up places with Nominatim",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		query := strings.Join(args, " ")
		places, err := app.NewGeocoder(cfg.Geocode).Lookup(ctx, query, searchLimit)
		if err != nil {
			return err
		}
		if len(places) == 0 {
			return eris.Wrapf(geocode.ErrNotFound, "no place matches %q", query)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tLATITUDE\tLONGITUDE\tNAME")
		for _, p := range places {
			fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%s\n", p.Label(), p.Latitude, p.Longitude, p.DisplayName)
		}
		return tw.Flush()
	},
}

var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Manage saved observation places",
}

var placesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved places",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPlaces(cmd, func(ctx context.Context, repo *db.PlaceRepository) error {
			places, err := repo.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLATITUDE\tLONGITUDE\tUPDATED")
			for _, p := range places {
				fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%s\n", p.Name, p.Latitude, p.Longitude, p.UpdatedAt.UTC().Format(time.DateTime))
			}
			return tw.Flush()
		})
	},
}

var placesAddCmd = &cobra.Command{
	Use:   "add <name> <lat> <lon>",
	Short: "Save a place, replacing one with the same name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrapf(err, "invalid latitude %q", args[1])
		}
		lon, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return eris.Wrapf(err, "invalid longitude %q", args[2])
		}
		if err := coordinates.ValidateLatLon(lat, lon); err != nil {
			return err
		}

		return withPlaces(cmd, func(ctx context.Context, repo *db.PlaceRepository) error {
			place := db.Place{Name: args[0], Latitude: lat, Longitude: lon}
			if err := repo.Save(ctx, &place); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%.4f, %.4f)\n", place.Name, place.Latitude, place.Longitude)
			return nil
		})
	},
}

var placesRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a saved place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlaces(cmd, func(ctx context.Context, repo *db.PlaceRepository) error {
			if err := repo.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

// withPlaces connects to the saved-places database for the duration of fn.
func withPlaces(cmd *cobra.Command, fn func(ctx context.Context, repo *db.PlaceRepository) error) error {
	if !cfg.Database.Enabled {
		return eris.New("saved places are not enabled (set database.enabled)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.ConnectWithRetry(ctx, cfg.Database, 3, time.Second)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, db.NewPlaceRepository(database))
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "maximum number of results")
	placesCmd.AddCommand(placesListCmd, placesAddCmd, placesRmCmd)
	rootCmd.AddCommand(searchCmd, placesCmd)
}
