package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
	"github.com/kass/go-geo-viewport/pkg/postgis"
)

var featuresLayer string

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Manage layer features stored in PostGIS",
	Long:  `Create the feature table, import GeoJSON layers and query them by box. Requires POSTGIS_DSN.`,
}

var featuresInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the feature table and indexes",
	Args:  cobra.NoArgs,
	RunE: withSource(func(cmd *cobra.Command, src *postgis.Source, _ []string) error {
		if err := src.InitSchema(cmd.Context()); err != nil {
			return err
		}
		log.Info().Msg("schema ready")
		return nil
	}),
}

var featuresImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a longitude/latitude GeoJSON feature collection into a layer",
	Args:  cobra.ExactArgs(1),
	RunE: withSource(func(cmd *cobra.Command, src *postgis.Source, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		start := time.Now()
		n, err := src.InsertFeatures(cmd.Context(), featuresLayer, fc)
		if err != nil {
			return err
		}
		log.Info().
			Str("layer", featuresLayer).
			Int("inserted", n).
			Int("skipped", len(fc.Features)-n).
			Dur("took", time.Since(start)).
			Msg("features imported")
		return nil
	}),
}

var featuresFetchCmd = &cobra.Command{
	Use:   "fetch SOUTH WEST NORTH EAST",
	Short: "Print the features of a layer inside a box",
	Args:  cobra.ExactArgs(4),
	RunE: withSource(func(cmd *cobra.Command, src *postgis.Source, args []string) error {
		v, err := parseFloats(args)
		if err != nil {
			return err
		}
		sw := coords.LatLng{Lat: v[0], Lng: v[1]}
		ne := coords.LatLng{Lat: v[2], Lng: v[3]}
		box := bbox.FromCorners(sw.ToTile(), ne.ToTile())

		fc, err := src.FetchFeatures(cmd.Context(), featuresLayer, box)
		if err != nil {
			return err
		}
		out, err := coords.ProjectFeatureCollection(fc, coords.KindTile, coords.KindGeographic)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}),
}

var featuresCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count the features stored for a layer",
	Args:  cobra.NoArgs,
	RunE: withSource(func(cmd *cobra.Command, src *postgis.Source, _ []string) error {
		n, err := src.Count(cmd.Context(), featuresLayer)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d features\n", featuresLayer, n)
		return nil
	}),
}

func init() {
	featuresCmd.PersistentFlags().StringVar(&featuresLayer, "layer", "features", "Layer name")
	featuresCmd.AddCommand(featuresInitCmd, featuresImportCmd, featuresFetchCmd, featuresCountCmd)
}

// withSource opens the PostGIS source for the duration of one command.
func withSource(run func(*cobra.Command, *postgis.Source, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cfg.PostGISDSN == "" {
			return fmt.Errorf("POSTGIS_DSN is not set")
		}
		if cmd.Context() == nil {
			cmd.SetContext(context.Background())
		}
		src, err := postgis.Open(cmd.Context(), cfg.PostGISDSN, postgis.Options{Logger: &log})
		if err != nil {
			return err
		}
		defer src.Close()
		return run(cmd, src, args)
	}
}
