package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/kass/go-geo-viewport/pkg/bbox"
	"github.com/kass/go-geo-viewport/pkg/coords"
)

var fitFile string

var fitCmd = &cobra.Command{
	Use:   "fit [SOUTH WEST NORTH EAST]",
	Short: "Center and zoom level that fit a region in a 1024x1024 view",
	Long: `Compute the map center and zoom level that fit a region into a 1024x1024 pixel viewport.
The region is given either as corner coordinates or as a GeoJSON file (--file).`,
	Args: cobra.RangeArgs(0, 4),
	RunE: runFit,
}

func init() {
	fitCmd.Flags().StringVarP(&fitFile, "file", "f", "", "GeoJSON feature collection in longitude/latitude")
}

// readTileFeatures loads a longitude/latitude GeoJSON feature collection and
// projects it to tile space.
func readTileFeatures(path string) (*geojson.FeatureCollection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return coords.ProjectFeatureCollection(fc, coords.KindGeographic, coords.KindTile)
}

func runFit(cmd *cobra.Command, args []string) error {
	var box bbox.Box[coords.Tile]
	switch {
	case fitFile != "":
		fc, err := readTileFeatures(fitFile)
		if err != nil {
			return err
		}
		box, err = bbox.FromFeatureCollection[coords.Tile](fc)
		if err != nil {
			return err
		}
	case len(args) == 4:
		v, err := parseFloats(args)
		if err != nil {
			return err
		}
		sw := coords.LatLng{Lat: v[0], Lng: v[1]}
		ne := coords.LatLng{Lat: v[2], Lng: v[3]}
		box = bbox.FromCorners(sw.ToTile(), ne.ToTile())
	default:
		return fmt.Errorf("give four corner coordinates or --file")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		bbox.CenterZoom
		Bounds bbox.Box[coords.Tile] `json:"bounds"`
	}{bbox.ToCenterZoom(box), box})
}
