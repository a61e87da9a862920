package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-viewport/pkg/coords"
)

var (
	projectFrom string
	projectTo   string
)

var projectCmd = &cobra.Command{
	Use:   "project A B",
	Short: "Convert a point between coordinate systems",
	Long: `Convert a point between geographic (lat lng), meters (x y) and tile (x y) coordinates.
Geographic points are given latitude first.`,
	Args: cobra.ExactArgs(2),
	RunE: runProject,
}

var distanceCmd = &cobra.Command{
	Use:   "distance LAT1 LNG1 LAT2 LNG2",
	Short: "Great-circle distance in meters",
	Args:  cobra.ExactArgs(4),
	RunE:  runDistance,
}

var headingCmd = &cobra.Command{
	Use:   "heading LAT1 LNG1 LAT2 LNG2",
	Short: "Initial bearing in degrees from the first point to the second",
	Args:  cobra.ExactArgs(4),
	RunE:  runHeading,
}

func init() {
	projectCmd.Flags().StringVar(&projectFrom, "from", "geographic", "Source kind: geographic, meters or tile")
	projectCmd.Flags().StringVar(&projectTo, "to", "tile", "Target kind: geographic, meters or tile")
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

// pointOf builds a point of kind k from command-line order: latitude first
// for geographic points, x first otherwise.
func pointOf(k coords.Kind, a, b float64) (coords.Point, error) {
	switch k {
	case coords.KindGeographic:
		return coords.LatLng{Lat: a, Lng: b}, nil
	case coords.KindMeters:
		return coords.Meters{X: a, Y: b}, nil
	case coords.KindTile:
		return coords.Tile{X: a, Y: b}, nil
	default:
		return nil, fmt.Errorf("unknown coordinate kind %s", k)
	}
}

func runProject(cmd *cobra.Command, args []string) error {
	from, err := coords.ParseKind(projectFrom)
	if err != nil {
		return err
	}
	to, err := coords.ParseKind(projectTo)
	if err != nil {
		return err
	}
	v, err := parseFloats(args)
	if err != nil {
		return err
	}
	p, err := pointOf(from, v[0], v[1])
	if err != nil {
		return err
	}

	var out coords.Point
	switch to {
	case coords.KindGeographic:
		out, err = coords.Convert[coords.LatLng](p)
	case coords.KindMeters:
		out, err = coords.Convert[coords.Meters](p)
	default:
		out, err = coords.Convert[coords.Tile](p)
	}
	if err != nil {
		return err
	}

	ml, err := coords.MeterLength(out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", to, out)
	fmt.Fprintf(cmd.OutOrStdout(), "meter length: %g\n", ml)
	return nil
}

func latLngPair(args []string) (coords.LatLng, coords.LatLng, error) {
	v, err := parseFloats(args)
	if err != nil {
		return coords.LatLng{}, coords.LatLng{}, err
	}
	return coords.LatLng{Lat: v[0], Lng: v[1]}, coords.LatLng{Lat: v[2], Lng: v[3]}, nil
}

func runDistance(cmd *cobra.Command, args []string) error {
	a, b, err := latLngPair(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%.1f m\n", coords.DistanceMeters(a, b))
	return nil
}

func runHeading(cmd *cobra.Command, args []string) error {
	a, b, err := latLngPair(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%.2f°\n", coords.Heading(a, b))
	return nil
}
