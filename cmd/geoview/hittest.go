package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kass/go-geo-viewport/pkg/coords"
	"github.com/kass/go-geo-viewport/pkg/geo"
	"github.com/kass/go-geo-viewport/pkg/models"
	"github.com/kass/go-geo-viewport/pkg/overlay"
)

var (
	layerFiles []string
	hitZoom    int
)

var hitTestCmd = &cobra.Command{
	Use:   "hittest LAT LNG",
	Short: "Find the feature under a point",
	Long: `Load one or more GeoJSON layers and report the feature under a point at a zoom level.
Layers are searched in the order given and the first match wins.`,
	Args: cobra.ExactArgs(2),
	RunE: runHitTest,
}

func init() {
	hitTestCmd.Flags().StringSliceVarP(&layerFiles, "layer", "l", nil, "GeoJSON layer file (repeatable)")
	hitTestCmd.Flags().IntVarP(&hitZoom, "zoom", "z", 14, "Map zoom level")
	_ = hitTestCmd.MarkFlagRequired("layer")
}

func loadLayers(paths []string) ([]models.LayerData, error) {
	data := make([]models.LayerData, 0, len(paths))
	for _, path := range paths {
		fc, err := readTileFeatures(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		data = append(data, models.LayerData{Name: name, Features: fc})
	}
	return data, nil
}

func newOverlay() *overlay.Overlay {
	return overlay.New(overlay.Options{
		Display: display(),
		Logger:  &log,
		OnError: func(err error) {
			log.Error().Err(err).Msg("overlay error")
		},
	})
}

func runHitTest(cmd *cobra.Command, args []string) error {
	v, err := parseFloats(args)
	if err != nil {
		return err
	}
	data, err := loadLayers(layerFiles)
	if err != nil {
		return err
	}

	o := newOverlay()
	if err := o.UpdateData(data); err != nil {
		return err
	}
	for _, l := range o.Layers() {
		log.Info().Str("layer", l.Name()).Int("indexed", l.Len()).Int("skipped", l.Skipped()).Msg("layer loaded")
	}

	hit, ok, err := o.HitTest(coords.LatLng{Lat: v[0], Lng: v[1]}, hitZoom)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "no feature")
		return nil
	}
	return printHit(cmd, hit)
}

func printHit(cmd *cobra.Command, hit geo.Hit) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"layer":      hit.Layer.Name(),
		"layerIndex": hit.LayerIndex,
		"feature":    hit.FeatureIndex,
		"id":         hit.Feature.ID,
		"type":       hit.Feature.Geometry.GeoJSONType(),
		"properties": hit.Feature.Properties,
	})
}
