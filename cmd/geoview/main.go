package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kass/go-geo-viewport/internal/config"
	"github.com/kass/go-geo-viewport/internal/logger"
	"github.com/kass/go-geo-viewport/internal/metrics"
	"github.com/kass/go-geo-viewport/pkg/viewport"
)

var (
	cfg         config.Config
	log         zerolog.Logger
	verbose     bool
	metricsAddr string
	metricsSrv  *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "geoview",
	Short: "Map viewport engine tools",
	Long: `Projection, hit-testing, buffer and fetch tools for map overlays.
Settings are read from the environment and from .env files; flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log = logger.Build(logger.Config{Level: level, Console: cfg.LogConsole, Component: "geoview"}, os.Stderr)
		if metricsAddr != "" {
			metricsSrv = serveMetrics(metricsAddr)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if metricsSrv == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(ctx)
	},
}

func init() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	cfg = config.FromEnv()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().IntVar(&cfg.ScreenWidth, "screen-width", cfg.ScreenWidth, "Screen width in CSS pixels")
	rootCmd.PersistentFlags().IntVar(&cfg.ScreenHeight, "screen-height", cfg.ScreenHeight, "Screen height in CSS pixels")
	rootCmd.PersistentFlags().Float64Var(&cfg.PixelRatio, "pixel-ratio", cfg.PixelRatio, "Device pixel ratio")

	rootCmd.AddCommand(projectCmd, distanceCmd, headingCmd, fitCmd, hitTestCmd, panCmd, benchCmd, featuresCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func display() viewport.Config {
	return viewport.Config{
		ScreenWidth:     cfg.ScreenWidth,
		ScreenHeight:    cfg.ScreenHeight,
		PixelRatio:      cfg.PixelRatio,
		MaxBufferPixels: cfg.MaxBufferPixels,
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
