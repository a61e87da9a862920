package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	LogLevel             string
	LogConsole           bool
	ScreenWidth          int
	ScreenHeight         int
	PixelRatio           float64
	MaxBufferPixels      int
	FetchExpansionFactor float64
	CacheSize            int
	PostGISDSN           string
	MetricsAddr          string
}

func FromEnv() Config {
	expansion := getfloat("FETCH_EXPANSION_FACTOR", 1.5)
	if expansion < 1 {
		expansion = 1
	}
	ratio := getfloat("PIXEL_RATIO", 1)
	if ratio <= 0 {
		ratio = 1
	}
	cacheSize := getint("CACHE_SIZE", 256)
	if cacheSize < 1 {
		cacheSize = 1
	}

	return Config{
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogConsole:           getbool("LOG_CONSOLE", false),
		ScreenWidth:          getint("SCREEN_WIDTH", 1920),
		ScreenHeight:         getint("SCREEN_HEIGHT", 1080),
		PixelRatio:           ratio,
		MaxBufferPixels:      getint("MAX_BUFFER_PIXELS", 16777216),
		FetchExpansionFactor: expansion,
		CacheSize:            cacheSize,
		PostGISDSN:           getenv("POSTGIS_DSN", ""),
		MetricsAddr:          getenv("METRICS_ADDR", ""),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}
