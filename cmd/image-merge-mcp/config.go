package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ironsheep/image-merge-mcp/internal/compose"
	"github.com/ironsheep/image-merge-mcp/internal/server"
)

const defaultHTTPAddr = ":8080"

// appConfig is the server configuration plus process-level settings.
type appConfig struct {
	server.Config

	// HTTPAddr selects the HTTP API when set.
	HTTPAddr string
}

// configFromEnv builds the configuration from IMAGE_MERGE_* variables.
// lookup is os.LookupEnv outside of tests.
func configFromEnv(lookup func(string) (string, bool)) (appConfig, error) {
	cfg := appConfig{Config: server.DefaultConfig()}

	if v, ok := lookup("IMAGE_MERGE_LOG_LEVEL"); ok && v == "debug" {
		cfg.Debug = true
	}

	ints := []struct {
		name string
		dst  *int
		min  int
	}{
		{"IMAGE_MERGE_GAP", &cfg.Gap, 0},
		{"IMAGE_MERGE_PREVIEW_SIZE", &cfg.PreviewMaxSize, 1},
		{"IMAGE_MERGE_FINAL_SIZE", &cfg.FinalMaxSize, 1},
		{"IMAGE_MERGE_MAX_IMAGE_PIXELS", &cfg.MaxImagePixels, 1},
		{"IMAGE_MERGE_MAX_CANVAS_PIXELS", &cfg.MaxCanvasPixels, 1},
	}
	for _, e := range ints {
		v, ok := lookup(e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", e.name, err)
		}
		if n < e.min {
			return cfg, fmt.Errorf("%s: must be at least %d, got %d", e.name, e.min, n)
		}
		*e.dst = n
	}

	if v, ok := lookup("IMAGE_MERGE_BACKGROUND"); ok && v != "" {
		if _, err := compose.ParseColor(v); err != nil {
			return cfg, fmt.Errorf("IMAGE_MERGE_BACKGROUND: %w", err)
		}
		cfg.Background = v
	}

	if v, ok := lookup("IMAGE_MERGE_DECODE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("IMAGE_MERGE_DECODE_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return cfg, fmt.Errorf("IMAGE_MERGE_DECODE_TIMEOUT: must be positive, got %s", d)
		}
		cfg.DecodeTimeout = d
	}

	if v, ok := lookup("IMAGE_MERGE_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}

	return cfg, nil
}
