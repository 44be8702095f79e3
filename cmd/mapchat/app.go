package main

import (
	"context"
	"fmt"
	"time"

	"mapchat/internal/ai"
	"mapchat/internal/chat"
	"mapchat/internal/geo"
	"mapchat/internal/session"
	"mapchat/internal/store"
	"mapchat/internal/weather"
)

// buildController wires the full stack: sqlite blob store, session
// store, Gemini client, and (when enabled) the weather lookup. The
// returned cleanup closes the database.
func buildController(ctx context.Context) (*chat.Controller, func(), error) {
	local, err := store.NewLocalStore(cfg.ResolveDatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}
	cleanup := func() { _ = local.Close() }

	svc, err := ai.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create AI client (set GEMINI_API_KEY): %w", err)
	}

	var opts []chat.Option
	if cfg.Weather.Enabled {
		opts = append(opts, chat.WithWeather(weatherLookup()))
	}

	ctrl := chat.NewController(svc, session.NewStore(local), opts...)
	return ctrl, cleanup, nil
}

// buildSessionStore wires persistence only, for commands that never
// talk to the model.
func buildSessionStore() (*session.Store, func(), error) {
	local, err := store.NewLocalStore(cfg.ResolveDatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return session.NewStore(local), func() { _ = local.Close() }, nil
}

func weatherLookup() chat.WeatherFunc {
	wopts := []weather.Option{}
	if cfg.Weather.BaseURL != "" {
		wopts = append(wopts, weather.WithBaseURL(cfg.Weather.BaseURL))
	}
	if d, err := time.ParseDuration(cfg.Weather.Timeout); err == nil && d > 0 {
		wopts = append(wopts, weather.WithTimeout(d))
	}
	client := weather.NewClient(wopts...)

	return func(ctx context.Context, loc geo.Location) (string, error) {
		snap, err := client.Current(ctx, loc)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%.1f°C, %s, wind %.0f km/h", snap.TemperatureC, snap.Description, snap.WindSpeedKmh), nil
	}
}
