package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/admission"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/booking"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/config"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/rules"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/stores"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/telemetry"
)

// app is the wiring shared by every command that touches the grid.
type app struct {
	cfg     *config.AppConfig
	tel     *telemetry.Telemetry
	store   *stores.SQLiteStore
	loader  *rules.Loader
	holder  *rules.Holder
	service *booking.Service
}

// loadConfig reads the config file and applies flag overrides. The file is
// only required when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	cfg, err := config.LoadAppConfig(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("rules") {
		cfg.Rules.Paths = rulePaths
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// openApp loads configuration, opens and migrates the store, builds the
// rule engine and admission policies, and assembles the booking service.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig(version))
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	loader := rules.NewLoader(logger)
	eng, err := loader.Load(ctx, cfg.Rules.Paths)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	holder := rules.NewHolder(eng)

	opts := []booking.Option{
		booking.WithTelemetry(tel),
		booking.WithResources(cfg.Grid.Resources),
	}
	if cfg.Admission.Enabled {
		adm, err := admission.NewEngine(logger, admission.Limits{WeeklyHourCap: cfg.Admission.WeeklyHourCap})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if len(cfg.Admission.Paths) > 0 {
			if err := adm.LoadPolicies(ctx, cfg.Admission.Paths); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		opts = append(opts, booking.WithAdmitter(adm))
	}

	return &app{
		cfg:     cfg,
		tel:     tel,
		store:   store,
		loader:  loader,
		holder:  holder,
		service: booking.NewService(holder, store, opts...),
	}, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.tel.Logger.WithError(err).Warn("Failed to close store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func parseInts(args []string, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		n, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer, got %q", name, args[i])
		}
		out[i] = n
	}
	return out, nil
}

// parseSelection reads DAY RESOURCE START END.
func parseSelection(args []string) (grid.Selection, error) {
	day, err := parseInts(args[:1], "day")
	if err != nil {
		return grid.Empty(), err
	}
	resource, err := grid.ParseResource(args[1])
	if err != nil {
		return grid.Empty(), err
	}
	hours, err := parseInts(args[2:4], "start", "end")
	if err != nil {
		return grid.Empty(), err
	}
	return grid.NewSelection(day[0], resource, hours[0], hours[1]), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
