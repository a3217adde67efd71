package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/config"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/rules"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/stores"
)

func newInitCommand() *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a reservation workspace",
		Long: `Create the reservation database, a config file and a sample rule file
holding the built-in studio policy.

Existing files are left alone unless --force is given.`,
		Example: `  # Initialize in the current directory
  rsvp init

  # Initialize elsewhere, overwriting existing files
  rsvp init --dir ./studio --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}

			log.Info().Str("dir", dir).Msg("Initializing workspace")

			cfg := config.DefaultAppConfig()
			cfg.Database.Path = filepath.Join(dir, "rsvp.db")
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			rulesFile := filepath.Join(dir, "rules.yaml")
			cfg.Rules.Paths = []string{rulesFile}

			store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Database.Path})
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Printf("✓ Initialized database: %s\n", cfg.Database.Path)

			policy := rules.DefaultPolicy()
			written, err := writeYAML(rulesFile, policy, force)
			if err != nil {
				return err
			}
			reportWrite(written, "rule file", rulesFile)

			cfgFile := filepath.Join(dir, "rsvp.yaml")
			if cmd.Flags().Changed("config") {
				cfgFile = configPath
			}
			written, err = writeYAML(cfgFile, cfg, force)
			if err != nil {
				return err
			}
			reportWrite(written, "config file", cfgFile)

			fmt.Printf("\nNext steps:\n")
			fmt.Printf("  rsvp --config %s propose 1 10 0\n", cfgFile)
			fmt.Printf("  rsvp --config %s book 1 0 10 13 --holder <name>\n", cfgFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "workspace directory")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")

	return cmd
}

// writeYAML marshals v to path. It reports false when the file exists and
// force is off.
func writeYAML(path string, v interface{}, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}

	content, err := yaml.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func reportWrite(written bool, what, path string) {
	if written {
		fmt.Printf("✓ Created %s: %s\n", what, path)
		return
	}
	fmt.Printf("✓ Kept existing %s: %s\n", what, path)
}
