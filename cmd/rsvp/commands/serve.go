package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics and hot-reload rule files",
		Long: `Run until interrupted, exposing Prometheus metrics and reloading the rule
files whenever they change. A reload that fails validation keeps the
previous rules in force.`,
		Example: `  rsvp serve --rules ./rules.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				logger := a.tel.Logger.NewComponentLogger("serve")

				if a.cfg.Rules.Watch && len(a.cfg.Rules.Paths) > 0 {
					if err := a.loader.Watch(ctx, a.cfg.Rules.Paths, a.holder, a.service.RulesReloaded); err != nil {
						return fmt.Errorf("failed to watch rules: %w", err)
					}
					defer a.loader.StopWatching()
				}

				logger.WithFields(map[string]interface{}{
					"rules":   a.holder.Engine().Len(),
					"metrics": a.tel.Config.Metrics.ListenAddress,
				}).Info("Serving")

				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return a.tel.Metrics.Serve(gctx)
				})
				err := g.Wait()

				logger.Info("Shutting down")
				return err
			})
		},
	}

	return cmd
}
