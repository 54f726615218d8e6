package cmd

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bavix/faros/internal/config"
	"github.com/bavix/faros/internal/fleethttp"
	"github.com/bavix/faros/internal/topology"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

//nolint:funlen
func newServeCmd() *cobra.Command {
	var (
		flags    discoveryFlags
		listen   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reconciled topology over HTTP, rediscovering periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx)

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			if listen != "" {
				cfg.HTTP.Listen = listen
			}

			var (
				mu      sync.RWMutex
				current *topology.Topology
			)

			refresh := func() {
				result, err := runDiscovery(ctx, cfg, flags)
				if err != nil {
					logger.Error().Err(err).Msg("discovery run failed, keeping previous topology")

					return
				}

				mu.Lock()
				current = result.Topology
				mu.Unlock()
			}

			refresh()

			provider := func() *topology.Topology {
				mu.RLock()
				defer mu.RUnlock()

				return current
			}

			srv := &http.Server{
				Addr:              cfg.HTTP.Listen,
				Handler:           fleethttp.NewRouter(provider),
				ReadHeaderTimeout: readHeaderTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info().Str("listen", cfg.HTTP.Listen).Msg("topology api listening")

				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}

				return nil
			})

			g.Go(func() error {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					select {
					case <-gctx.Done():
						return nil
					case <-ticker.C:
						refresh()
					}
				}
			})

			g.Go(func() error {
				<-gctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides the config value)")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "Rediscovery interval")

	return cmd
}
