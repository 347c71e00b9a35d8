package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/agentpane/agentpane/internal/config"
	"github.com/agentpane/agentpane/internal/server"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the session host server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)

			cfg := loadConfig(cfgPath)
			if listenAddr != "" {
				cfg.Server.ListenAddr = listenAddr
			}

			registry, err := openRegistry()
			if err != nil {
				return err
			}

			srv := server.New(ctx, registry, cfg)
			httpSrv := &http.Server{
				Addr:    cfg.Server.ListenAddr,
				Handler: srv.Handler(),
				BaseContext: func(net.Listener) context.Context {
					return ctx
				},
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpSrv.Shutdown(shutdownCtx)
			}()

			logger.Info("session host listening", "addr", cfg.Server.ListenAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("session host stopped")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (overrides config)")
	return cmd
}

// loadConfig resolves the config path and loads it. Load never fails;
// a corrupt or missing file yields defaults.
func loadConfig(cfgPath string) config.Config {
	if cfgPath == "" {
		cfgPath = config.Path()
	}
	return config.Load(cfgPath)
}
