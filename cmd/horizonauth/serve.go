package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/horizonauth/internal/config"
	"github.com/dropDatabas3/horizonauth/internal/http/server"
)

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := cfg()
			h, cleanup, err := buildHandler(ctx, c)
			if err != nil {
				return err
			}
			defer cleanup()

			return server.Run(ctx, server.Config{
				Addr:         c.Server.Addr,
				ReadTimeout:  c.Server.ReadTimeout,
				WriteTimeout: c.Server.WriteTimeout,
			}, h)
		},
	}
}
