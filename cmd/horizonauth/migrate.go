package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/horizonauth/internal/config"
	"github.com/dropDatabas3/horizonauth/internal/store"
)

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas del driver configurado",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := openStore(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			res, err := store.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: applied=%v skipped=%d (%s)\n",
				conn.Name(), res.Applied, len(res.Skipped), res.Duration)
			return nil
		},
	}
}
