package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/horizonauth/internal/config"
	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
)

func newIdentityCmd(cfg func() *config.Config) *cobra.Command {
	identityCmd := &cobra.Command{
		Use:   "identity",
		Short: "Consulta y borra identidades externas",
	}

	showCmd := &cobra.Command{
		Use:   "show <external-id>",
		Short: "Muestra el registro de una identidad (sin password)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openStore(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			rec, err := conn.Identities().GetByExternalID(cmd.Context(), args[0])
			if repository.IsNotFound(err) {
				return fmt.Errorf("identity %s no existe", args[0])
			}
			if err != nil {
				return err
			}
			out := map[string]any{
				"external_id":      rec.ExternalID,
				"provider":         rec.Provider,
				"local_user_id":    rec.LocalUserID,
				"email":            rec.Email,
				"tenant_id":        rec.TenantID,
				"keystone_user_id": rec.KeystoneUserID,
				"provisioned":      rec.Provisioned(),
				"created_at":       rec.CreatedAt,
				"updated_at":       rec.UpdatedAt,
			}
			b, _ := json.MarshalIndent(out, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <external-id>",
		Short: "Borra la identidad y su usuario local. No toca Keystone.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openStore(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := cmd.Context()
			rec, err := conn.Identities().GetByExternalID(ctx, args[0])
			if repository.IsNotFound(err) {
				return fmt.Errorf("identity %s no existe", args[0])
			}
			if err != nil {
				return err
			}
			// el usuario local arrastra la identidad por cascade
			if err := conn.LocalUsers().Delete(ctx, rec.LocalUserID); err != nil && !repository.IsNotFound(err) {
				return err
			}
			if err := conn.Identities().Delete(ctx, rec.ExternalID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (local user %s)\n", rec.ExternalID, rec.LocalUserID)
			return nil
		},
	}

	identityCmd.AddCommand(showCmd, deleteCmd)
	return identityCmd
}
