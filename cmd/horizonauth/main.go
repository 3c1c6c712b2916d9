package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/horizonauth/internal/config"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
)

// Seteadas con -ldflags en el build.
var (
	version = "dev"
	commit  = ""
)

func main() {
	var (
		cfgPath string
		envFile string
		cfg     *config.Config
	)

	root := &cobra.Command{
		Use:           "horizonauth",
		Short:         "Login social (Sina / Tencent Weibo) contra Keystone",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("cargando %s: %w", envFile, err)
				}
			}
			c, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = c
			logger.Init(logger.Config{
				Env:         c.App.Env,
				Level:       c.Log.Level,
				ServiceName: "horizonauth",
				Version:     version,
			})
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("HZ_CONFIG"), "Archivo YAML de configuración (env HZ_CONFIG)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Archivo .env a cargar si existe")

	cfgFn := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(cfgFn),
		newMigrateCmd(cfgFn),
		newIdentityCmd(cfgFn),
		&cobra.Command{
			Use:   "version",
			Short: "Imprime la versión",
			Run: func(*cobra.Command, []string) {
				if commit != "" {
					fmt.Printf("horizonauth %s (%s)\n", version, commit)
					return
				}
				fmt.Printf("horizonauth %s\n", version)
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
