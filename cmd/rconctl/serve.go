package main

import (
	"fmt"
	"os"

	"github.com/danmuck/rconctl/internal/auth"
	"github.com/danmuck/rconctl/internal/bridge"
	"github.com/danmuck/rconctl/internal/observability"
	"github.com/danmuck/rconctl/internal/rcon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Relay commands to one server over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defaultBridgeConfig()
			if configPath != "" {
				loaded, err := loadBridgeConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if listen != "" {
				cfg.Listen = listen
			}

			logger := observability.InitLogger(cfg.ID)
			t, err := cfg.targetFlags().resolve()
			if err != nil {
				return err
			}
			if cfg.PasswordEnv != "" && cfg.PasswordEnv != passwordEnv {
				if pw := os.Getenv(cfg.PasswordEnv); pw != "" {
					t.password = pw
				}
			}

			client, err := t.connect(rcon.NewMetrics(prometheus.DefaultRegisterer, "rconctl"))
			if err != nil {
				return err
			}
			defer client.Close()

			opts := bridge.Options{
				CorsOrigins: cfg.CorsOrigins,
				StripColors: cfg.StripColors,
			}
			if cfg.TokenEnv != "" {
				token := os.Getenv(cfg.TokenEnv)
				if token == "" {
					return fmt.Errorf("token_env %s is set but empty", cfg.TokenEnv)
				}
				opts.Auth = auth.StaticToken{Token: token}
			}
			srv := bridge.New(cfg.ID, client, opts)
			logger.Info().Msgf("bridge ready target=%s", client.Address())
			return srv.Serve(commandContext(cmd), cfg.Listen)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "bridge config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address override")

	return cmd
}

func (c bridgeConfig) targetFlags() *targetFlags {
	return &targetFlags{
		profilesFile: c.ProfilesFile,
		profile:      c.Profile,
		addr:         c.Addr,
		timeout:      c.Timeout,
	}
}
