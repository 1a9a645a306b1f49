package main

import (
	"github.com/spf13/cobra"

	"linebot-relay-go/internal/config"
	"linebot-relay-go/pkg/log"
)

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "LINE webhook relay to a chat completion backend",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "Config file path (optional).")

	load := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
		return cfg, nil
	}

	cmd.AddCommand(newServeCmd(load))
	cmd.AddCommand(newMigrateCmd(load))
	cmd.AddCommand(newAdminCmd(load))
	cmd.AddCommand(newSeedCmd(load))
	return cmd
}

type configLoader func() (config.Config, error)
