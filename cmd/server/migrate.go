package main

import (
	"github.com/spf13/cobra"

	"linebot-relay-go/pkg/log"
)

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()

			if err := st.migrate(); err != nil {
				return err
			}
			log.Info("数据库迁移完成")
			return nil
		},
	}
}
