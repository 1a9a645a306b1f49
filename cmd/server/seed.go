package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"linebot-relay-go/internal/repository"
	"linebot-relay-go/internal/service"
	"linebot-relay-go/pkg/log"
)

func newSeedCmd(load configLoader) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import prompt rules and skip keywords from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readSeedFile(file)
			if err != nil {
				return err
			}

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

			admin := service.NewAdminService(
				repository.NewPromptRuleRepository(st.db),
				repository.NewSkipKeywordRepository(st.db),
				repository.NewTurnRepository(st.db),
			)
			report, err := service.Seed(cmd.Context(), admin, data)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rules created: %d, keywords created: %d, skipped: %d\n",
				report.RulesCreated, report.KeywordsCreated, report.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "./configs/seed.yaml", "Seed file path.")
	return cmd
}

func readSeedFile(path string) (service.SeedData, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return service.SeedData{}, fmt.Errorf("读取导入文件失败: %w", err)
	}
	var data service.SeedData
	if err := v.Unmarshal(&data); err != nil {
		return service.SeedData{}, fmt.Errorf("解析导入文件失败: %w", err)
	}
	return data, nil
}
