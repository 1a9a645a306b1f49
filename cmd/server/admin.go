package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"linebot-relay-go/internal/repository"
	"linebot-relay-go/internal/service"
	"linebot-relay-go/pkg/log"
	"linebot-relay-go/pkg/token"
)

func newAdminCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var username, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
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

			auth := service.NewAuthService(repository.NewAdminUserRepository(st.db), nil,
				token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours))
			u, err := auth.CreateAdmin(cmd.Context(), username, password)
			if errors.Is(err, service.ErrAdminExists) {
				return fmt.Errorf("admin %q already exists", username)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id=%d)\n", u.Username, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "Admin username.")
	create.Flags().StringVar(&password, "password", "", "Admin password.")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
