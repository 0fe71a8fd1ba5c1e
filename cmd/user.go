/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/devnovate/api/config"
	"github.com/devnovate/api/internal/db"
	"github.com/devnovate/api/internal/services"
	"github.com/devnovate/api/internal/store"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var promoteEmail string

// userPromoteCmd grants the admin role. New tokens pick it up on the next
// login.
var userPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Grant the admin role to a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn))
		user, err := users.Promote(cmd.Context(), promoteEmail)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no user with email %s", promoteEmail)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", user.Email, user.ID, user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userPromoteCmd)
	userPromoteCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the user to promote")
	_ = userPromoteCmd.MarkFlagRequired("email")
}
