package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.Logout(context.Background()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}
