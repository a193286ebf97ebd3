package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			principal, err := client.Me(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s> role=%s id=%s\n", principal.Name, principal.Email, principal.Role, principal.ID)
			return nil
		},
	}
}
