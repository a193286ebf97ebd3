package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eduforge/eduforge-go/internal/resources"
)

func newResourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Manage saved resources",
	}
	cmd.AddCommand(newResourcesListCmd())
	cmd.AddCommand(newResourcesDeleteCmd())
	return cmd
}

func newResourcesListCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved resources",
		Long: `Fetch the saved-resource library. --filter takes a boolean
expression over id, kind, title, and metadata, for example:
kind == "comic" && metadata.subject == "history"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			items, err := client.Resources().Sync(context.Background())
			if err != nil {
				return err
			}

			if filter != "" {
				program, err := resources.CompileFilter(filter)
				if err != nil {
					return err
				}
				items, err = resources.Filter(items, program)
				if err != nil {
					return err
				}
			}

			if len(items) == 0 {
				fmt.Println("No resources")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tTITLE\tCREATED")
			for _, r := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Title, r.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Boolean filter expression")
	return cmd
}

func newResourcesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.Resources().Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
