package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eduforge/eduforge-go/internal/assemble"
	eduforge "github.com/eduforge/eduforge-go/sdk/go/eduforge"
)

func newComicCmd() *cobra.Command {
	var (
		topic   string
		panels  int
		subject string
		grade   string
		save    bool
		title   string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "comic",
		Short: "Generate a comic strip panel by panel",
		Long: `Request a comic generation and report each panel as its image
arrives. Panels may arrive out of order; they are kept ordered by
their panel index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" {
				return fmt.Errorf("--topic is required")
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			go func() {
				<-ctx.Done()
				client.Abort()
			}()

			req := eduforge.ComicRequest{
				Topic:   topic,
				Panels:  panels,
				Subject: subject,
				Grade:   grade,
			}
			snap, err := client.GenerateComic(ctx, req, func(index int) {
				fmt.Printf("panel %d ready\n", index)
			})
			if err != nil {
				if len(snap.Parts) > 0 {
					fmt.Fprintf(os.Stderr, "[generation failed after %d panels]\n", len(snap.Parts))
				}
				return err
			}

			fmt.Printf("Generated %d panels\n", len(snap.Parts))
			if outDir != "" {
				if err := writePanels(outDir, snap); err != nil {
					return err
				}
			}

			if save {
				saved, err := client.SaveComic(context.Background(), title, map[string]string{
					"subject": subject,
					"grade":   grade,
				})
				if err != nil {
					return fmt.Errorf("save failed: %w", err)
				}
				fmt.Printf("Saved as %s\n", saved.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic for the comic")
	cmd.Flags().IntVar(&panels, "panels", 4, "Number of panels to request")
	cmd.Flags().StringVar(&subject, "subject", "", "School subject metadata")
	cmd.Flags().StringVar(&grade, "grade", "", "Grade level metadata")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the comic after completion")
	cmd.Flags().StringVar(&title, "title", "", "Title for the saved resource")
	cmd.Flags().StringVar(&outDir, "out", "", "Write panel images to this directory")

	return cmd
}

// writePanels dumps base64 panels to PNG files; panels delivered as
// URLs are listed for the caller to fetch.
func writePanels(dir string, snap assemble.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, part := range snap.Parts {
		if part.Data == "" {
			fmt.Printf("panel %d: %s\n", part.Index, part.URL)
			continue
		}
		img, err := base64.StdEncoding.DecodeString(part.Data)
		if err != nil {
			return fmt.Errorf("decode panel %d: %w", part.Index, err)
		}
		name := filepath.Join(dir, fmt.Sprintf("panel-%02d.png", part.Index))
		if err := os.WriteFile(name, img, 0o644); err != nil {
			return fmt.Errorf("write panel %d: %w", part.Index, err)
		}
		fmt.Printf("panel %d -> %s\n", part.Index, name)
	}
	return nil
}
