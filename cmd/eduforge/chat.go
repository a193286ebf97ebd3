package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eduforge/eduforge-go/internal/config"
	eduforge "github.com/eduforge/eduforge-go/sdk/go/eduforge"
)

func newChatCmd() *cobra.Command {
	var (
		message     string
		sessionID   string
		save        bool
		title       string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Stream an AI tutor reply",
		Long: `Send a message to the AI tutor and print the reply as it streams.
Ctrl-C aborts the in-flight generation; partial output is kept
visible. With --interactive, keeps the conversation open and reloads
the config file on change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if interactive {
				return chatInteractive(ctx, client, sessionID)
			}

			if message == "" {
				return fmt.Errorf("--message is required (or use --interactive)")
			}

			if err := chatOnce(ctx, client, sessionID, message); err != nil {
				return err
			}

			if save {
				saved, err := client.SaveChat(context.Background(), title, nil)
				if err != nil {
					return fmt.Errorf("save failed: %w", err)
				}
				fmt.Printf("Saved as %s\n", saved.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "Message to send to the tutor")
	cmd.Flags().StringVar(&sessionID, "session", "", "Conversation session ID (generated when omitted)")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the reply after completion")
	cmd.Flags().StringVar(&title, "title", "", "Title for the saved resource")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read messages from stdin in a loop")

	return cmd
}

// chatOnce streams one reply to stdout. An abort (Ctrl-C) is not an
// error: the partial text stays on screen.
func chatOnce(ctx context.Context, client *eduforge.Client, sessionID, message string) error {
	go func() {
		<-ctx.Done()
		client.Abort()
	}()

	snap, err := client.StreamChat(ctx, eduforge.ChatRequest{SessionID: sessionID, Message: message},
		func(delta string) { fmt.Print(delta) })
	fmt.Println()

	if err != nil {
		if snap.Visible {
			fmt.Fprintln(os.Stderr, "[generation failed, partial reply shown above]")
		}
		return err
	}
	return nil
}

// chatInteractive reads messages line by line. Config changes on disk
// are picked up between turns.
func chatInteractive(ctx context.Context, client *eduforge.Client, sessionID string) error {
	err := config.Watch(ctx, configPath, nil, func(cfg *config.Config) {
		fmt.Fprintf(os.Stderr, "[config reloaded: log level %s]\n", cfg.Log.Level)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[config watch unavailable: %v]\n", err)
	}

	if sessionID == "" {
		sessionID = eduforge.NewSessionID()
	}
	fmt.Fprintf(os.Stderr, "[conversation %s, empty line or Ctrl-D to quit]\n", sessionID)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return nil
		}
		if err := chatOnce(ctx, client, sessionID, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
