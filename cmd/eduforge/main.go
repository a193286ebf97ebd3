// Package main is the entry point for the eduforge CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eduforge/eduforge-go/internal/config"
	eduforge "github.com/eduforge/eduforge-go/sdk/go/eduforge"
)

// Version information set at build time.
var version = "0.4.0"

// Global flags.
var (
	configPath string
	baseURL    string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eduforge",
		Short: "EduForge platform client",
		Long: `EduForge talks to the EduForge education platform: authenticate,
stream AI tutor replies and comic panel generations, and manage the
saved-resource library.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.eduforge/config.yaml)")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "Override backend base URL")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newWhoamiCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newComicCmd())
	root.AddCommand(newResourcesCmd())

	return root
}

// loadConfig resolves the effective configuration from file, env, and
// global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient() (*eduforge.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return eduforge.New(cfg)
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
