package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/websubhub/pkg/hubclient"
)

var (
	// Global flags
	hubURL  string
	token   string
	timeout time.Duration
	retries int

	// Global client instance
	client *hubclient.Client
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "websubhub-cli",
		Short: "WebSub hub command line interface",
		Long: `websubhub-cli talks to a WebSub hub. It can request subscriptions, notify the hub
of new content, check health and read the admin API.`,
		PersistentPreRunE: initializeClient,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVar(&hubURL, "hub", envOr("WEBSUBHUB_URL", "http://localhost:8080"), "Hub URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("WEBSUBHUB_TOKEN"), "Admin JWT for the admin commands")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 3, "Retries for unreachable or overloaded hubs")

	rootCmd.AddCommand(newSubscribeCommand())
	rootCmd.AddCommand(newUnsubscribeCommand())
	rootCmd.AddCommand(newPublishCommand())
	rootCmd.AddCommand(newHealthCommand())
	rootCmd.AddCommand(newAdminCommand())
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}

// initializeClient sets up the hub client with global configuration
func initializeClient(cmd *cobra.Command, args []string) error {
	// token generation is offline
	if cmd.Name() == "help" || cmd.Name() == "token" || cmd.Parent() == nil {
		return nil
	}

	maxRetries := retries
	if maxRetries == 0 {
		maxRetries = -1
	}

	var err error
	client, err = hubclient.NewClient(hubclient.Config{
		ServerURL:  hubURL,
		Token:      token,
		Timeout:    timeout,
		MaxRetries: maxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// requireToken checks that an admin token was provided
func requireToken() error {
	if client == nil {
		return fmt.Errorf("client not initialized")
	}
	if token == "" {
		return fmt.Errorf("admin token required - run 'websubhub-cli token' or provide --token")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
