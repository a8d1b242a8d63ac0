package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/websubhub/pkg/hubclient"
)

func newSubscribeCommand() *cobra.Command {
	var (
		topic    string
		callback string
		secret   string
		lease    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe a callback to a topic",
		Long: `Ask the hub to subscribe a callback URL to a topic. The hub verifies the request
by calling the callback asynchronously; acceptance here does not mean the subscription is active.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(cmd, hubclient.SubscribeRequest{
				Topic:        topic,
				Callback:     callback,
				Secret:       secret,
				LeaseSeconds: int64(lease / time.Second),
			})
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic URL (required)")
	cmd.Flags().StringVar(&callback, "callback", "", "Callback URL (required)")
	cmd.Flags().StringVar(&secret, "secret", "", "Secret used to sign deliveries")
	cmd.Flags().DurationVar(&lease, "lease", 0, "Requested lease, e.g. 24h; the hub default applies when unset")
	markRequired(cmd, "topic", "callback")

	return cmd
}

func newUnsubscribeCommand() *cobra.Command {
	var (
		topic    string
		callback string
	)

	cmd := &cobra.Command{
		Use:   "unsubscribe",
		Short: "Unsubscribe a callback from a topic",
		Long:  "Ask the hub to remove a subscription. The hub verifies the request with the callback first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.Unsubscribe(ctx, topic, callback); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unsubscription of %s from %s accepted, pending verification\n", callback, topic)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic URL (required)")
	cmd.Flags().StringVar(&callback, "callback", "", "Callback URL (required)")
	markRequired(cmd, "topic", "callback")

	return cmd
}

func runSubscribe(cmd *cobra.Command, req hubclient.SubscribeRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Subscribe(ctx, req); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Subscription of %s to %s accepted, pending verification\n", req.Callback, req.Topic)
	if req.Secret != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Deliveries will be signed")
	}
	return nil
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("Failed to mark %s as required: %v", name, err))
		}
	}
}
