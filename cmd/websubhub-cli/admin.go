package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const timeFormat = "2006-01-02 15:04:05"

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin commands (requires an admin token)",
		Long:  "Inspect subscriptions, statistics and recent deliveries of the hub",
	}

	cmd.AddCommand(newAdminSubscriptionsCommand())
	cmd.AddCommand(newAdminStatsCommand())
	cmd.AddCommand(newAdminDeliveriesCommand())

	return cmd
}

func newAdminSubscriptionsCommand() *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "List stored subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminSubscriptions(cmd, topic)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Only list subscriptions of this topic")

	return cmd
}

func newAdminStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show hub statistics",
		RunE:  runAdminStats,
	}
}

func newAdminDeliveriesCommand() *cobra.Command {
	var (
		topic string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "deliveries",
		Short: "List recent delivery attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminDeliveries(cmd, topic, limit)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Only list deliveries of this topic")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of deliveries")

	return cmd
}

func runAdminSubscriptions(cmd *cobra.Command, topic string) error {
	if err := requireToken(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	response, err := client.ListSubscriptions(ctx, topic)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(response.Subscriptions) == 0 {
		fmt.Fprintln(out, "No subscriptions found")
		return nil
	}

	fmt.Fprintf(out, "Found %d subscription(s):\n\n", response.Count)
	for i, sub := range response.Subscriptions {
		fmt.Fprintf(out, "%d. ID: %s\n", i+1, sub.ID)
		fmt.Fprintf(out, "   Topic: %s\n", sub.Topic)
		fmt.Fprintf(out, "   Callback: %s\n", sub.Callback)
		fmt.Fprintf(out, "   Signed: %t\n", sub.Signed)
		fmt.Fprintf(out, "   Expires: %s\n", sub.ExpiresAt.Format(timeFormat))
	}

	return nil
}

func runAdminStats(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stats, err := client.GetStats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Subscriptions: %d across %d topic(s)\n", stats.Subscriptions, stats.Topics)
	fmt.Fprintf(out, "Pending verifications: %d\n", stats.Pending)
	fmt.Fprintf(out, "Requests: %d accepted, %d verified, %d rejected, %d discarded\n",
		stats.Requests.Accepted, stats.Requests.Verified, stats.Requests.Rejected, stats.Requests.Discarded)
	fmt.Fprintf(out, "Publishes: %d (%d fetch failures, %d distributions)\n",
		stats.Publish.Publishes, stats.Publish.FetchFailures, stats.Publish.Distributions)
	fmt.Fprintf(out, "Deliveries: %d delivered, %d failed\n", stats.Deliveries.Delivered, stats.Deliveries.Failed)

	return nil
}

func runAdminDeliveries(cmd *cobra.Command, topic string, limit int) error {
	if err := requireToken(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	response, err := client.ListDeliveries(ctx, topic, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(response.Deliveries) == 0 {
		fmt.Fprintln(out, "No deliveries recorded")
		return nil
	}

	for _, d := range response.Deliveries {
		result := fmt.Sprintf("%d", d.StatusCode)
		if d.Error != "" {
			result = d.Error
		}
		fmt.Fprintf(out, "%s  %s -> %s  %s  (%s)\n",
			d.At.Format(timeFormat), d.Topic, d.Callback, result, time.Duration(d.DurationNS))
	}

	return nil
}
