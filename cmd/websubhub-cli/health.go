package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/websubhub/internal/grpchealth"
)

func newHealthCommand() *cobra.Command {
	var grpcAddr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check hub health",
		Long:  "Check the health of the hub over HTTP, or over the gRPC health protocol with --grpc",
		RunE: func(cmd *cobra.Command, args []string) error {
			if grpcAddr != "" {
				return runGRPCHealth(cmd, grpcAddr)
			}
			return runHealth(cmd)
		},
	}

	cmd.Flags().StringVar(&grpcAddr, "grpc", "", "gRPC health address, e.g. localhost:9090")

	return cmd
}

func runHealth(cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	health, err := client.GetHealth(ctx)
	if health == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if health.Healthy {
		fmt.Fprintf(out, "Hub %s is healthy\n", hubURL)
	} else {
		fmt.Fprintf(out, "Hub %s is not healthy\n", hubURL)
	}
	fmt.Fprintf(out, "Store: %t\n", health.StoreHealthy)
	fmt.Fprintf(out, "Workers: %t\n", health.WorkersRunning)
	fmt.Fprintf(out, "Pending verifications: %d\n", health.Pending)
	fmt.Fprintf(out, "Queued tasks: %d\n", health.QueuedTasks)
	fmt.Fprintf(out, "Active tasks: %d\n", health.ActiveTasks)
	if health.Message != "" {
		fmt.Fprintf(out, "Message: %s\n", health.Message)
	}

	return err
}

func runGRPCHealth(cmd *cobra.Command, addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	status, err := grpchealth.Check(ctx, addr, grpchealth.ServiceName)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", grpchealth.ServiceName, status)
	if status != "SERVING" {
		return fmt.Errorf("hub is %s", status)
	}
	return nil
}
