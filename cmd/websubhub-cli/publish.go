package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var topics []string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Notify the hub that topics have new content",
		Long: `Notify the hub that one or more topics changed. The hub fetches each topic and
distributes the content to its verified subscribers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := client.Publish(ctx, topics...); err != nil {
				return err
			}
			for _, topic := range topics {
				fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n", topic)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&topics, "topic", nil, "Topic URL, repeatable (required)")
	markRequired(cmd, "topic")

	return cmd
}
