package main

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute runs the riskwatch CLI.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "riskwatch",
		Short:         "Crypto asset risk monitoring and watch-rule alerting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), scoreCmd())
	return root.ExecuteContext(ctx)
}
