package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to required services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			// Check graph engine
			g, err := newGraph(ctx, logger)
			if err != nil {
				fmt.Printf("Graph engine: FAIL (%v)\n", err)
				allOK = false
			} else {
				defer func() { _ = g.Close(ctx) }()
				if _, err := g.Query(ctx, "RETURN 1", nil); err != nil {
					fmt.Printf("Graph engine: FAIL (%v)\n", err)
					allOK = false
				} else {
					fmt.Println("Graph engine: OK")
				}
			}

			// Check external resolver (optional)
			res := newResolver(logger)
			if res == nil {
				fmt.Println("Resolver: SKIPPED (no base URL configured)")
			} else if connected, err := res.Health(ctx); err != nil {
				fmt.Printf("Resolver: DEGRADED (%v), cascade falls back to local tiers\n", err)
			} else if !connected {
				fmt.Println("Resolver: DEGRADED (service reports not connected)")
			} else {
				fmt.Println("Resolver: OK")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
