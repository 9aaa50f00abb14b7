package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ohana-garden/almoner/internal/schema"
)

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Apply the declared indexes and constraints to the graph engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			g, err := newGraph(ctx, logger)
			if err != nil {
				return fmt.Errorf("schema: connecting to graph engine: %w", err)
			}
			defer func() { _ = g.Close(ctx) }()

			reg := schema.NewRegistry(logger)
			if err := reg.DeclareIndexes(ctx, g); err != nil {
				return fmt.Errorf("schema: %w", err)
			}

			fmt.Println("Schema applied")
			return nil
		},
	}
}
