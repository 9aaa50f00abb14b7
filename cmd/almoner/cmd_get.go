package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/schema"
)

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <label> <id>",
		Short: "Fetch one node and print its decoded properties",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			label := models.Label(args[0])
			if !label.IsValid() {
				return fmt.Errorf("get: unknown label %q (one of: %s)", args[0], labelList())
			}

			g, err := newGraph(ctx, logger)
			if err != nil {
				return fmt.Errorf("get: connecting to graph engine: %w", err)
			}
			defer func() { _ = g.Close(ctx) }()

			st := newStore(g, schema.NewRegistry(logger), logger)
			props, err := st.GetNode(ctx, label, args[1])
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(props)
		},
	}
}
