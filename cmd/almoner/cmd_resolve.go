package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/schema"
)

func resolveCmd() *cobra.Command {
	var (
		labelFlag    string
		stableIDFlag string
		nameFlag     string
		propsFlag    string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a candidate entity against the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			label := models.Label(labelFlag)
			if !label.IsValid() {
				return fmt.Errorf("resolve: unknown label %q (one of: %s)", labelFlag, labelList())
			}

			var props map[string]any
			if propsFlag != "" {
				if err := json.Unmarshal([]byte(propsFlag), &props); err != nil {
					return fmt.Errorf("resolve: parsing --properties: %w", err)
				}
			}

			g, err := newGraph(ctx, logger)
			if err != nil {
				return fmt.Errorf("resolve: connecting to graph engine: %w", err)
			}
			defer func() { _ = g.Close(ctx) }()

			reg := schema.NewRegistry(logger)
			st := newStore(g, reg, logger)
			eng := newEngine(st, newResolver(logger), logger)

			res, err := eng.Resolve(ctx, models.Candidate{
				Label:      label,
				StableID:   stableIDFlag,
				Name:       nameFlag,
				Properties: props,
			})
			if err != nil {
				return fmt.Errorf("resolve: %w", err)
			}

			fmt.Printf("Node:       %s\n", res.NodeID)
			fmt.Printf("Confidence: %.2f\n", res.Confidence)
			fmt.Printf("Factors:    %s\n", strings.Join(res.Factors, ", "))
			fmt.Printf("New:        %t\n", res.IsNew)
			return nil
		},
	}

	cmd.Flags().StringVar(&labelFlag, "label", "", "entity label (required)")
	cmd.Flags().StringVar(&stableIDFlag, "stable-id", "", "externally stable identifier, if known")
	cmd.Flags().StringVar(&nameFlag, "name", "", "display name")
	cmd.Flags().StringVar(&propsFlag, "properties", "", "additional properties as a JSON object")
	_ = cmd.MarkFlagRequired("label")

	return cmd
}

func labelList() string {
	parts := make([]string, len(models.ValidLabels))
	for i, l := range models.ValidLabels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}
