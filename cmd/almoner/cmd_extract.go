package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ohana-garden/almoner/internal/models"
	"github.com/ohana-garden/almoner/internal/resolver"
	"github.com/ohana-garden/almoner/internal/schema"
)

func extractCmd() *cobra.Command {
	var sourceFlag string

	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Extract entities from free text via the resolver and persist them",
		Long:  "Submits text (argument or stdin) to the external resolver's extraction endpoint, then resolves each mention through the cascade so it lands on a deduplicated node.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("extract: reading stdin: %w", err)
				}
				text = string(raw)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("extract: no text provided")
			}

			res := newResolver(logger)
			if res == nil {
				return fmt.Errorf("extract: no resolver configured; set ALMONER_RESOLVER_BASE_URL")
			}

			mentions, err := res.Extract(ctx, text, sourceFlag)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			if len(mentions) == 0 {
				fmt.Println("No entities found")
				return nil
			}

			g, err := newGraph(ctx, logger)
			if err != nil {
				return fmt.Errorf("extract: connecting to graph engine: %w", err)
			}
			defer func() { _ = g.Close(ctx) }()

			st := newStore(g, schema.NewRegistry(logger), logger)
			eng := newEngine(st, res, logger)

			for _, m := range mentions {
				label, ok := resolver.LabelFor(m.EntityType)
				if !ok {
					fmt.Printf("  skipped %q (unknown type %s)\n", m.Name, m.EntityType)
					continue
				}
				r, err := eng.Resolve(ctx, models.Candidate{
					Label:      label,
					Name:       m.Name,
					Properties: m.Properties,
				})
				if err != nil {
					return fmt.Errorf("extract: resolving %q: %w", m.Name, err)
				}
				status := "matched"
				if r.IsNew {
					status = "created"
				}
				fmt.Printf("  %s %s %q -> %s (%.2f, %s)\n", status, label, m.Name, r.NodeID, r.Confidence, strings.Join(r.Factors, ","))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceFlag, "source", "manual", "source tag recorded with the extraction")
	return cmd
}
