package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/internal/store"
)

var (
	enrichIDs     []string
	enrichMissing bool
	enrichLimit   int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Find and verify email addresses for stored leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var leads []model.Lead
		switch {
		case len(enrichIDs) > 0:
			leads, err = env.store.GetLeadsByIDs(cmd.Context(), enrichIDs)
		case enrichMissing:
			leads, err = env.store.ListLeads(cmd.Context(), store.LeadFilter{
				MissingEmail: true,
				Limit:        enrichLimit,
			})
		default:
			return eris.New("either --ids or --missing is required")
		}
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			return eris.New("no leads matched")
		}

		job := env.tracker.Create(len(leads), leads[0].Name)
		results, err := env.orchestrator.Run(cmd.Context(), job.ID, leads)
		if err != nil {
			return err
		}

		summary := map[string]int{}
		for _, r := range results {
			summary[string(r.Status)]++
		}
		zap.L().Info("enrichment complete",
			zap.String("job", job.ID),
			zap.Int("leads", len(leads)),
			zap.Any("by_status", summary),
		)

		final, _ := env.tracker.Get(job.ID)
		return printJSON(map[string]any{
			"job":     final,
			"results": results,
		})
	},
}

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichIDs, "ids", nil, "lead external IDs to enrich")
	enrichCmd.Flags().BoolVar(&enrichMissing, "missing", false, "enrich all leads without an email")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 100, "maximum leads when using --missing")
	rootCmd.AddCommand(enrichCmd)
}
