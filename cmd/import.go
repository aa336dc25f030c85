package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geoleads/leadgen-cli/internal/geosearch"
	"github.com/geoleads/leadgen-cli/internal/leadfile"
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Import leads from an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := leadfile.ReadLeads(args[0], geosearch.ExternalID)
		if err != nil {
			return err
		}

		n, err := st.UpsertLeads(cmd.Context(), leads)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("leads", n),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
