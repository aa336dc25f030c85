package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/geoleads/leadgen-cli/internal/model"
	"github.com/geoleads/leadgen-cli/internal/store"
)

var (
	exportOutput  string
	exportCity    string
	exportType    string
	exportMissing bool
	exportLimit   int
)

var exportHeader = []string{
	"External ID", "Name", "Website", "Phone", "Email", "Email Status",
	"Address", "City", "Country", "Location", "Business Type",
	"Record Owner", "Currency", "Source", "Created At",
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.ListLeads(cmd.Context(), store.LeadFilter{
			MissingEmail: exportMissing,
			City:         exportCity,
			BusinessType: exportType,
			Limit:        exportLimit,
		})
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			return eris.New("no leads matched")
		}

		if err := writeWorkbook(exportOutput, leads); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("output", exportOutput),
			zap.Int("leads", len(leads)),
		)
		return nil
	},
}

func writeWorkbook(path string, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}

	for _, l := range leads {
		row := sheet.AddRow()
		for _, v := range []string{
			l.ExternalID, l.Name, l.Website, l.Phone, l.Email, string(l.EmailStatus),
			l.Address, l.City, l.Country, l.Location, l.BusinessType,
			l.RecordOwner, l.Currency, l.Source, l.CreatedAt.Format("2006-01-02 15:04:05"),
		} {
			row.AddCell().SetString(v)
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "leads.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportCity, "city", "", "filter by city")
	exportCmd.Flags().StringVar(&exportType, "type", "", "filter by business type")
	exportCmd.Flags().BoolVar(&exportMissing, "missing-email", false, "only leads without an email")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "maximum leads to export")
	rootCmd.AddCommand(exportCmd)
}
