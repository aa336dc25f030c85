// Package leadfile reads and maps lead workbooks, the XLSX files sales
// teams hand back after working an exported batch.
package leadfile

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/geoleads/leadgen-cli/internal/model"
)

// columnAliases maps workbook header names to lead fields. Matching is
// case-insensitive; both the export headers and the snake_case column
// names are accepted.
var columnAliases = map[string]string{
	"external id":   "external_id",
	"external_id":   "external_id",
	"name":          "name",
	"website":       "website",
	"phone":         "phone",
	"email":         "email",
	"email status":  "email_status",
	"email_status":  "email_status",
	"address":       "address",
	"city":          "city",
	"country":       "country",
	"location":      "location",
	"business type": "business_type",
	"business_type": "business_type",
	"record owner":  "record_owner",
	"record_owner":  "record_owner",
	"currency":      "currency",
	"source":        "source",
}

// ReadLeads reads the first sheet of a lead workbook. The first row
// must be a header; unknown columns are ignored. Rows without a name
// are skipped, and rows without an external ID get one derived from the
// name so re-imports stay idempotent.
func ReadLeads(path string, idFromName func(string) string) ([]model.Lead, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "leadfile: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("leadfile: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.Errorf("leadfile: %s has no data rows", path)
	}

	fields := headerFields(sheet.Rows[0])
	if _, ok := indexOf(fields, "name"); !ok {
		return nil, eris.Errorf("leadfile: %s is missing a name column", path)
	}

	now := time.Now().UTC()
	var leads []model.Lead
	for _, row := range sheet.Rows[1:] {
		lead := leadFromRow(row, fields, now)
		if lead.Name == "" {
			continue
		}
		if lead.ExternalID == "" && idFromName != nil {
			lead.ExternalID = idFromName(lead.Name)
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func headerFields(row *xlsx.Row) []string {
	fields := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		fields[i] = columnAliases[strings.ToLower(strings.TrimSpace(cell.String()))]
	}
	return fields
}

func indexOf(fields []string, name string) (int, bool) {
	for i, f := range fields {
		if f == name {
			return i, true
		}
	}
	return 0, false
}

func leadFromRow(row *xlsx.Row, fields []string, now time.Time) model.Lead {
	lead := model.Lead{
		EmailStatus:  model.EmailStatusUnverified,
		Source:       "Import",
		CreatedAt:    now,
		LastModified: now,
	}
	for i, cell := range row.Cells {
		if i >= len(fields) {
			break
		}
		value := strings.TrimSpace(cell.String())
		if value == "" {
			continue
		}
		switch fields[i] {
		case "external_id":
			lead.ExternalID = value
		case "name":
			lead.Name = value
		case "website":
			lead.Website = value
		case "phone":
			lead.Phone = value
		case "email":
			lead.Email = value
		case "email_status":
			lead.EmailStatus = model.EmailStatus(value)
		case "address":
			lead.Address = value
		case "city":
			lead.City = value
		case "country":
			lead.Country = value
		case "location":
			lead.Location = value
		case "business_type":
			lead.BusinessType = value
		case "record_owner":
			lead.RecordOwner = value
		case "currency":
			lead.Currency = value
		case "source":
			lead.Source = value
		}
	}
	return lead
}
