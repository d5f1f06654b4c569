package render

import (
	"bytes"

	"github.com/smallbiznis/quickinvoice/internal/currency"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

// HistoryWorkbook writes the history list as a spreadsheet, one row per
// saved invoice.
func HistoryWorkbook(entries []domain.Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), historySheet); err != nil {
		return nil, err
	}

	header := []interface{}{
		"id",
		"saved_at",
		"invoice_number",
		"client_name",
		"issue_date",
		"due_date",
		"currency",
		"total",
		"total_formatted",
	}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(historySheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, e := range entries {
		values := []interface{}{
			e.ID,
			e.SavedAt.UTC().Format("2006-01-02 15:04:05"),
			e.InvoiceNumber,
			e.ClientName,
			e.Data.Meta.IssueDate,
			e.Data.Meta.DueDate,
			e.Currency,
			e.Total,
			currency.Format(e.Total, e.Currency),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(historySheet, cell, &values); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(historySheet, "A", "I", 18); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
