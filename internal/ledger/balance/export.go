package balance

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV renders the trial balance as CSV with two-decimal amounts.
func WriteCSV(w io.Writer, tb TrialBalance) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"code", "name", "type", "debit", "credit"}); err != nil {
		return err
	}
	for _, row := range tb.Accounts {
		record := []string{
			row.Code,
			row.Name,
			string(row.Type),
			fmt.Sprintf("%.2f", row.DebitBalance),
			fmt.Sprintf("%.2f", row.CreditBalance),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"TOTAL", "", "", fmt.Sprintf("%.2f", tb.TotalDebits), fmt.Sprintf("%.2f", tb.TotalCredits)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
