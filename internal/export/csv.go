package export

import (
	"bytes"
	"encoding/csv"

	"gardenplan/internal/service"
)

// OverviewCSV renders the monthly report rows as UTF-8 CSV with a header
// line, one assignment per row.
func OverviewCSV(rows []service.ReportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "gardener", "address", "notes"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write([]string{row.Date, row.Gardener, row.Address, row.Notes}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
