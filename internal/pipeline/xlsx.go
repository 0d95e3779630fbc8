package pipeline

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/claims-cli/internal/model"
)

// ParseClaimsXLSX reads claims from the first sheet of an XLSX workbook,
// one claim per row with a header row, mirroring ParseClaimsCSV.
func ParseClaimsXLSX(path string) ([]model.Claim, []string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "claims: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.New("claims: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}

	return claimsFromRows(rows)
}
