package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"stockledger/internal/dto"

	"github.com/xuri/excelize/v2"
)

// MaxExportRows caps one spreadsheet export.
const MaxExportRows = 50000

const historySheet = "History"

var historyHeadings = []string{
	"Date", "Code", "Change", "Quantity", "Stock before", "Stock after", "Order", "Comment",
}

// ExportHistory writes the filtered history, newest first, as an XLSX
// workbook. Paging fields of the filter are ignored.
func (s *ledgerService) ExportHistory(ctx context.Context, filter dto.HistoryFilter, w io.Writer) error {
	rf, err := historyFilter(filter)
	if err != nil {
		return err
	}
	entries, err := s.history.ListAll(ctx, rf, MaxExportRows)
	if err != nil {
		return persistence("export history", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return err
	}

	for i, h := range historyHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(historySheet, cell, h); err != nil {
			return err
		}
	}

	for i := range entries {
		e := &entries[i]
		order := ""
		if e.OrderRef != nil {
			order = *e.OrderRef
		}
		row := []interface{}{
			e.CreatedAt.UTC().Format(time.DateTime),
			e.Code,
			string(e.ChangeKind),
			e.Quantity,
			e.StockBefore,
			e.StockAfter,
			order,
			e.Comment,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("export row %d: %w", i+2, err)
		}
	}

	return f.Write(w)
}
