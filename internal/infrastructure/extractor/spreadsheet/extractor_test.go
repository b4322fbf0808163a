package spreadsheet

import (
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeSplitsTextAndTables(t *testing.T) {
	raw := workbook(t, [][]any{
		{"BILL OF QUANTITIES"},
		{"Project:", "Tower B"},
		{},
		{"Item", "Description", "Qty", "Unit", "Rate"},
		{1, "Excavation", 120, "m3", 35.5},
	})

	src, err := Decode(raw, "boq.xlsx")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if src.Text != "BILL OF QUANTITIES\nProject: Tower B" {
		t.Fatalf("unexpected text %q", src.Text)
	}
	if len(src.Tables) != 2 {
		t.Fatalf("expected 2 table rows, got %v", src.Tables)
	}
	if got := src.Tables[1]; len(got) != 5 || got[1] != "Excavation" || got[2] != "120" || got[4] != "35.5" {
		t.Fatalf("unexpected data row %v", got)
	}
}

func TestDecodeRejectsNonWorkbook(t *testing.T) {
	if _, err := Decode([]byte("not a zip"), "x.xlsx"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
