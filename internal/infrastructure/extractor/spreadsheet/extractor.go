package spreadsheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

// minTableCells is the number of filled cells that makes a row tabular; sparser
// rows (titles, "PO No: 17") become text lines.
const minTableCells = 3

func Decode(raw []byte, filename string) (domain.DocumentTextSource, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return domain.DocumentTextSource{}, domain.WrapError(domain.ErrInvalidInput, "decode spreadsheet", err)
	}
	defer func() {
		_ = book.Close()
	}()

	var lines []string
	var tables [][]string
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.DocumentTextSource{}, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			cells, filled := trimRow(row)
			switch {
			case filled == 0:
				continue
			case filled >= minTableCells:
				tables = append(tables, cells)
			default:
				lines = append(lines, joinFilled(cells))
			}
		}
	}
	return domain.DocumentTextSource{
		Text:     strings.Join(lines, "\n"),
		Tables:   tables,
		Filename: filename,
	}, nil
}

func trimRow(row []string) ([]string, int) {
	cells := make([]string, len(row))
	filled := 0
	for i, cell := range row {
		cells[i] = strings.TrimSpace(cell)
		if cells[i] != "" {
			filled++
		}
	}
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells, filled
}

func joinFilled(cells []string) string {
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
