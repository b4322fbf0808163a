package mapping

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

type column int

const (
	colNone column = iota
	colLine
	colDescription
	colQuantity
	colUnit
	colPrice
	colTotal
	colDiscount
	colCurrency
)

var (
	leadingLineNumber = regexp.MustCompile(`^\d{1,4}\.?$`)
	numberedLine      = regexp.MustCompile(`^(\d{1,4})\s*[.):|,\-]\s*(.+)$`)
	percentToken      = regexp.MustCompile(`\d\s*%`)
	summaryLabel      = regexp.MustCompile(`(?i)^(sub[\s-]*total|grand\s+total|net\s+total|total(\s+(amount|due|price|value))?|vat|tax|amount\s+due)\b[^a-z]*$`)
)

// extractLineItems parses pipe-delimited rows when present and falls back to
// numbered free-text lines otherwise. Rows that do not parse are skipped.
func extractLineItems(lines []string) []domain.LineItem {
	if items := tableItems(lines); len(items) > 0 {
		return items
	}
	return numberedItems(lines)
}

func splitCells(line string) []string {
	raw := strings.Split(line, "|")
	cells := make([]string, 0, len(raw))
	for _, c := range raw {
		cells = append(cells, strings.TrimSpace(c))
	}
	for len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func tableItems(lines []string) []domain.LineItem {
	var (
		header []column
		items  []domain.LineItem
	)
	for _, line := range lines {
		if strings.Count(line, "|") < 2 {
			continue
		}
		cells := splitCells(line)
		if len(cells) < 3 {
			continue
		}
		if cols, ok := headerColumns(cells); ok {
			header = cols
			continue
		}

		var (
			item domain.LineItem
			ok   bool
		)
		if header != nil {
			item, ok = headerRow(cells, header)
		} else {
			item, ok = positionalRow(cells)
		}
		if !ok || summaryLabel.MatchString(item.Description) {
			continue
		}
		if item.LineNumber == 0 {
			item.LineNumber = len(items) + 1
		}
		items = append(items, item)
	}
	return items
}

func classifyHeaderCell(cell string) column {
	c := strings.ToLower(cell)
	switch {
	case strings.Contains(c, "disc"):
		return colDiscount
	case strings.Contains(c, "total"), strings.Contains(c, "amount"), strings.Contains(c, "value"):
		return colTotal
	case strings.Contains(c, "price"), strings.Contains(c, "rate"), strings.Contains(c, "cost"):
		return colPrice
	case strings.Contains(c, "qty"), strings.Contains(c, "quantity"):
		return colQuantity
	case strings.Contains(c, "uom"), c == "unit", c == "units", c == "u/m":
		return colUnit
	case strings.Contains(c, "description"), strings.Contains(c, "particulars"), strings.Contains(c, "material"):
		return colDescription
	case c == "currency", c == "curr", c == "ccy":
		return colCurrency
	case c == "no", c == "no.", c == "#", c == "s/n", c == "sn", c == "sr", c == "sl", c == "item", c == "line", c == "item no":
		return colLine
	default:
		return colNone
	}
}

// headerColumns recognizes a header row: no numeric cells and at least two
// known columns, one of them quantity, price or description.
func headerColumns(cells []string) ([]column, bool) {
	cols := make([]column, len(cells))
	known := 0
	core := false
	for i, cell := range cells {
		if isNumericCell(cell) {
			return nil, false
		}
		cols[i] = classifyHeaderCell(cell)
		if cols[i] != colNone {
			known++
		}
		switch cols[i] {
		case colQuantity, colPrice, colDescription:
			core = true
		}
	}
	return cols, known >= 2 && core
}

func headerRow(cells []string, header []column) (domain.LineItem, bool) {
	var (
		item                domain.LineItem
		haveQty, havePrice  bool
		haveTotal           bool
		descriptionFallback string
	)
	for i, cell := range cells {
		if cell == "" {
			continue
		}
		col := colNone
		if i < len(header) {
			col = header[i]
		}
		switch col {
		case colLine:
			if n, err := strconv.Atoi(strings.TrimSuffix(cell, ".")); err == nil {
				item.LineNumber = n
			}
		case colDescription:
			item.Description = cell
		case colQuantity:
			item.Quantity, haveQty = parseNumber(cell)
		case colUnit:
			item.UnitOfMeasure, _ = normalizeUnit(cell)
		case colPrice:
			item.UnitPrice, havePrice = parseNumber(cell)
			if item.Currency == "" {
				item.Currency = currencyIn(cell)
			}
		case colTotal:
			item.TotalPrice, haveTotal = parseNumber(cell)
		case colDiscount:
			if d, ok := parseNumber(cell); ok {
				item.DiscountPercentage = domain.Float64Ptr(d)
			}
		case colCurrency:
			if KnownCurrency(cell) {
				item.Currency = strings.ToUpper(cell)
			}
		default:
			if descriptionFallback == "" && !isNumericCell(cell) {
				descriptionFallback = cell
			}
		}
	}
	if item.Description == "" {
		item.Description = descriptionFallback
	}
	if !haveQty || !havePrice || item.Description == "" {
		return domain.LineItem{}, false
	}
	if !haveTotal || item.TotalPrice == 0 {
		item.TotalPrice = item.ExpectedTotal()
	}
	return item, true
}

// positionalRow reads [line no] | description | numbers and a unit in any
// order: the first number is the quantity, the second the unit price and a
// third, when present, the line total.
func positionalRow(cells []string) (domain.LineItem, bool) {
	var item domain.LineItem
	idx := 0
	if len(cells) > 3 && leadingLineNumber.MatchString(cells[0]) {
		item.LineNumber, _ = strconv.Atoi(strings.TrimSuffix(cells[0], "."))
		idx = 1
	}
	for ; idx < len(cells); idx++ {
		if cells[idx] != "" && !isNumericCell(cells[idx]) {
			item.Description = cells[idx]
			idx++
			break
		}
	}
	if item.Description == "" {
		return domain.LineItem{}, false
	}

	var numbers []float64
	for _, cell := range cells[idx:] {
		switch {
		case cell == "":
		case percentToken.MatchString(cell):
			if d, ok := parseNumber(cell); ok && item.DiscountPercentage == nil {
				item.DiscountPercentage = domain.Float64Ptr(d)
			}
		case isNumericCell(cell):
			if v, ok := parseNumber(cell); ok {
				numbers = append(numbers, v)
			}
			if item.Currency == "" {
				item.Currency = currencyIn(cell)
			}
		case KnownCurrency(cell):
			item.Currency = strings.ToUpper(cell)
		default:
			if item.UnitOfMeasure == "" {
				if unit, ok := normalizeUnit(cell); ok {
					item.UnitOfMeasure = unit
				}
			}
		}
	}
	if len(numbers) < 2 {
		return domain.LineItem{}, false
	}
	item.Quantity = numbers[0]
	item.UnitPrice = numbers[1]
	if len(numbers) >= 3 && numbers[2] > 0 {
		item.TotalPrice = numbers[2]
	} else {
		item.TotalPrice = item.ExpectedTotal()
	}
	return item, true
}

// numberedItems handles lines such as "1. Cement bags, 50, bag, 12.00": the
// first numeric token is the quantity and the last the unit price.
func numberedItems(lines []string) []domain.LineItem {
	var items []domain.LineItem
	for _, line := range lines {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item, ok := numberedRow(m[1], m[2])
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

func numberedRow(lineNo, rest string) (domain.LineItem, bool) {
	var tokens []string
	switch {
	case strings.Contains(rest, "|"):
		tokens = strings.Split(rest, "|")
	case strings.Contains(rest, ","):
		tokens = strings.Split(rest, ",")
	default:
		tokens = strings.Fields(rest)
	}

	var (
		item    domain.LineItem
		numbers []float64
		words   []string
	)
	item.LineNumber, _ = strconv.Atoi(lineNo)
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		switch {
		case tok == "":
		case percentToken.MatchString(tok):
		case isNumericCell(tok):
			if v, ok := parseNumber(tok); ok {
				numbers = append(numbers, v)
			}
			if item.Currency == "" {
				item.Currency = currencyIn(tok)
			}
		case len(numbers) > 0 && item.UnitOfMeasure == "":
			if unit, ok := normalizeUnit(tok); ok {
				item.UnitOfMeasure = unit
			}
		case len(numbers) == 0:
			words = append(words, tok)
		}
	}
	if len(numbers) < 2 || len(words) == 0 {
		return domain.LineItem{}, false
	}
	item.Description = strings.Join(words, " ")
	item.Quantity = numbers[0]
	item.UnitPrice = numbers[len(numbers)-1]
	item.TotalPrice = item.ExpectedTotal()
	return item, true
}

var currencyCode = regexp.MustCompile(`(?i)\b(` + isoCurrencyAlternation + `)\b`)

func currencyIn(cell string) string {
	if m := currencyCode.FindStringSubmatch(cell); m != nil {
		return strings.ToUpper(m[1])
	}
	for symbol, code := range CurrencySymbols {
		if strings.Contains(cell, symbol) {
			return code
		}
	}
	return ""
}
