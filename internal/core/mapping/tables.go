package mapping

import (
	"sort"
	"strings"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

const isoCurrencyAlternation = `SAR|USD|EUR|GBP|AED|QAR|KWD|OMR|BHD|EGP|JOD|INR|CNY|JPY`

// KnownCurrency reports whether code is one of the ISO codes the pipeline recognizes.
func KnownCurrency(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return false
	}
	for _, c := range strings.Split(isoCurrencyAlternation, "|") {
		if c == code {
			return true
		}
	}
	return false
}

// CurrencySymbols maps printed symbols to ISO codes.
var CurrencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"﷼": "SAR",
}

var unitAliases = map[string]string{
	"ea":        "EACH",
	"each":      "EACH",
	"kg":        "KG",
	"kgs":       "KG",
	"kilogram":  "KG",
	"kilograms": "KG",
	"g":         "G",
	"m":         "M",
	"mtr":       "M",
	"meter":     "M",
	"meters":    "M",
	"metre":     "M",
	"lm":        "M",
	"m2":        "M2",
	"sqm":       "M2",
	"m3":        "M3",
	"cum":       "M3",
	"l":         "L",
	"ltr":       "L",
	"litre":     "L",
	"liter":     "L",
	"set":       "SET",
	"sets":      "SET",
	"lot":       "LOT",
	"ls":        "LOT",
	"box":       "BOX",
	"roll":      "ROLL",
	"bag":       "BAG",
	"bags":      "BAG",
	"hr":        "HOUR",
	"hrs":       "HOUR",
	"hour":      "HOUR",
	"hours":     "HOUR",
	"day":       "DAY",
	"days":      "DAY",
	"ton":       "TON",
	"tons":      "TON",
	"tonne":     "TON",
}

// rawUnits are abbreviations kept as printed; enrichment normalizes them.
var rawUnits = map[string]bool{
	"mt": true, "no": true, "nos": true, "pcs": true, "pc": true,
}

// normalizeUnit maps a unit cell to its canonical code. Unknown short codes are
// returned upper-cased; ok is false when the cell does not look like a unit.
func normalizeUnit(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "."))
	if key == "" {
		return "", false
	}
	if unit, ok := unitAliases[key]; ok {
		return unit, true
	}
	if rawUnits[key] {
		return strings.ToUpper(key), true
	}
	if len(key) <= 5 && isAlpha(key) {
		return strings.ToUpper(key), true
	}
	return "", false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return s != ""
}

type roleLabels struct {
	issuer    []string
	recipient []string
}

// partyLabels says which printed labels name the issuer and the recipient for
// each document type. The same label can flip roles between types.
var partyLabels = map[domain.DocumentType]roleLabels{
	domain.DocumentTypeRFQ: {
		issuer:    []string{"buyer", "purchaser", "client", "employer", "issued by", "from"},
		recipient: []string{"supplier", "vendor", "bidder", "tenderer", "to"},
	},
	domain.DocumentTypeBOQ: {
		issuer:    []string{"client", "employer", "prepared by", "consultant", "from"},
		recipient: []string{"contractor", "bidder", "tenderer", "to"},
	},
	domain.DocumentTypeQuotation: {
		issuer:    []string{"supplier", "vendor", "seller", "quoted by", "from"},
		recipient: []string{"customer", "client", "buyer", "prepared for", "to"},
	},
	domain.DocumentTypePurchaseOrder: {
		issuer:    []string{"buyer", "purchaser", "ordered by", "bill to", "from"},
		recipient: []string{"supplier", "vendor", "seller", "to"},
	},
	domain.DocumentTypeInvoice: {
		issuer:    []string{"supplier", "seller", "vendor", "bill from", "from"},
		recipient: []string{"bill to", "billed to", "sold to", "customer", "buyer", "client", "to"},
	},
	domain.DocumentTypeContract: {
		issuer:    []string{"employer", "client", "first party", "party a", "owner"},
		recipient: []string{"contractor", "supplier", "second party", "party b", "service provider"},
	},
}

var genericLabels = roleLabels{
	issuer:    []string{"issued by", "buyer", "client", "from"},
	recipient: []string{"supplier", "vendor", "contractor", "to"},
}

func labelsFor(t domain.DocumentType) roleLabels {
	if labels, ok := partyLabels[t]; ok {
		return labels
	}
	return genericLabels
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{category: "construction_materials", words: []string{"rebar", "cement", "concrete", "steel", "asphalt", "aggregate", "blockwork"}},
	{category: "electrical", words: []string{"cable", "transformer", "switchgear", "breaker", "lighting", "conduit"}},
	{category: "mechanical", words: []string{"pump", "valve", "hvac", "compressor", "chiller", "piping"}},
	{category: "it_equipment", words: []string{"laptop", "server", "software", "license", "router", "printer"}},
	{category: "services", words: []string{"consultancy", "maintenance", "installation", "commissioning", "manpower"}},
	{category: "office_supplies", words: []string{"stationery", "furniture", "paper", "toner"}},
}

var riskKeywords = []struct {
	indicator string
	phrases   []string
}{
	{indicator: "urgent_timeline", phrases: []string{"urgent", "asap", "immediate delivery", "as soon as possible"}},
	{indicator: "penalty_clause", phrases: []string{"penalty", "liquidated damages"}},
	{indicator: "advance_payment", phrases: []string{"advance payment", "payment in advance"}},
	{indicator: "single_source", phrases: []string{"single source", "sole source"}},
	{indicator: "price_volatility", phrases: []string{"subject to change", "subject to market", "price escalation"}},
}

// FindCurrencies returns the ISO codes named in text, by ISO code or symbol,
// in order of first appearance and without duplicates.
func FindCurrencies(text string) []string {
	type hit struct {
		pos  int
		code string
	}
	var hits []hit
	for _, loc := range currencyCode.FindAllStringIndex(text, -1) {
		code := text[loc[0]:loc[1]]
		if code != strings.ToUpper(code) {
			continue
		}
		hits = append(hits, hit{pos: loc[0], code: code})
	}
	for symbol, code := range CurrencySymbols {
		if i := strings.Index(text, symbol); i >= 0 {
			hits = append(hits, hit{pos: i, code: code})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]bool)
	var out []string
	for _, h := range hits {
		if !seen[h.code] {
			seen[h.code] = true
			out = append(out, h.code)
		}
	}
	return out
}
