package inference

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/mapping"
)

const (
	DefaultCurrency = "SAR"
	DefaultUnit     = "EACH"

	FlagTotalMismatch      = "total_mismatch"
	FlagMissingQuantity    = "missing_quantity"
	FlagMissingUnitPrice   = "missing_unit_price"
	FlagMissingTotal       = "missing_total"
	FlagMissingDescription = "missing_description"
)

// Rule names, in execution order.
const (
	RuleCurrency           = "currency"
	RuleUnitOfMeasure      = "unit_of_measure"
	RuleDiscount           = "discount"
	RuleLineItemTotals     = "line_item_totals"
	RuleVAT                = "vat"
	RulePaymentTerms       = "payment_terms"
	RuleIncoterms          = "incoterms"
	RulePartyContacts      = "party_contacts"
	RuleDeliveryDate       = "delivery_date"
	RuleLineItemValidation = "line_item_validation"
)

var unitNormalization = map[string]string{
	"MT":  "TON",
	"NO":  "PIECE",
	"NOS": "PIECE",
	"PCS": "PIECE",
	"PC":  "PIECE",
}

var incotermsTable = []string{"EXW", "FOB", "CIF", "DDP", "DAP"}

var (
	incotermPattern  = regexp.MustCompile(`\b(` + strings.Join(incotermsTable, "|") + `)\b`)
	discountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:discount|disc\.?)\s*(?:of|@|:|-)?\s*(\d{1,2}(?:\.\d+)?)\s*%`),
		regexp.MustCompile(`(?i)\b(\d{1,2}(?:\.\d+)?)\s*%\s*(?:trade\s+|special\s+|volume\s+)?discount\b`),
	}
	vatRatePattern     = regexp.MustCompile(`(?i)\b(?:vat|tax)\s*(?:@|at|rate)?\s*[:\-]?\s*\(?\s*(\d{1,2}(?:\.\d+)?)\s*%`)
	advancePctPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d{1,3})\s*%\s*(?:advance|down\s*payment|upfront|in\s+advance)`),
		regexp.MustCompile(`(?i)\badvance\s+payment\s*(?:of\s*)?[:\-]?\s*(\d{1,3})\s*%`),
	}
	advancePhrase      = regexp.MustCompile(`(?i)\b(?:advance\s+payment|payment\s+in\s+advance|down\s*payment)\b`)
	milestonePhrase    = regexp.MustCompile(`(?i)\b(?:milestones?|progress\s+payments?|stage\s+payments?|payment\s+schedule)\b`)
	netTermsPhrase     = regexp.MustCompile(`(?i)\b(net\s+\d{1,3}(?:\s+days)?|\d{1,3}\s+days\s+(?:from|after)\s+(?:invoice|delivery|receipt)(?:\s+date)?)\b`)
	leadTimePattern    = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:working\s+|calendar\s+)?(days?|weeks?|months?)\b`)
	deliveryLeadPhrase = regexp.MustCompile(`(?i)\b(?:deliver(?:y|ed)?|lead\s*time|dispatch|shipment)\b[^.\n]{0,40}?\b(\d{1,3})\s*(?:working\s+|calendar\s+)?(days?|weeks?|months?)\b`)
)

// DefaultRules returns the built-in rule set in its stable execution order.
func DefaultRules(opts Options) []Rule {
	currency := strings.ToUpper(strings.TrimSpace(opts.DefaultCurrency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return []Rule{
		{Name: RuleCurrency, Apply: currencyRule(currency)},
		{Name: RuleUnitOfMeasure, Apply: unitOfMeasureRule},
		{Name: RuleDiscount, Apply: discountRule},
		{Name: RuleLineItemTotals, Apply: lineItemTotalsRule},
		{Name: RuleVAT, Apply: vatRule},
		{Name: RulePaymentTerms, Apply: paymentTermsRule},
		{Name: RuleIncoterms, Apply: incotermsRule},
		{Name: RulePartyContacts, Apply: partyContactsRule},
		{Name: RuleDeliveryDate, Apply: deliveryDateRule},
		{Name: RuleLineItemValidation, Apply: lineItemValidationRule},
	}
}

func itemField(i int, field string) string {
	return fmt.Sprintf("line_items[%d].%s", i, field)
}

func currencyRule(fallback string) func(*domain.CanonicalDocument, string) ([]domain.InferenceSignal, error) {
	return func(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, error) {
		var signals []domain.InferenceSignal
		terms := &doc.CommercialTerms
		if terms.Currency == "" {
			if found := mapping.FindCurrencies(text); len(found) > 0 {
				terms.Currency = found[0]
				signals = append(signals, domain.InferenceSignal{
					FieldName:     "commercial_terms.currency",
					InferredValue: found[0],
					Confidence:    0.85,
					Evidence:      fmt.Sprintf("currency marker %s found in text", found[0]),
				})
			} else {
				terms.Currency = fallback
				signals = append(signals, domain.InferenceSignal{
					FieldName:      "commercial_terms.currency",
					InferredValue:  fallback,
					Confidence:     0.5,
					Evidence:       "no currency marker found; default applied",
					RequiresReview: true,
				})
			}
		}
		for i := range doc.LineItems {
			if doc.LineItems[i].Currency == "" {
				doc.LineItems[i].Currency = terms.Currency
			}
		}
		return signals, nil
	}
}

func unitOfMeasureRule(doc *domain.CanonicalDocument, _ string) ([]domain.InferenceSignal, error) {
	var signals []domain.InferenceSignal
	for i := range doc.LineItems {
		item := &doc.LineItems[i]
		raw := strings.ToUpper(strings.TrimSpace(item.UnitOfMeasure))
		switch {
		case raw == "":
			item.UnitOfMeasure = DefaultUnit
			signals = append(signals, domain.InferenceSignal{
				FieldName:     itemField(i, "unit_of_measure"),
				InferredValue: DefaultUnit,
				Confidence:    0.5,
				Evidence:      "no unit given; default applied",
			})
		case unitNormalization[raw] != "":
			item.UnitOfMeasure = unitNormalization[raw]
			signals = append(signals, domain.InferenceSignal{
				FieldName:     itemField(i, "unit_of_measure"),
				InferredValue: item.UnitOfMeasure,
				Confidence:    0.9,
				Evidence:      fmt.Sprintf("%s normalized to %s", raw, item.UnitOfMeasure),
			})
		default:
			item.UnitOfMeasure = raw
		}
	}
	return signals, nil
}

// discountRule applies a document-wide percentage discount to every line item
// that has none and recomputes the totals of the items it touches.
func discountRule(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, error) {
	var signals []domain.InferenceSignal
	terms := &doc.CommercialTerms
	if terms.DiscountPercentage == nil {
		for _, re := range discountPatterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			pct, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, fmt.Errorf("parse discount %q: %w", m[1], err)
			}
			terms.DiscountPercentage = domain.Float64Ptr(pct)
			signals = append(signals, domain.InferenceSignal{
				FieldName:     "commercial_terms.discount_percentage",
				InferredValue: pct,
				Confidence:    0.8,
				Evidence:      strings.TrimSpace(m[0]),
			})
			break
		}
	}
	if terms.DiscountPercentage == nil {
		return signals, nil
	}

	pct := *terms.DiscountPercentage
	applied := 0
	for i := range doc.LineItems {
		item := &doc.LineItems[i]
		if item.DiscountPercentage != nil {
			continue
		}
		item.DiscountPercentage = domain.Float64Ptr(pct)
		if item.Quantity > 0 && item.UnitPrice > 0 {
			item.TotalPrice = item.ExpectedTotal()
		}
		applied++
	}
	if applied > 0 {
		signals = append(signals, domain.InferenceSignal{
			FieldName:     "line_items.discount_percentage",
			InferredValue: pct,
			Confidence:    0.75,
			Evidence:      fmt.Sprintf("document discount applied to %d line item(s)", applied),
		})
	}
	return signals, nil
}

// lineItemTotalsRule writes the recomputed total on every priced item.
// Differences beyond the tolerance are reported for review with the stated
// value as evidence.
func lineItemTotalsRule(doc *domain.CanonicalDocument, _ string) ([]domain.InferenceSignal, error) {
	var signals []domain.InferenceSignal
	for i := range doc.LineItems {
		item := &doc.LineItems[i]
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			continue
		}
		expected := item.ExpectedTotal()
		stated := item.TotalPrice
		switch {
		case stated == 0:
			signals = append(signals, domain.InferenceSignal{
				FieldName:     itemField(i, "total_price"),
				InferredValue: expected,
				Confidence:    0.9,
				Evidence:      "computed from quantity × unit price",
			})
		case math.Abs(stated-expected) > domain.TotalTolerance:
			signals = append(signals, domain.InferenceSignal{
				FieldName:      itemField(i, "total_price"),
				InferredValue:  expected,
				Confidence:     0.6,
				Evidence:       fmt.Sprintf("stated total %.2f differs from computed %.2f", stated, expected),
				RequiresReview: true,
			})
			if !item.HasFlag(FlagTotalMismatch) {
				item.ReviewFlags = append(item.ReviewFlags, FlagTotalMismatch)
			}
		}
		item.TotalPrice = expected
	}
	return signals, nil
}

func vatRule(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, error) {
	var signals []domain.InferenceSignal
	terms := &doc.CommercialTerms
	if terms.VATRate == nil {
		m := vatRatePattern.FindStringSubmatch(text)
		if m == nil {
			return nil, nil
		}
		rate, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse vat rate %q: %w", m[1], err)
		}
		terms.VATRate = domain.Float64Ptr(rate)
		signals = append(signals, domain.InferenceSignal{
			FieldName:     "commercial_terms.vat_rate",
			InferredValue: rate,
			Confidence:    0.85,
			Evidence:      strings.TrimSpace(m[0]),
		})
	}

	var base float64
	switch {
	case terms.Subtotal != nil:
		base = *terms.Subtotal
	case len(doc.LineItems) > 0:
		base = doc.LineItemsExpectedTotal()
		if base > 0 {
			terms.Subtotal = domain.Float64Ptr(base)
			signals = append(signals, domain.InferenceSignal{
				FieldName:     "commercial_terms.subtotal",
				InferredValue: base,
				Confidence:    0.9,
				Evidence:      "sum of line item totals",
			})
		}
	}
	if base <= 0 {
		return signals, nil
	}

	rate := *terms.VATRate
	vat := domain.RoundMoney(base * rate / 100)
	switch {
	case terms.VATAmount == nil:
		terms.VATAmount = domain.Float64Ptr(vat)
		signals = append(signals, domain.InferenceSignal{
			FieldName:     "commercial_terms.vat_amount",
			InferredValue: vat,
			Confidence:    0.95,
			Evidence:      fmt.Sprintf("%.2f%% of %.2f", rate, base),
		})
	case math.Abs(*terms.VATAmount-vat) > domain.TotalTolerance:
		signals = append(signals, domain.InferenceSignal{
			FieldName:      "commercial_terms.vat_amount",
			InferredValue:  vat,
			Confidence:     0.6,
			Evidence:       fmt.Sprintf("stated VAT %.2f differs from %.2f%% of %.2f", *terms.VATAmount, rate, base),
			RequiresReview: true,
		})
	}

	if terms.TotalAmount == nil {
		total := domain.RoundMoney(base + *terms.VATAmount)
		terms.TotalAmount = domain.Float64Ptr(total)
		signals = append(signals, domain.InferenceSignal{
			FieldName:     "commercial_terms.total_amount",
			InferredValue: total,
			Confidence:    0.9,
			Evidence:      "subtotal plus VAT",
		})
	}
	return signals, nil
}

func paymentTermsRule(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, error) {
	var signals []domain.InferenceSignal
	terms := &doc.CommercialTerms

	if !terms.AdvancePayment {
		for _, re := range advancePctPatterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			pct, err := strconv.ParseFloat(m[1], 64)
			if err != nil || pct <= 0 || pct > 100 {
				continue
			}
			terms.AdvancePayment = true
			terms.AdvancePaymentPercentage = domain.Float64Ptr(pct)
			signals = append(signals, domain.InferenceSignal{
				FieldName:     "commercial_terms.advance_payment_percentage",
				InferredValue: pct,
				Confidence:    0.85,
				Evidence:      strings.TrimSpace(m[0]),
			})
			break
		}
		if !terms.AdvancePayment {
			if m := advancePhrase.FindString(text); m != "" {
				terms.AdvancePayment = true
				signals = append(signals, domain.InferenceSignal{
					FieldName:     "commercial_terms.advance_payment",
					InferredValue: true,
					Confidence:    0.7,
					Evidence:      m,
				})
			}
		}
	}

	if !terms.MilestonePayments {
		if m := milestonePhrase.FindString(text); m != "" {
			terms.MilestonePayments = true
			signals = append(signals, domain.InferenceSignal{
				FieldName:     "commercial_terms.milestone_payments",
				InferredValue: true,
				Confidence:    0.75,
				Evidence:      m,
			})
		}
	}

	if terms.PaymentTerms == "" {
		if m := netTermsPhrase.FindStringSubmatch(text); m != nil {
			terms.PaymentTerms = strings.TrimSpace(m[1])
			signals = append(signals, domain.InferenceSignal{
				FieldName:     "commercial_terms.payment_terms",
				InferredValue: terms.PaymentTerms,
				Confidence:    0.7,
				Evidence:      m[0],
			})
		}
	}
	return signals, nil
}

func incotermsRule(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, error) {
	if doc.CommercialTerms.Incoterms != "" {
		return nil, nil
	}
	m := incotermPattern.FindString(text)
	if m == "" {
		return nil, nil
	}
	doc.CommercialTerms.Incoterms = m
	return []domain.InferenceSignal{{
		FieldName:     "commercial_terms.incoterms",
		InferredValue: m,
		Confidence:    0.9,
		Evidence:      fmt.Sprintf("token %s", m),
	}}, nil
}

// partyContactsRule fills missing e-mail addresses and phone numbers from the
// whole document. An address whose domain names the party is preferred;
// otherwise the next unclaimed value is used and marked for review.
func partyContactsRule(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, error) {
	var signals []domain.InferenceSignal
	claimedEmail := make(map[string]bool)
	claimedPhone := make(map[string]bool)
	roles := []domain.PartyRole{domain.PartyIssuer, domain.PartyRecipient}
	for _, role := range roles {
		if p := doc.Party(role); p != nil {
			claimedEmail[strings.ToLower(p.Email)] = p.Email != ""
			claimedPhone[p.Phone] = p.Phone != ""
		}
	}
	emails := mapping.FindEmails(text)
	phones := mapping.FindPhones(text)

	for _, role := range roles {
		p := doc.Party(role)
		if p == nil {
			continue
		}
		if p.Email == "" {
			if email, confident := pickEmail(p.Name, emails, claimedEmail); email != "" {
				p.Email = email
				claimedEmail[strings.ToLower(email)] = true
				conf := 0.5
				if confident {
					conf = 0.7
				}
				signals = append(signals, domain.InferenceSignal{
					FieldName:      "parties." + string(role) + ".email",
					InferredValue:  email,
					Confidence:     conf,
					Evidence:       "found in document text",
					RequiresReview: !confident,
				})
			}
		}
		if p.Phone == "" {
			for _, phone := range phones {
				if claimedPhone[phone] {
					continue
				}
				p.Phone = phone
				claimedPhone[phone] = true
				signals = append(signals, domain.InferenceSignal{
					FieldName:      "parties." + string(role) + ".phone",
					InferredValue:  phone,
					Confidence:     0.5,
					Evidence:       "found in document text",
					RequiresReview: true,
				})
				break
			}
		}
	}
	return signals, nil
}

func pickEmail(partyName string, emails []string, claimed map[string]bool) (string, bool) {
	var fallback string
	for _, email := range emails {
		key := strings.ToLower(email)
		if claimed[key] {
			continue
		}
		if fallback == "" {
			fallback = email
		}
		domainPart := key[strings.LastIndex(key, "@")+1:]
		for _, word := range strings.Fields(strings.ToLower(partyName)) {
			if len(word) >= 4 && strings.Contains(domainPart, word) {
				return email, true
			}
		}
	}
	return fallback, false
}

func deliveryDateRule(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, error) {
	if doc.Dates.DeliveryDate != nil || doc.Dates.IssueDate == nil {
		return nil, nil
	}
	var (
		n      int
		unit   string
		phrase string
	)
	if m := leadTimePattern.FindStringSubmatch(doc.CommercialTerms.DeliveryLeadTime); m != nil {
		n, _ = strconv.Atoi(m[1])
		unit, phrase = m[2], doc.CommercialTerms.DeliveryLeadTime
	} else if m := deliveryLeadPhrase.FindStringSubmatch(text); m != nil {
		n, _ = strconv.Atoi(m[1])
		unit, phrase = m[2], strings.TrimSpace(m[0])
	}
	if n <= 0 {
		return nil, nil
	}

	delivery := addLeadTime(*doc.Dates.IssueDate, n, unit)
	doc.Dates.DeliveryDate = &delivery
	return []domain.InferenceSignal{{
		FieldName:     "dates.delivery_date",
		InferredValue: delivery.Format("2006-01-02"),
		Confidence:    0.7,
		Evidence:      fmt.Sprintf("issue date %s + %s", doc.Dates.IssueDate.Format("2006-01-02"), phrase),
	}}, nil
}

func addLeadTime(from time.Time, n int, unit string) time.Time {
	switch strings.ToLower(strings.TrimSuffix(unit, "s")) {
	case "week":
		return from.AddDate(0, 0, 7*n)
	case "month":
		return from.AddDate(0, n, 0)
	default:
		return from.AddDate(0, 0, n)
	}
}

// lineItemValidationRule flags, never removes, items with missing essentials.
func lineItemValidationRule(doc *domain.CanonicalDocument, _ string) ([]domain.InferenceSignal, error) {
	var signals []domain.InferenceSignal
	for i := range doc.LineItems {
		item := &doc.LineItems[i]
		checks := []struct {
			flag    string
			missing bool
		}{
			{FlagMissingQuantity, item.Quantity <= 0},
			{FlagMissingUnitPrice, item.UnitPrice <= 0},
			{FlagMissingTotal, item.TotalPrice <= 0},
			{FlagMissingDescription, strings.TrimSpace(item.Description) == ""},
		}
		for _, c := range checks {
			if !c.missing || item.HasFlag(c.flag) {
				continue
			}
			item.ReviewFlags = append(item.ReviewFlags, c.flag)
			signals = append(signals, domain.InferenceSignal{
				FieldName:      itemField(i, "review_flags"),
				InferredValue:  c.flag,
				Confidence:     1,
				Evidence:       fmt.Sprintf("line %d", item.LineNumber),
				RequiresReview: true,
			})
		}
	}
	return signals, nil
}
