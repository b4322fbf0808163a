package inference

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

var fixedNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestInferencer() *Inferencer {
	return NewInferencer(Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
	})
}

func newDoc(items ...domain.LineItem) *domain.CanonicalDocument {
	return &domain.CanonicalDocument{
		ID:        "doc-1",
		Parties:   map[domain.PartyRole]*domain.Party{},
		LineItems: items,
		Confidence: domain.ExtractionConfidence{
			PerField: map[string]float64{},
		},
	}
}

func signalsFor(signals []domain.InferenceSignal, rule string) []domain.InferenceSignal {
	var out []domain.InferenceSignal
	for _, s := range signals {
		if s.RuleName == rule {
			out = append(out, s)
		}
	}
	return out
}

func findField(signals []domain.InferenceSignal, field string) (domain.InferenceSignal, bool) {
	for _, s := range signals {
		if s.FieldName == field {
			return s, true
		}
	}
	return domain.InferenceSignal{}, false
}

func TestInferVATFromRateAndPreTaxTotal(t *testing.T) {
	doc := newDoc(domain.LineItem{LineNumber: 1, Description: "Pump", Quantity: 10, UnitPrice: 100, UnitOfMeasure: "EACH"})
	doc.CommercialTerms.VATRate = domain.Float64Ptr(15)

	signals, failures, err := newTestInferencer().Infer(doc, "PURCHASE ORDER\nVAT 15%")
	if err != nil || len(failures) != 0 {
		t.Fatalf("unexpected err/failures: %v %v", err, failures)
	}
	if doc.CommercialTerms.VATAmount == nil || *doc.CommercialTerms.VATAmount != 150 {
		t.Fatalf("expected vat 150.00, got %v", doc.CommercialTerms.VATAmount)
	}
	vat, ok := findField(signals, "commercial_terms.vat_amount")
	if !ok || vat.Confidence != 0.95 || vat.RuleName != RuleVAT {
		t.Fatalf("unexpected vat signal %+v", vat)
	}
	if doc.CommercialTerms.TotalAmount == nil || *doc.CommercialTerms.TotalAmount != 1150 {
		t.Fatalf("expected total 1150, got %v", doc.CommercialTerms.TotalAmount)
	}
}

func TestInferLineTotalsRoundTrip(t *testing.T) {
	doc := newDoc(
		domain.LineItem{LineNumber: 1, Description: "Bolts", Quantity: 10, UnitPrice: 5.00},
		domain.LineItem{LineNumber: 2, Description: "Nuts", Quantity: 10, UnitPrice: 5.00, DiscountPercentage: domain.Float64Ptr(20)},
	)
	if _, _, err := newTestInferencer().Infer(doc, ""); err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if doc.LineItems[0].TotalPrice != 50 {
		t.Fatalf("expected 50.00, got %.4f", doc.LineItems[0].TotalPrice)
	}
	if doc.LineItems[1].TotalPrice != 40 {
		t.Fatalf("expected 40.00, got %.4f", doc.LineItems[1].TotalPrice)
	}
}

func TestInferIsIdempotentForTotals(t *testing.T) {
	doc := newDoc(domain.LineItem{LineNumber: 1, Description: "Steel Rebar 12mm", Quantity: 100, UnitPrice: 4.5, TotalPrice: 500})
	inf := newTestInferencer()

	first, _, err := inf.Infer(doc, "")
	if err != nil {
		t.Fatalf("first Infer: %v", err)
	}
	mismatch := signalsFor(first, RuleLineItemTotals)
	if len(mismatch) != 1 || !mismatch[0].RequiresReview {
		t.Fatalf("expected one mismatch signal, got %+v", mismatch)
	}
	if doc.LineItems[0].TotalPrice != 450 || !doc.LineItems[0].HasFlag(FlagTotalMismatch) {
		t.Fatalf("unexpected item after first pass %+v", doc.LineItems[0])
	}

	second, _, err := inf.Infer(doc, "")
	if err != nil {
		t.Fatalf("second Infer: %v", err)
	}
	if got := signalsFor(second, RuleLineItemTotals); len(got) != 0 {
		t.Fatalf("second pass must not report totals, got %+v", got)
	}
	if len(doc.LineItems[0].ReviewFlags) != 1 {
		t.Fatalf("review flags must not duplicate: %v", doc.LineItems[0].ReviewFlags)
	}
	if len(second) != 0 {
		t.Fatalf("second pass must be a no-op, got %+v", second)
	}
}

func TestInferCurrency(t *testing.T) {
	doc := newDoc(domain.LineItem{Description: "Cable", Quantity: 1, UnitPrice: 1})
	signals, _, _ := newTestInferencer().Infer(doc, "Grand total USD 1,000")
	if doc.CommercialTerms.Currency != "USD" || doc.LineItems[0].Currency != "USD" {
		t.Fatalf("expected USD, got %q/%q", doc.CommercialTerms.Currency, doc.LineItems[0].Currency)
	}
	if s, _ := findField(signals, "commercial_terms.currency"); s.Confidence != 0.85 || s.RequiresReview {
		t.Fatalf("unexpected currency signal %+v", s)
	}

	doc = newDoc()
	signals, _, _ = newTestInferencer().Infer(doc, "no money markers here")
	if doc.CommercialTerms.Currency != DefaultCurrency {
		t.Fatalf("expected default currency, got %q", doc.CommercialTerms.Currency)
	}
	if s, _ := findField(signals, "commercial_terms.currency"); s.Confidence != 0.5 || !s.RequiresReview {
		t.Fatalf("default currency must be low confidence and reviewed: %+v", s)
	}
}

func TestInferConfiguredDefaultCurrency(t *testing.T) {
	inf := NewInferencer(Options{DefaultCurrency: "aed", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	doc := newDoc()
	if _, _, err := inf.Infer(doc, ""); err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if doc.CommercialTerms.Currency != "AED" {
		t.Fatalf("expected AED, got %q", doc.CommercialTerms.Currency)
	}
}

func TestInferUnitNormalization(t *testing.T) {
	doc := newDoc(
		domain.LineItem{Description: "Cement", Quantity: 2, UnitPrice: 300, UnitOfMeasure: "MT"},
		domain.LineItem{Description: "Valves", Quantity: 4, UnitPrice: 80, UnitOfMeasure: "pcs"},
		domain.LineItem{Description: "Survey", Quantity: 1, UnitPrice: 900},
	)
	if _, _, err := newTestInferencer().Infer(doc, ""); err != nil {
		t.Fatalf("Infer: %v", err)
	}
	got := []string{doc.LineItems[0].UnitOfMeasure, doc.LineItems[1].UnitOfMeasure, doc.LineItems[2].UnitOfMeasure}
	want := []string{"TON", "PIECE", DefaultUnit}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("units = %v, want %v", got, want)
		}
	}
}

func TestInferDiscountAppliesToItemsWithoutOne(t *testing.T) {
	doc := newDoc(
		domain.LineItem{Description: "Chair", Quantity: 10, UnitPrice: 10},
		domain.LineItem{Description: "Desk", Quantity: 1, UnitPrice: 100, DiscountPercentage: domain.Float64Ptr(0)},
	)
	if _, _, err := newTestInferencer().Infer(doc, "A 10% discount applies to all items."); err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if d := doc.LineItems[0].DiscountPercentage; d == nil || *d != 10 || doc.LineItems[0].TotalPrice != 90 {
		t.Fatalf("unexpected discounted item %+v", doc.LineItems[0])
	}
	if d := doc.LineItems[1].DiscountPercentage; d == nil || *d != 0 || doc.LineItems[1].TotalPrice != 100 {
		t.Fatalf("item with its own discount must be kept %+v", doc.LineItems[1])
	}
}

func TestInferPaymentIncotermsAndDelivery(t *testing.T) {
	issue := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	doc := newDoc(domain.LineItem{Description: "Transformer", Quantity: 1, UnitPrice: 1000})
	doc.Dates.IssueDate = &issue
	text := "Terms: 30% advance, balance in milestones.\nDelivery within 6 weeks, FOB Jeddah. Net 30 days."

	signals, failures, err := newTestInferencer().Infer(doc, text)
	if err != nil || len(failures) != 0 {
		t.Fatalf("unexpected err/failures %v %v", err, failures)
	}
	ct := doc.CommercialTerms
	if !ct.AdvancePayment || ct.AdvancePaymentPercentage == nil || *ct.AdvancePaymentPercentage != 30 {
		t.Fatalf("unexpected advance payment %+v", ct)
	}
	if !ct.MilestonePayments || ct.Incoterms != "FOB" || ct.PaymentTerms != "Net 30 days" {
		t.Fatalf("unexpected terms %+v", ct)
	}
	want := issue.AddDate(0, 0, 42)
	if doc.Dates.DeliveryDate == nil || !doc.Dates.DeliveryDate.Equal(want) {
		t.Fatalf("expected delivery %v, got %v", want, doc.Dates.DeliveryDate)
	}
	if _, ok := findField(signals, "dates.delivery_date"); !ok {
		t.Fatalf("expected delivery date signal")
	}
}

func TestInferPartyContactsPreferMatchingDomain(t *testing.T) {
	doc := newDoc()
	doc.Parties[domain.PartyIssuer] = &domain.Party{Name: "Gulf Steel Trading"}
	text := "Contact procurement@alnoor.sa or sales@gulfsteel.com"

	signals, _, _ := newTestInferencer().Infer(doc, text)
	if doc.Parties[domain.PartyIssuer].Email != "sales@gulfsteel.com" {
		t.Fatalf("unexpected email %q", doc.Parties[domain.PartyIssuer].Email)
	}
	if s, _ := findField(signals, "parties.issuer.email"); s.Confidence != 0.7 || s.RequiresReview {
		t.Fatalf("unexpected email signal %+v", s)
	}
}

func TestInferFlagsIncompleteItems(t *testing.T) {
	doc := newDoc(domain.LineItem{LineNumber: 3, Description: "", Quantity: 0, UnitPrice: 12})
	inf := newTestInferencer()
	if _, _, err := inf.Infer(doc, ""); err != nil {
		t.Fatalf("Infer: %v", err)
	}
	item := doc.LineItems[0]
	for _, flag := range []string{FlagMissingQuantity, FlagMissingTotal, FlagMissingDescription} {
		if !item.HasFlag(flag) {
			t.Fatalf("expected flag %s in %v", flag, item.ReviewFlags)
		}
	}
	if item.HasFlag(FlagMissingUnitPrice) {
		t.Fatalf("price is present")
	}
	if len(doc.LineItems) != 1 {
		t.Fatalf("items must never be deleted")
	}

	signals, _, _ := inf.Infer(doc, "")
	if got := signalsFor(signals, RuleLineItemValidation); len(got) != 0 {
		t.Fatalf("flags must not be re-added: %+v", got)
	}
}

func TestInferIsolatesFailingRules(t *testing.T) {
	rules := []Rule{
		{Name: "boom", Apply: func(*domain.CanonicalDocument, string) ([]domain.InferenceSignal, error) {
			var counts map[string]int
			counts["line_items"]++
			return nil, nil
		}},
		{Name: "broken", Apply: func(*domain.CanonicalDocument, string) ([]domain.InferenceSignal, error) {
			return nil, errors.New("bad field")
		}},
		{Name: "ok", Apply: func(doc *domain.CanonicalDocument, _ string) ([]domain.InferenceSignal, error) {
			doc.CommercialTerms.Incoterms = "DAP"
			return []domain.InferenceSignal{{FieldName: "commercial_terms.incoterms", InferredValue: "DAP", Confidence: 1}}, nil
		}},
	}
	inf := NewInferencerWithRules(Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
	}, rules)
	doc := newDoc()

	signals, failures, err := inf.Infer(doc, "")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(failures) != 2 || failures[0].RuleName != "boom" || failures[1].Message != "bad field" {
		t.Fatalf("unexpected failures %+v", failures)
	}
	if len(signals) != 1 || signals[0].RuleName != "ok" || doc.CommercialTerms.Incoterms != "DAP" {
		t.Fatalf("remaining rules must run: %+v", signals)
	}
	if doc.Metadata.ExtractionMethod != ExtractionMethodHybrid || !doc.Metadata.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected metadata %+v", doc.Metadata)
	}
}

func TestInferRejectsNilDocument(t *testing.T) {
	if _, _, err := newTestInferencer().Infer(nil, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
