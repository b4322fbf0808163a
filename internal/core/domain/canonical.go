package domain

import "time"

type PartyRole string

const (
	PartyIssuer    PartyRole = "issuer"
	PartyRecipient PartyRole = "recipient"
)

type Party struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	TaxID         string `json:"tax_id,omitempty"`
}

type DocumentMetadata struct {
	DocumentType     DocumentType `json:"document_type"`
	DocumentNumber   string       `json:"document_number"`
	Revision         string       `json:"revision,omitempty"`
	IssueDate        *time.Time   `json:"issue_date,omitempty"`
	SourceFile       string       `json:"source_file,omitempty"`
	ExtractionMethod string       `json:"extraction_method"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

type DocumentDates struct {
	IssueDate          *time.Time `json:"issue_date,omitempty"`
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`
	DeliveryDate       *time.Time `json:"delivery_date,omitempty"`
	ValidityDate       *time.Time `json:"validity_date,omitempty"`
}

type CommercialTerms struct {
	Currency                 string   `json:"currency"`
	Subtotal                 *float64 `json:"subtotal,omitempty"`
	VATRate                  *float64 `json:"vat_rate,omitempty"`
	VATAmount                *float64 `json:"vat_amount,omitempty"`
	TotalAmount              *float64 `json:"total_amount,omitempty"`
	DiscountPercentage       *float64 `json:"discount_percentage,omitempty"`
	Incoterms                string   `json:"incoterms,omitempty"`
	PaymentTerms             string   `json:"payment_terms,omitempty"`
	AdvancePayment           bool     `json:"advance_payment"`
	AdvancePaymentPercentage *float64 `json:"advance_payment_percentage,omitempty"`
	MilestonePayments        bool     `json:"milestone_payments"`
	DeliveryLeadTime         string   `json:"delivery_lead_time,omitempty"`
}

type LineItem struct {
	LineNumber         int      `json:"line_number"`
	Description        string   `json:"description"`
	Quantity           float64  `json:"quantity"`
	UnitOfMeasure      string   `json:"unit_of_measure"`
	UnitPrice          float64  `json:"unit_price"`
	TotalPrice         float64  `json:"total_price"`
	Currency           string   `json:"currency,omitempty"`
	DiscountPercentage *float64 `json:"discount_percentage,omitempty"`
	DeliveryTime       string   `json:"delivery_time,omitempty"`
	ReviewFlags        []string `json:"review_flags,omitempty"`
}

// ExpectedTotal is quantity × unit price × (1 − discount/100), rounded to cents.
func (li LineItem) ExpectedTotal() float64 {
	total := li.Quantity * li.UnitPrice
	if li.DiscountPercentage != nil {
		total *= 1 - *li.DiscountPercentage/100
	}
	return RoundMoney(total)
}

// HasFlag reports whether the item already carries the review flag.
func (li LineItem) HasFlag(flag string) bool {
	for _, f := range li.ReviewFlags {
		if f == flag {
			return true
		}
	}
	return false
}

type RFQDetails struct {
	ScopeOfWork        string   `json:"scope_of_work,omitempty"`
	EvaluationCriteria []string `json:"evaluation_criteria,omitempty"`
}

type QuotationDetails struct {
	ValidityDays *int   `json:"validity_days,omitempty"`
	ReferenceRFQ string `json:"reference_rfq,omitempty"`
}

type PurchaseOrderDetails struct {
	ReferenceQuotation string `json:"reference_quotation,omitempty"`
	DeliveryAddress    string `json:"delivery_address,omitempty"`
}

type ContractDetails struct {
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	GoverningLaw  string     `json:"governing_law,omitempty"`
}

type ProjectContext struct {
	ProjectName string `json:"project_name,omitempty"`
	ProjectCode string `json:"project_code,omitempty"`
	Location    string `json:"location,omitempty"`
}

type DocumentSignals struct {
	Categories     []string `json:"categories,omitempty"`
	RiskIndicators []string `json:"risk_indicators,omitempty"`
}

type ExtractionConfidence struct {
	Overall       float64            `json:"overall"`
	PerField      map[string]float64 `json:"per_field"`
	MissingFields []string           `json:"missing_fields"`
}

// CanonicalDocument is the structured record produced by one pipeline run.
// At most one of the type-specific payloads is populated.
type CanonicalDocument struct {
	ID              string                `json:"id"`
	Metadata        DocumentMetadata      `json:"metadata"`
	Parties         map[PartyRole]*Party  `json:"parties"`
	Dates           DocumentDates         `json:"dates"`
	CommercialTerms CommercialTerms       `json:"commercial_terms"`
	LineItems       []LineItem            `json:"line_items"`
	RFQ             *RFQDetails           `json:"rfq,omitempty"`
	Quotation       *QuotationDetails     `json:"quotation,omitempty"`
	PurchaseOrder   *PurchaseOrderDetails `json:"purchase_order,omitempty"`
	Contract        *ContractDetails      `json:"contract,omitempty"`
	ProjectContext  ProjectContext        `json:"project_context"`
	Signals         DocumentSignals       `json:"signals"`
	Confidence      ExtractionConfidence  `json:"extraction_confidence"`
}

// Party returns the party for role or nil.
func (d *CanonicalDocument) Party(role PartyRole) *Party {
	if d == nil || d.Parties == nil {
		return nil
	}
	return d.Parties[role]
}

// LineItemsExpectedTotal sums the expected totals of all line items.
func (d *CanonicalDocument) LineItemsExpectedTotal() float64 {
	var sum float64
	for _, li := range d.LineItems {
		sum += li.ExpectedTotal()
	}
	return RoundMoney(sum)
}

// Touch stamps a new updated_at.
func (d *CanonicalDocument) Touch(now time.Time) {
	d.Metadata.UpdatedAt = now.UTC()
}
