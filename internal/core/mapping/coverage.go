package mapping

import "github.com/kirillkom/procurement-intake/internal/core/domain"

var commonExpected = []string{
	"metadata.document_number",
	"dates.issue_date",
	"parties.issuer",
	"parties.recipient",
	"line_items",
	"commercial_terms.currency",
}

var typeExpected = map[domain.DocumentType][]string{
	domain.DocumentTypeRFQ:           {"dates.submission_deadline"},
	domain.DocumentTypeQuotation:     {"dates.validity_date", "commercial_terms.total_amount"},
	domain.DocumentTypePurchaseOrder: {"dates.delivery_date", "commercial_terms.total_amount"},
	domain.DocumentTypeInvoice:       {"commercial_terms.total_amount", "commercial_terms.vat_amount"},
	domain.DocumentTypeContract:      {"contract.effective_date"},
}

// MissingFields lists the expected fields for docType that the record lacks.
func MissingFields(doc *domain.CanonicalDocument, docType domain.DocumentType) []string {
	present := make(map[string]bool)
	for _, f := range PresentFields(doc) {
		present[f] = true
	}
	missing := []string{}
	expected := append(append([]string{}, commonExpected...), typeExpected[docType]...)
	for _, f := range expected {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// PresentFields lists the scalar fields the record carries, by dotted path.
// The pipeline reports its length as the number of mapped fields.
func PresentFields(doc *domain.CanonicalDocument) []string {
	var out []string
	add := func(path string, ok bool) {
		if ok {
			out = append(out, path)
		}
	}
	md := doc.Metadata
	add("metadata.document_number", md.DocumentNumber != "")
	add("metadata.revision", md.Revision != "")

	add("dates.issue_date", doc.Dates.IssueDate != nil)
	add("dates.submission_deadline", doc.Dates.SubmissionDeadline != nil)
	add("dates.delivery_date", doc.Dates.DeliveryDate != nil)
	add("dates.validity_date", doc.Dates.ValidityDate != nil)

	for _, role := range []domain.PartyRole{domain.PartyIssuer, domain.PartyRecipient} {
		p := doc.Party(role)
		add("parties."+string(role), p != nil && p.Name != "")
	}
	add("line_items", len(doc.LineItems) > 0)

	ct := doc.CommercialTerms
	add("commercial_terms.currency", ct.Currency != "")
	add("commercial_terms.subtotal", ct.Subtotal != nil)
	add("commercial_terms.vat_rate", ct.VATRate != nil)
	add("commercial_terms.vat_amount", ct.VATAmount != nil)
	add("commercial_terms.total_amount", ct.TotalAmount != nil)
	add("commercial_terms.discount_percentage", ct.DiscountPercentage != nil)
	add("commercial_terms.incoterms", ct.Incoterms != "")
	add("commercial_terms.payment_terms", ct.PaymentTerms != "")
	add("commercial_terms.delivery_lead_time", ct.DeliveryLeadTime != "")

	add("contract.effective_date", doc.Contract != nil && doc.Contract.EffectiveDate != nil)
	add("project_context.project_name", doc.ProjectContext.ProjectName != "")
	add("project_context.project_code", doc.ProjectContext.ProjectCode != "")
	add("project_context.location", doc.ProjectContext.Location != "")
	return out
}
