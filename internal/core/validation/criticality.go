package validation

import "github.com/kirillkom/procurement-intake/internal/core/domain"

// FieldRule declares one dotted field path and how much its absence matters.
type FieldRule struct {
	Path        string
	Criticality domain.Criticality
	Description string
	Remediation string
}

// Table maps each document type to its declared fields.
type Table map[domain.DocumentType][]FieldRule

func required(path, description, remediation string) FieldRule {
	return FieldRule{Path: path, Criticality: domain.CriticalityRequired, Description: description, Remediation: remediation}
}

func important(path, description, remediation string) FieldRule {
	return FieldRule{Path: path, Criticality: domain.CriticalityImportant, Description: description, Remediation: remediation}
}

func optional(path, description, remediation string) FieldRule {
	return FieldRule{Path: path, Criticality: domain.CriticalityOptional, Description: description, Remediation: remediation}
}

var (
	issuerRule    = required("parties.issuer", "issuing party is missing", "add the issuing organization")
	recipientRule = required("parties.recipient", "receiving party is missing", "add the counterparty organization")
	numberRule    = required("metadata.document_number", "document number is missing", "add the reference number printed on the document")
	itemsRule     = required("line_items", "no line items were extracted", "add at least one line item with quantity and price")
)

// DefaultCriticality returns the built-in per-type field tables. MIXED and
// UNKNOWN documents are checked against a minimal generic table.
func DefaultCriticality() Table {
	generic := []FieldRule{
		required("parties", "no parties were identified", "add issuer and recipient"),
		itemsRule,
		numberRule,
		optional("dates.issue_date", "issue date is missing", "add the document date"),
	}
	return Table{
		domain.DocumentTypeRFQ: {
			issuerRule,
			recipientRule,
			numberRule,
			required("dates.submission_deadline", "submission deadline is missing", "state when quotations are due"),
			itemsRule,
			important("line_items.description", "some line items have no description", "describe every requested item"),
			important("line_items.quantity", "some line items have no quantity", "state the requested quantity for every item"),
			important("dates.issue_date", "issue date is missing", "add the RFQ date"),
			optional("rfq.scope_of_work", "scope of work is missing", "summarize the requested scope"),
			optional("commercial_terms.incoterms", "delivery terms are missing", "state the Incoterm"),
			optional("project_context.project_name", "project is not named", "add the project reference"),
		},
		domain.DocumentTypeBOQ: {
			issuerRule,
			itemsRule,
			important("line_items.quantity", "some line items have no quantity", "complete measured quantities"),
			important("line_items.unit_of_measure", "some line items have no unit", "add the unit of measure"),
			important("project_context.project_name", "project is not named", "add the project reference"),
			optional("metadata.document_number", "document number is missing", "add the BOQ reference"),
			optional("metadata.revision", "revision is missing", "add the BOQ revision"),
		},
		domain.DocumentTypeQuotation: {
			issuerRule,
			recipientRule,
			numberRule,
			itemsRule,
			required("line_items.unit_price", "some line items have no unit price", "price every quoted item"),
			important("commercial_terms.currency", "currency is missing", "state the quotation currency"),
			important("dates.validity_date", "validity is missing", "state how long the offer is valid"),
			important("commercial_terms.payment_terms", "payment terms are missing", "state the payment terms"),
			optional("quotation.reference_rfq", "referenced RFQ is missing", "quote the RFQ number"),
			optional("commercial_terms.incoterms", "delivery terms are missing", "state the Incoterm"),
		},
		domain.DocumentTypePurchaseOrder: {
			issuerRule,
			recipientRule,
			numberRule,
			itemsRule,
			required("commercial_terms.currency", "currency is missing", "state the order currency"),
			important("dates.delivery_date", "delivery date is missing", "state the required delivery date"),
			important("commercial_terms.total_amount", "order total is missing", "state the order total"),
			important("commercial_terms.payment_terms", "payment terms are missing", "state the payment terms"),
			optional("purchase_order.delivery_address", "delivery address is missing", "add the delivery address"),
			optional("purchase_order.reference_quotation", "referenced quotation is missing", "quote the supplier offer"),
		},
		domain.DocumentTypeInvoice: {
			issuerRule,
			recipientRule,
			numberRule,
			required("dates.issue_date", "invoice date is missing", "add the invoice date"),
			required("commercial_terms.total_amount", "invoice total is missing", "state the amount due"),
			important("commercial_terms.currency", "currency is missing", "state the invoice currency"),
			important("commercial_terms.vat_amount", "VAT amount is missing", "state the VAT charged"),
			important("line_items", "no line items were extracted", "itemize the invoice"),
			optional("commercial_terms.payment_terms", "payment terms are missing", "state the payment terms"),
		},
		domain.DocumentTypeContract: {
			issuerRule,
			recipientRule,
			numberRule,
			required("contract.effective_date", "effective date is missing", "state when the contract takes effect"),
			important("contract.expiry_date", "expiry date is missing", "state the contract term"),
			important("commercial_terms.total_amount", "contract value is missing", "state the contract value"),
			important("commercial_terms.payment_terms", "payment terms are missing", "state the payment terms"),
			optional("contract.governing_law", "governing law is missing", "state the governing law"),
		},
		domain.DocumentTypeMixed:   generic,
		domain.DocumentTypeUnknown: generic,
	}
}
