package domain

import "strings"

// DocumentType is the closed set of procurement document kinds the pipeline
// can assign. MIXED and UNKNOWN are classifier outcomes, not source kinds.
type DocumentType string

const (
	DocumentTypeRFQ           DocumentType = "RFQ"
	DocumentTypeBOQ           DocumentType = "BOQ"
	DocumentTypeQuotation     DocumentType = "QUOTATION"
	DocumentTypePurchaseOrder DocumentType = "PURCHASE_ORDER"
	DocumentTypeInvoice       DocumentType = "INVOICE"
	DocumentTypeContract      DocumentType = "CONTRACT"
	DocumentTypeMixed         DocumentType = "MIXED"
	DocumentTypeUnknown       DocumentType = "UNKNOWN"
)

// ConcreteDocumentTypes lists the types a signal may target, in tie-break order.
var ConcreteDocumentTypes = []DocumentType{
	DocumentTypeRFQ,
	DocumentTypeBOQ,
	DocumentTypeQuotation,
	DocumentTypePurchaseOrder,
	DocumentTypeInvoice,
	DocumentTypeContract,
}

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeRFQ, DocumentTypeBOQ, DocumentTypeQuotation, DocumentTypePurchaseOrder,
		DocumentTypeInvoice, DocumentTypeContract, DocumentTypeMixed, DocumentTypeUnknown:
		return true
	default:
		return false
	}
}

// Concrete reports whether t names a real document kind.
func (t DocumentType) Concrete() bool {
	return t.Valid() && t != DocumentTypeMixed && t != DocumentTypeUnknown
}

// ParseDocumentType accepts the enum value in any case; unrecognized input maps to UNKNOWN.
func ParseDocumentType(raw string) DocumentType {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(raw)))
	if t.Valid() {
		return t
	}
	return DocumentTypeUnknown
}
