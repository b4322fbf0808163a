package mapping

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

const refToken = `([A-Z0-9][A-Z0-9\-/.]*\d[A-Z0-9\-/.]*)`

var (
	documentNumberCascade = newCascade(
		`\b(?:rfq|rfp|po|p\.o\.|lpo|purchase\s+order|quotation|quote|invoice|inv|contract|agreement|boq|tender|document|doc)\s*(?:no\b\.?|number|#|ref\b\.?)\s*[:\-]?\s*`+refToken,
		`\b(?:reference|ref\b\.?)\s*(?:no\b\.?|number|#)?\s*[:\-]\s*`+refToken,
		`(?m)^\s*(?:no\b\.?|number|#)\s*[:\-]\s*`+refToken,
	)
	revisionCascade = newCascade(`\brev(?:ision)?\b\.?\s*(?:no\b\.?)?\s*[:\-]?\s*([A-Z0-9]{1,3})\b`)

	issueDateCascade      = dateCascade(`\b(?:issue\s+date|date\s+of\s+issue|issued\s+on|dated)`, `(?m)^\s*date`)
	submissionDateCascade = dateCascade(
		`\bsubmission\s+(?:deadline|date)`,
		`\bclosing\s+date`,
		`\bdeadline(?:\s+for\s+(?:submission|bids|quotations|offers))?`,
		`\bbids?\s+due(?:\s+date)?`,
	)
	deliveryDateCascade = dateCascade(`\bdelivery\s+date`, `\bdeliver(?:y|ed)?\s+(?:by|on|before)`, `\brequired\s+(?:by|on)`, `\bship\s+date`)
	validityDateCascade = dateCascade(`\bvalid\s+(?:until|till|through|up\s+to)`, `\bvalidity\s+date`, `\bexpiry\s+date`, `\bexpires?\s+on`)

	currencyLabelCascade = newCascade(
		`\bcurrency\s*[:\-]?\s*([A-Z]{3})\b`,
		`\b(?:all\s+)?(?:prices|amounts|rates)\s+(?:are\s+)?(?:quoted\s+)?in\s+([A-Z]{3})\b`,
	)
	amountToken         = `(?:[A-Z]{3}\s*|[$€£﷼]\s*)?([\d,]+(?:\.\d+)?)(?:[^\d%.,]|[.,](?:\D|$)|$)`
	vatRateCascade      = newCascade(`\b(?:vat|tax)\s*(?:@|at|rate)?\s*[:\-]?\s*\(?\s*(\d{1,2}(?:\.\d+)?)\s*%`)
	vatAmountCascade    = newCascade(`\b(?:vat|tax)\s*(?:amount)?\s*(?:\(\s*\d{1,2}(?:\.\d+)?\s*%\s*\)|@\s*\d{1,2}(?:\.\d+)?\s*%)?\s*[:\-]\s*` + amountToken)
	subtotalCascade     = newCascade(`\b(?:sub\s*-?\s*total|total\s+before\s+(?:vat|tax)|net\s+(?:total|amount)|total\s+excl(?:uding|\.)?\s+(?:vat|tax))\s*[:\-]?\s*` + amountToken)
	totalAmountCascade  = newCascade(`\b(?:grand\s+total|total\s+amount|total\s+incl(?:uding|\.)?\s+(?:vat|tax)|total\s+payable|amount\s+due)\s*[:\-]?\s*` + amountToken)
	paymentTermsCascade = newCascade(
		`(?m)^\s*payment\s+terms?\s*[:\-]\s*(.+)$`,
		`\b(net\s+\d{1,3}(?:\s+days)?)\b`,
		`\b(\d{1,3}\s+days\s+(?:from|after)\s+[a-z ]{3,30})`,
	)
	leadTimeCascade = newCascade(
		`\b(?:delivery|lead)\s*(?:time|period|lead\s*time)?\s*[:\-]?\s*(?:within\s+)?(\d{1,3}\s*(?:working\s+|calendar\s+)?(?:days?|weeks?|months?))`,
		`\bwithin\s+(\d{1,3}\s*(?:working\s+|calendar\s+)?(?:days?|weeks?|months?))\s+(?:from|of|after)\b`,
	)

	scopeCascade          = newCascade(`(?m)^\s*scope\s+of\s+(?:work|supply|services)\s*[:\-]\s*(.+)$`)
	evaluationCascade     = newCascade(`(?m)^\s*evaluation\s+criteria\s*[:\-]\s*(.+)$`)
	validityDaysPattern   = regexp.MustCompile(`(?i)\bvalid(?:ity)?\s*(?:period)?\s*(?:for|of|:)?\s*(\d{1,3})\s*(?:calendar\s+)?days\b`)
	referenceRFQCascade   = newCascade(`\b(?:your|ref(?:erence)?\b\.?|against)\s*(?:rfq|rfp|enquiry|inquiry)\s*(?:no\b\.?|number|#|ref\b\.?)?\s*[:\-]?\s*` + refToken)
	referenceQuoteCascade = newCascade(`\b(?:your\s+)?(?:quotation|quote|offer)\s*(?:no\b\.?|number|#|ref\b\.?)\s*[:\-]?\s*` + refToken)
	deliveryAddrCascade   = newCascade(`(?m)^\s*(?:delivery\s+address|deliver\s+to|ship\s+to|delivery\s+location)\s*[:\-]\s*(.+)$`)
	effectiveDateCascade  = dateCascade(`\beffective\s+(?:date|from)`, `\bcommencement\s+date`, `\bstart\s+date`)
	expiryDateCascade     = dateCascade(`\b(?:expiry|expiration|end|completion)\s+date`, `\bexpires?\s+on`)
	governingLawCascade   = newCascade(
		`(?m)^\s*governing\s+law\s*[:\-]\s*(.+)$`,
		`\bgoverned\s+by\s+(?:and\s+construed\s+in\s+accordance\s+with\s+)?(?:the\s+)?laws?\s+of\s+(?:the\s+)?([A-Za-z][A-Za-z ]{2,40}?)\s*(?:[.,;\n]|$)`,
	)

	projectNameCascade     = newCascade(`(?m)^\s*project(?:\s+name|\s+title)?\s*[:\-]\s*(.+)$`)
	projectCodeCascade     = newCascade(`\bproject\s+(?:code|no\b\.?|number|id|ref\b\.?)\s*[:\-]?\s*([A-Z0-9][A-Z0-9\-/]*)`)
	projectLocationCascade = newCascade(`(?m)^\s*(?:project\s+|site\s+)?(?:location|site)\s*[:\-]\s*(.+)$`)
)

func findAmount(c cascade, text string) *float64 {
	raw, ok := c.find(text)
	if !ok {
		return nil
	}
	v, ok := parseNumber(raw)
	if !ok {
		return nil
	}
	return domain.Float64Ptr(v)
}

func extractCommercialTerms(text string) domain.CommercialTerms {
	var terms domain.CommercialTerms
	if code, ok := currencyLabelCascade.find(text); ok && KnownCurrency(code) {
		terms.Currency = strings.ToUpper(code)
	}
	if raw, ok := vatRateCascade.find(text); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			terms.VATRate = domain.Float64Ptr(v)
		}
	}
	terms.VATAmount = findAmount(vatAmountCascade, text)
	terms.Subtotal = findAmount(subtotalCascade, text)
	terms.TotalAmount = findAmount(totalAmountCascade, text)
	terms.PaymentTerms, _ = paymentTermsCascade.find(text)
	terms.DeliveryLeadTime, _ = leadTimeCascade.find(text)
	return terms
}

// payloadType picks the type whose payload is filled; MIXED documents use the
// suggested conversion.
func payloadType(cls *domain.ClassificationResult) domain.DocumentType {
	if cls.DocumentType == domain.DocumentTypeMixed && cls.SuggestedConversion != nil {
		return *cls.SuggestedConversion
	}
	return cls.DocumentType
}

func fillTypePayload(doc *domain.CanonicalDocument, docType domain.DocumentType, text string) {
	switch docType {
	case domain.DocumentTypeRFQ:
		rfq := &domain.RFQDetails{}
		rfq.ScopeOfWork, _ = scopeCascade.find(text)
		if raw, ok := evaluationCascade.find(text); ok {
			for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
				if part = cleanValue(part); part != "" {
					rfq.EvaluationCriteria = append(rfq.EvaluationCriteria, part)
				}
			}
		}
		doc.RFQ = rfq
	case domain.DocumentTypeQuotation:
		q := &domain.QuotationDetails{}
		if m := validityDaysPattern.FindStringSubmatch(text); m != nil {
			if days, err := strconv.Atoi(m[1]); err == nil {
				q.ValidityDays = &days
			}
		}
		q.ReferenceRFQ, _ = referenceRFQCascade.find(text)
		doc.Quotation = q
	case domain.DocumentTypePurchaseOrder:
		po := &domain.PurchaseOrderDetails{}
		po.ReferenceQuotation, _ = referenceQuoteCascade.find(text)
		po.DeliveryAddress, _ = deliveryAddrCascade.find(text)
		doc.PurchaseOrder = po
	case domain.DocumentTypeContract:
		c := &domain.ContractDetails{
			EffectiveDate: findDate(effectiveDateCascade, text),
			ExpiryDate:    findDate(expiryDateCascade, text),
		}
		c.GoverningLaw, _ = governingLawCascade.find(text)
		doc.Contract = c
	}
}

func extractProjectContext(text string) domain.ProjectContext {
	var pc domain.ProjectContext
	pc.ProjectName, _ = projectNameCascade.find(text)
	pc.ProjectCode, _ = projectCodeCascade.find(text)
	pc.Location, _ = projectLocationCascade.find(text)
	return pc
}

func extractSignals(text string) domain.DocumentSignals {
	lower := strings.ToLower(text)
	var s domain.DocumentSignals
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if containsWord(lower, w) {
				s.Categories = append(s.Categories, ck.category)
				break
			}
		}
	}
	for _, rk := range riskKeywords {
		for _, p := range rk.phrases {
			if containsWord(lower, p) {
				s.RiskIndicators = append(s.RiskIndicators, rk.indicator)
				break
			}
		}
	}
	return s
}

func containsWord(text, word string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
