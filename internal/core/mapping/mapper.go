// Package mapping extracts a canonical procurement record from document text
// with cascading patterns and table heuristics.
package mapping

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/ports"
	"github.com/kirillkom/procurement-intake/internal/core/textnorm"
)

const ExtractionMethodPattern = "pattern"

// Per-category first-pass confidences.
const (
	confidenceParties         = 0.7
	confidenceLineItems       = 0.8
	confidenceLineItemsAbsent = 0.3
	confidenceDates           = 0.75
	confidenceDatesAbsent     = 0.3
	confidenceCommercial      = 0.7
	confidenceProjectContext  = 0.4
)

type Mapper struct {
	classifier ports.DocumentClassifier
	normalizer *textnorm.Normalizer
	matchers   map[domain.DocumentType][]labelMatcher
	generic    []labelMatcher
	now        func() time.Time
	newID      func() string
}

// NewMapper builds a mapper. The classifier is used only when Map is called
// without a classification result.
func NewMapper(classifier ports.DocumentClassifier) *Mapper {
	matchers := make(map[domain.DocumentType][]labelMatcher, len(partyLabels))
	for t, labels := range partyLabels {
		matchers[t] = newLabelMatchers(labels)
	}
	return &Mapper{
		classifier: classifier,
		normalizer: textnorm.NewCasePreserving(),
		matchers:   matchers,
		generic:    newLabelMatchers(genericLabels),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Map never fails on missing fields; they are listed in
// extraction_confidence.missing_fields instead.
func (m *Mapper) Map(text string, cls *domain.ClassificationResult, fileName string) (*domain.CanonicalDocument, error) {
	if cls == nil {
		if m.classifier == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "map document", fmt.Errorf("no classification and no classifier"))
		}
		result := m.classifier.Classify(text, "", fileName)
		cls = &result
	}
	if !cls.DocumentType.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "map document", fmt.Errorf("unknown document type %q", cls.DocumentType))
	}

	clean := m.normalizer.Normalize(text)
	lines := textnorm.Lines(clean)
	now := m.now().UTC()
	docType := payloadType(cls)

	doc := &domain.CanonicalDocument{
		ID: m.newID(),
		Metadata: domain.DocumentMetadata{
			DocumentType:     cls.DocumentType,
			SourceFile:       fileName,
			ExtractionMethod: ExtractionMethodPattern,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		LineItems: []domain.LineItem{},
	}
	doc.Metadata.DocumentNumber, _ = documentNumberCascade.find(clean)
	doc.Metadata.Revision, _ = revisionCascade.find(clean)

	doc.Dates = domain.DocumentDates{
		IssueDate:          findDate(issueDateCascade, clean),
		SubmissionDeadline: findDate(submissionDateCascade, clean),
		DeliveryDate:       findDate(deliveryDateCascade, clean),
		ValidityDate:       findDate(validityDateCascade, clean),
	}
	doc.Metadata.IssueDate = doc.Dates.IssueDate

	matchers, ok := m.matchers[docType]
	if !ok {
		matchers = m.generic
	}
	doc.Parties = extractParties(lines, matchers)

	if items := extractLineItems(lines); len(items) > 0 {
		doc.LineItems = items
	}
	doc.CommercialTerms = extractCommercialTerms(clean)
	fillTypePayload(doc, docType, clean)
	doc.ProjectContext = extractProjectContext(clean)
	doc.Signals = extractSignals(clean)
	doc.Confidence = firstPassConfidence(doc, docType)
	return doc, nil
}

func firstPassConfidence(doc *domain.CanonicalDocument, docType domain.DocumentType) domain.ExtractionConfidence {
	perField := map[string]float64{
		"parties":          confidenceParties,
		"line_items":       confidenceLineItemsAbsent,
		"dates":            confidenceDatesAbsent,
		"commercial_terms": confidenceCommercial,
		"project_context":  confidenceProjectContext,
	}
	if len(doc.LineItems) > 0 {
		perField["line_items"] = confidenceLineItems
	}
	d := doc.Dates
	if d.IssueDate != nil || d.SubmissionDeadline != nil || d.DeliveryDate != nil || d.ValidityDate != nil {
		perField["dates"] = confidenceDates
	}

	var sum float64
	for _, v := range perField {
		sum += v
	}
	return domain.ExtractionConfidence{
		Overall:       sum / float64(len(perField)),
		PerField:      perField,
		MissingFields: MissingFields(doc, docType),
	}
}
