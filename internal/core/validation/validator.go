// Package validation scores a canonical record for completeness and data
// quality and decides whether it can be processed without a human.
package validation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

const (
	anomalyPenalty        = 5.0
	maxLineDiscount       = 50.0
	minPartyNameLength    = 3
	minDescriptionLength  = 5
	priceOutlierFactor    = 10.0
	readyMaxAnomalies     = 3
	readyMinCompleteness  = 80.0
	reviewMinAnomalies    = 2
	reviewMinCompleteness = 90.0
	completenessWeight    = 0.6
	qualityWeight         = 0.4
)

type Option func(*Validator)

// WithTable replaces the built-in criticality tables.
func WithTable(t Table) Option {
	return func(v *Validator) { v.table = t }
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator holds read-only tables and may be shared across goroutines.
type Validator struct {
	table Table
	now   func() time.Time
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{table: DefaultCriticality(), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Validate(doc *domain.CanonicalDocument) (domain.ValidationResult, error) {
	if doc == nil {
		return domain.ValidationResult{}, domain.WrapError(domain.ErrInvalidInput, "validate document", errors.New("document is nil"))
	}
	docType := doc.Metadata.DocumentType
	rules, ok := v.table[docType]
	if !ok {
		rules, ok = v.table[domain.DocumentTypeUnknown]
	}
	if !ok {
		return domain.ValidationResult{}, domain.WrapError(domain.ErrInvalidInput, "validate document",
			fmt.Errorf("no criticality table for %s", docType))
	}

	now := v.now().UTC()
	result := domain.ValidationResult{
		DocumentID:          doc.ID,
		DocumentType:        docType,
		CriticalGaps:        []domain.FieldGap{},
		ImportantGaps:       []domain.FieldGap{},
		OptionalGaps:        []domain.FieldGap{},
		Warnings:            []string{},
		Anomalies:           []string{},
		ValidationTimestamp: now,
	}

	requiredDeclared, requiredPresent := 0, 0
	for _, rule := range rules {
		found := fieldPresent(doc, rule.Path)
		if rule.Criticality == domain.CriticalityRequired {
			requiredDeclared++
			if found {
				requiredPresent++
			}
		}
		if found {
			continue
		}
		gap := domain.FieldGap{
			FieldName:   rule.Path,
			Criticality: rule.Criticality,
			Description: rule.Description,
			Remediation: rule.Remediation,
		}
		switch rule.Criticality {
		case domain.CriticalityRequired:
			result.CriticalGaps = append(result.CriticalGaps, gap)
		case domain.CriticalityImportant:
			result.ImportantGaps = append(result.ImportantGaps, gap)
		default:
			result.OptionalGaps = append(result.OptionalGaps, gap)
		}
	}

	result.Anomalies = append(result.Anomalies, lineItemAnomalies(doc)...)
	result.Anomalies = append(result.Anomalies, partyAnomalies(doc)...)
	result.Anomalies = append(result.Anomalies, dateAnomalies(doc, now)...)
	result.Warnings = append(result.Warnings, lineItemWarnings(doc)...)

	result.CompletenessScore = 100
	if requiredDeclared > 0 {
		result.CompletenessScore = float64(requiredPresent) / float64(requiredDeclared) * 100
	}
	result.DataQualityScore = math.Max(0, 100-anomalyPenalty*float64(len(result.Anomalies)))
	result.OverallScore = completenessWeight*result.CompletenessScore + qualityWeight*result.DataQualityScore

	anomalies := len(result.Anomalies)
	result.ReadyForProcessing = len(result.CriticalGaps) == 0 &&
		anomalies < readyMaxAnomalies &&
		result.CompletenessScore >= readyMinCompleteness
	result.RequiresManualReview = len(result.CriticalGaps) > 0 ||
		anomalies >= reviewMinAnomalies ||
		result.CompletenessScore < reviewMinCompleteness
	return result, nil
}

func lineLabel(i int, item domain.LineItem) int {
	if item.LineNumber > 0 {
		return item.LineNumber
	}
	return i + 1
}

func lineItemAnomalies(doc *domain.CanonicalDocument) []string {
	var out []string
	for i, item := range doc.LineItems {
		n := lineLabel(i, item)
		if item.Quantity <= 0 {
			out = append(out, fmt.Sprintf("line %d: non-positive quantity %.2f", n, item.Quantity))
		}
		if item.UnitPrice <= 0 {
			out = append(out, fmt.Sprintf("line %d: non-positive unit price %.2f", n, item.UnitPrice))
		}
		if item.Description == "" {
			out = append(out, fmt.Sprintf("line %d: empty description", n))
		}
		if item.Quantity > 0 && item.UnitPrice > 0 {
			if expected := item.ExpectedTotal(); math.Abs(item.TotalPrice-expected) > domain.TotalTolerance {
				out = append(out, fmt.Sprintf("line %d: total %.2f does not match computed %.2f", n, item.TotalPrice, expected))
			}
		}
		if item.DiscountPercentage != nil && *item.DiscountPercentage > maxLineDiscount {
			out = append(out, fmt.Sprintf("line %d: discount %.1f%% exceeds %.0f%%", n, *item.DiscountPercentage, maxLineDiscount))
		}
	}
	return out
}

func partyAnomalies(doc *domain.CanonicalDocument) []string {
	var out []string
	named := 0
	for _, role := range []domain.PartyRole{domain.PartyIssuer, domain.PartyRecipient} {
		p := doc.Party(role)
		if p == nil || p.Name == "" {
			continue
		}
		named++
		if len([]rune(p.Name)) < minPartyNameLength {
			out = append(out, fmt.Sprintf("%s name %q is too short", role, p.Name))
		}
	}
	if named < 2 {
		out = append(out, fmt.Sprintf("only %d of 2 parties identified", named))
	}
	return out
}

func dateAnomalies(doc *domain.CanonicalDocument, now time.Time) []string {
	var out []string
	d := doc.Dates
	if d.SubmissionDeadline != nil && d.IssueDate != nil && !d.SubmissionDeadline.After(*d.IssueDate) {
		out = append(out, fmt.Sprintf("submission deadline %s is not after issue date %s",
			d.SubmissionDeadline.Format("2006-01-02"), d.IssueDate.Format("2006-01-02")))
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.DeliveryDate != nil && d.DeliveryDate.Before(today) {
		out = append(out, fmt.Sprintf("delivery date %s is in the past", d.DeliveryDate.Format("2006-01-02")))
	}
	return out
}

func lineItemWarnings(doc *domain.CanonicalDocument) []string {
	var out []string
	var sum float64
	priced := 0
	for _, item := range doc.LineItems {
		if item.UnitPrice > 0 {
			sum += item.UnitPrice
			priced++
		}
	}
	average := 0.0
	if priced > 0 {
		average = sum / float64(priced)
	}
	for i, item := range doc.LineItems {
		n := lineLabel(i, item)
		if item.Description != "" && len([]rune(item.Description)) < minDescriptionLength {
			out = append(out, fmt.Sprintf("line %d: description %q is very short", n, item.Description))
		}
		if average > 0 && item.UnitPrice > priceOutlierFactor*average {
			out = append(out, fmt.Sprintf("line %d: unit price %.2f is more than %.0fx the average %.2f",
				n, item.UnitPrice, priceOutlierFactor, average))
		}
	}
	return out
}
