// Package inference enriches a mapped procurement record with derived fields.
// Rules are independent: a failing rule is recorded and the others still run.
package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

const ExtractionMethodHybrid = "hybrid"

// Rule inspects the record and the original text, mutates the record and
// reports what it changed.
type Rule struct {
	Name  string
	Apply func(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, error)
}

type Options struct {
	DefaultCurrency string
	Logger          *slog.Logger
	Now             func() time.Time
}

type Inferencer struct {
	rules  []Rule
	logger *slog.Logger
	now    func() time.Time
}

func NewInferencer(opts Options) *Inferencer {
	return NewInferencerWithRules(opts, DefaultRules(opts))
}

// NewInferencerWithRules runs rules in the given order.
func NewInferencerWithRules(opts Options, rules []Rule) *Inferencer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Inferencer{rules: rules, logger: logger, now: now}
}

func (inf *Inferencer) Infer(doc *domain.CanonicalDocument, text string) ([]domain.InferenceSignal, []domain.RuleFailure, error) {
	if doc == nil {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "infer fields", errors.New("document is nil"))
	}

	signals := []domain.InferenceSignal{}
	var failures []domain.RuleFailure
	for _, rule := range inf.rules {
		out, err := runRule(rule, doc, text)
		if err != nil {
			inf.logger.Warn("inference_rule_failed",
				"rule", rule.Name,
				"document_id", doc.ID,
				"error", err.Error(),
			)
			failures = append(failures, domain.RuleFailure{RuleName: rule.Name, Message: err.Error()})
			continue
		}
		signals = append(signals, out...)
	}

	doc.Metadata.ExtractionMethod = ExtractionMethodHybrid
	doc.Touch(inf.now())
	return signals, failures, nil
}

func runRule(rule Rule, doc *domain.CanonicalDocument, text string) (signals []domain.InferenceSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signals = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	signals, err = rule.Apply(doc, text)
	for i := range signals {
		signals[i].RuleName = rule.Name
	}
	return signals, err
}
