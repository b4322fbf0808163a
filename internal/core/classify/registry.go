package classify

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

type SignalKind string

const (
	KindKeyword   SignalKind = "keyword"
	KindStructure SignalKind = "structure"
)

// SignalDef is the declarative form of a classification signal. Exclude
// patterns are blanked out of the text before the signal's own patterns run.
type SignalDef struct {
	Name     string              `yaml:"name"`
	Kind     SignalKind          `yaml:"kind"`
	Target   domain.DocumentType `yaml:"target"`
	Weight   float64             `yaml:"weight"`
	Patterns []string            `yaml:"patterns"`
	Exclude  []string            `yaml:"exclude,omitempty"`
}

// HintDef maps a lexical hint (user supplied or found in a file name) to a type.
type HintDef struct {
	Token  string              `yaml:"token"`
	Target domain.DocumentType `yaml:"target"`
}

type Thresholds struct {
	Confidence       float64 `yaml:"confidence"`
	MixedFloor       float64 `yaml:"mixed_floor"`
	MixedGap         float64 `yaml:"mixed_gap"`
	MixedPenalty     float64 `yaml:"mixed_penalty"`
	SignalConfidence float64 `yaml:"signal_confidence"`
	HintTrustBelow   float64 `yaml:"hint_trust_below"`
	HintConfidence   float64 `yaml:"hint_confidence"`
	FilenameWeight   float64 `yaml:"filename_weight"`
	ConflictWeight   float64 `yaml:"conflict_weight"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Confidence:       0.60,
		MixedFloor:       0.70,
		MixedGap:         0.15,
		MixedPenalty:     0.80,
		SignalConfidence: 0.80,
		HintTrustBelow:   0.70,
		HintConfidence:   0.85,
		FilenameWeight:   0.30,
		ConflictWeight:   0.10,
	}
}

type compiledSignal struct {
	def      SignalDef
	patterns []*regexp.Regexp
	exclude  []*regexp.Regexp
}

type compiledHint struct {
	def     HintDef
	pattern *regexp.Regexp
}

// Registry is the immutable set of signals, hints and thresholds a Classifier
// reads. Build it once and share it.
type Registry struct {
	signals    []compiledSignal
	hints      []compiledHint
	thresholds Thresholds
}

type registryFile struct {
	Thresholds *Thresholds `yaml:"thresholds"`
	Signals    []SignalDef `yaml:"signals"`
	Hints      []HintDef   `yaml:"hints"`
}

// NewRegistry validates and compiles the given definitions.
func NewRegistry(signals []SignalDef, hints []HintDef, thresholds Thresholds) (*Registry, error) {
	reg := &Registry{thresholds: thresholds}
	for _, def := range signals {
		cs, err := compileSignal(def)
		if err != nil {
			return nil, err
		}
		reg.signals = append(reg.signals, cs)
	}
	for _, def := range hints {
		token := strings.ToLower(strings.TrimSpace(def.Token))
		if token == "" {
			return nil, errors.New("hint token is empty")
		}
		if !def.Target.Concrete() {
			return nil, fmt.Errorf("hint %q: target %q is not a concrete document type", def.Token, def.Target)
		}
		def.Token = token
		reg.hints = append(reg.hints, compiledHint{
			def:     def,
			pattern: regexp.MustCompile(`(?:^|[^a-z0-9])` + regexp.QuoteMeta(token) + `(?:[^a-z0-9]|$)`),
		})
	}
	return reg, nil
}

func compileSignal(def SignalDef) (compiledSignal, error) {
	if def.Name == "" {
		return compiledSignal{}, errors.New("signal name is empty")
	}
	if !def.Target.Concrete() {
		return compiledSignal{}, fmt.Errorf("signal %s: target %q is not a concrete document type", def.Name, def.Target)
	}
	if def.Weight < 0 || def.Weight > 1 {
		return compiledSignal{}, fmt.Errorf("signal %s: weight %.2f outside [0,1]", def.Name, def.Weight)
	}
	switch def.Kind {
	case KindKeyword, KindStructure:
	case "":
		def.Kind = KindKeyword
	default:
		return compiledSignal{}, fmt.Errorf("signal %s: unknown kind %q", def.Name, def.Kind)
	}
	if len(def.Patterns) == 0 {
		return compiledSignal{}, fmt.Errorf("signal %s: no patterns", def.Name)
	}

	cs := compiledSignal{def: def}
	for _, p := range def.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return compiledSignal{}, fmt.Errorf("signal %s: compile pattern %q: %w", def.Name, p, err)
		}
		cs.patterns = append(cs.patterns, re)
	}
	for _, p := range def.Exclude {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return compiledSignal{}, fmt.Errorf("signal %s: compile exclude %q: %w", def.Name, p, err)
		}
		cs.exclude = append(cs.exclude, re)
	}
	return cs, nil
}

// LoadRegistry reads a YAML override. Sections left out fall back to the
// built-in defaults, so a file may replace only the signals.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var file registryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode classifier registry: %w", err)
	}

	signals := file.Signals
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	hints := file.Hints
	if len(hints) == 0 {
		hints = DefaultHints()
	}
	thresholds := DefaultThresholds()
	if file.Thresholds != nil {
		thresholds = mergeThresholds(thresholds, *file.Thresholds)
	}
	return NewRegistry(signals, hints, thresholds)
}

func mergeThresholds(base, override Thresholds) Thresholds {
	set := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	set(&base.Confidence, override.Confidence)
	set(&base.MixedFloor, override.MixedFloor)
	set(&base.MixedGap, override.MixedGap)
	set(&base.MixedPenalty, override.MixedPenalty)
	set(&base.SignalConfidence, override.SignalConfidence)
	set(&base.HintTrustBelow, override.HintTrustBelow)
	set(&base.HintConfidence, override.HintConfidence)
	set(&base.FilenameWeight, override.FilenameWeight)
	set(&base.ConflictWeight, override.ConflictWeight)
	return base
}

// DefaultRegistry returns the built-in procurement signal set.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(DefaultSignals(), DefaultHints(), DefaultThresholds())
	if err != nil {
		panic(fmt.Sprintf("classify: built-in registry is invalid: %v", err))
	}
	return reg
}

func (r *Registry) Thresholds() Thresholds { return r.thresholds }

// lookupHint maps free text to a document type through the hint table. The
// first entry whose token appears as a whole word wins, so longer phrases are
// listed before the words they contain.
func (r *Registry) lookupHint(raw string) (domain.DocumentType, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return "", false
	}
	if t := domain.ParseDocumentType(text); t.Concrete() {
		return t, true
	}
	text = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(text)
	for _, h := range r.hints {
		if h.pattern.MatchString(text) {
			return h.def.Target, true
		}
	}
	return "", false
}

const (
	rfqExclusion = `\brequest\s+for\s+(?:quotation|quote|proposal)s?\b`
)

func DefaultSignals() []SignalDef {
	return []SignalDef{
		{
			Name: "rfq_title", Kind: KindKeyword, Target: domain.DocumentTypeRFQ, Weight: 0.9,
			Patterns: []string{rfqExclusion, `\brfq\b`, `\brfp\b`, `\binvitation\s+to\s+(?:tender|bid)\b`},
		},
		{
			Name: "rfq_submission", Kind: KindKeyword, Target: domain.DocumentTypeRFQ, Weight: 0.6,
			Patterns: []string{
				`\bsubmission\s+(?:deadline|date)\b`,
				`\bclosing\s+date\b`,
				`\bbids?\s+(?:due|deadline|closing)\b`,
				`\bdeadline\s+for\s+(?:submission|bids|quotations|offers)\b`,
				`\bquotations?\s+(?:must|should|shall)\s+be\s+submitted\b`,
			},
		},
		{
			Name: "rfq_evaluation", Kind: KindStructure, Target: domain.DocumentTypeRFQ, Weight: 0.3,
			Patterns: []string{`\bevaluation\s+criteria\b`, `\btechnical\s+(?:compliance|submission|evaluation)\b`, `\bbidders?\s+(?:shall|must)\b`},
		},
		{
			Name: "boq_title", Kind: KindKeyword, Target: domain.DocumentTypeBOQ, Weight: 0.9,
			Patterns: []string{`\bbills?\s+of\s+quantit(?:y|ies)\b`, `\bboq\b`},
		},
		{
			Name: "boq_table_header", Kind: KindStructure, Target: domain.DocumentTypeBOQ, Weight: 0.6,
			Patterns: []string{`(?m)^.*\bitem\b.*\bdescription\b.*\b(?:qty|quantity)\b.*\b(?:unit|uom)\b.*\brate\b.*$`},
		},
		{
			Name: "boq_sections", Kind: KindStructure, Target: domain.DocumentTypeBOQ, Weight: 0.3,
			Patterns: []string{`\bprovisional\s+sums?\b`, `\bpreliminaries\b`, `\bcarried\s+to\s+(?:summary|collection)\b`, `\bmeasured\s+works?\b`},
		},
		{
			Name: "quotation_title", Kind: KindKeyword, Target: domain.DocumentTypeQuotation, Weight: 0.9,
			Patterns: []string{
				`(?m)^\s*(?:price\s+|commercial\s+|sales\s+)?(?:quotation|quote|proposal)\s*$`,
				`\bour\s+(?:quotation|quote|offer|proposal)\b`,
				`\bwe\s+are\s+pleased\s+to\s+(?:quote|offer|submit)\b`,
				`\bquotation\s+(?:no|number|ref|#)`,
			},
			Exclude: []string{rfqExclusion},
		},
		{
			Name: "quotation_validity", Kind: KindKeyword, Target: domain.DocumentTypeQuotation, Weight: 0.6,
			Patterns: []string{
				`\b(?:offer|quotation|quote|prices?)\s+(?:is\s+|are\s+|remains?\s+)?valid\b`,
				`\bvalidity\s*(?:period|:)`,
				`\bvalid\s+for\s+\d+\s+days\b`,
			},
			Exclude: []string{rfqExclusion},
		},
		{
			Name: "quotation_reference", Kind: KindStructure, Target: domain.DocumentTypeQuotation, Weight: 0.3,
			Patterns: []string{`\bin\s+response\s+to\s+(?:your\s+)?(?:rfq|enquiry|inquiry|request)\b`, `\byour\s+(?:rfq|enquiry|inquiry)\b`},
		},
		{
			Name: "po_title", Kind: KindKeyword, Target: domain.DocumentTypePurchaseOrder, Weight: 0.9,
			Patterns: []string{`\bpurchase\s+order\b`, `\bp\.?o\.?\s*(?:no|number|#)`, `\blpo\b`},
		},
		{
			Name: "po_delivery", Kind: KindKeyword, Target: domain.DocumentTypePurchaseOrder, Weight: 0.4,
			Patterns: []string{`\bdelivery\s+(?:address|location)\b`, `\bship\s+to\b`, `\bdeliver\s+to\b`},
		},
		{
			Name: "po_authorization", Kind: KindStructure, Target: domain.DocumentTypePurchaseOrder, Weight: 0.3,
			Patterns: []string{`\bauthori[sz]ed\s+(?:by|signatory)\b`, `\bplease\s+supply\b`, `\bthis\s+order\b`},
		},
		{
			Name: "invoice_title", Kind: KindKeyword, Target: domain.DocumentTypeInvoice, Weight: 0.9,
			Patterns: []string{`(?m)^\s*(?:tax\s+|commercial\s+|proforma\s+)?invoice\s*$`, `\binvoice\s+(?:no|number|#|date)`},
		},
		{
			Name: "invoice_payment", Kind: KindKeyword, Target: domain.DocumentTypeInvoice, Weight: 0.6,
			Patterns: []string{`\bamount\s+due\b`, `\bbalance\s+due\b`, `\bremit(?:tance)?\b`, `\bpayment\s+due\b`, `\biban\b`},
		},
		{
			Name: "invoice_tax", Kind: KindStructure, Target: domain.DocumentTypeInvoice, Weight: 0.3,
			Patterns: []string{`\bvat\s+(?:reg(?:istration)?|no|number|#)`, `\btax\s+(?:id|registration)\b`, `\btrn\b`},
		},
		{
			Name: "contract_title", Kind: KindKeyword, Target: domain.DocumentTypeContract, Weight: 0.9,
			Patterns: []string{`\b(?:contract|agreement)\s+(?:no|number|between)\b`, `\bthis\s+(?:agreement|contract)\b`},
		},
		{
			Name: "contract_clauses", Kind: KindStructure, Target: domain.DocumentTypeContract, Weight: 0.6,
			Patterns: []string{`\bgoverning\s+law\b`, `\bforce\s+majeure\b`, `\bindemnif(?:y|ication)\b`, `\bhereinafter\b`, `\bwhereas\b`},
		},
		{
			Name: "contract_term", Kind: KindKeyword, Target: domain.DocumentTypeContract, Weight: 0.4,
			Patterns: []string{`\beffective\s+date\b`, `\bterm\s+of\s+(?:this\s+)?(?:agreement|contract)\b`, `\btermination\b`},
		},
	}
}

func DefaultHints() []HintDef {
	return []HintDef{
		{Token: "request for quotation", Target: domain.DocumentTypeRFQ},
		{Token: "request for quote", Target: domain.DocumentTypeRFQ},
		{Token: "request for proposal", Target: domain.DocumentTypeRFQ},
		{Token: "bill of quantities", Target: domain.DocumentTypeBOQ},
		{Token: "purchase order", Target: domain.DocumentTypePurchaseOrder},
		{Token: "rfq", Target: domain.DocumentTypeRFQ},
		{Token: "rfp", Target: domain.DocumentTypeRFQ},
		{Token: "tender", Target: domain.DocumentTypeRFQ},
		{Token: "boq", Target: domain.DocumentTypeBOQ},
		{Token: "quotation", Target: domain.DocumentTypeQuotation},
		{Token: "quote", Target: domain.DocumentTypeQuotation},
		{Token: "offer", Target: domain.DocumentTypeQuotation},
		{Token: "proposal", Target: domain.DocumentTypeQuotation},
		{Token: "po", Target: domain.DocumentTypePurchaseOrder},
		{Token: "lpo", Target: domain.DocumentTypePurchaseOrder},
		{Token: "order", Target: domain.DocumentTypePurchaseOrder},
		{Token: "invoice", Target: domain.DocumentTypeInvoice},
		{Token: "bill", Target: domain.DocumentTypeInvoice},
		{Token: "contract", Target: domain.DocumentTypeContract},
		{Token: "agreement", Target: domain.DocumentTypeContract},
	}
}
