package classify

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
	"github.com/kirillkom/procurement-intake/internal/core/textnorm"
)

const (
	maxEvidence     = 3
	maxAlternatives = 5
	scoreEpsilon    = 1e-9
)

// Classifier scores document types from weighted signal patterns. It holds
// only read-only state and may be shared across goroutines.
type Classifier struct {
	registry   *Registry
	normalizer *textnorm.Normalizer
	now        func() time.Time
}

func NewClassifier(registry *Registry) *Classifier {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Classifier{
		registry:   registry,
		normalizer: textnorm.New(),
		now:        time.Now,
	}
}

func (c *Classifier) Classify(text, userHint, fileName string) domain.ClassificationResult {
	th := c.registry.thresholds
	result := domain.ClassificationResult{
		DocumentType: domain.DocumentTypeUnknown,
		Method:       domain.MethodNone,
		Signals:      []domain.ClassificationSignal{},
		Reasoning:    []string{},
		Alternatives: []domain.TypeScore{},
		Timestamp:    c.now().UTC(),
	}

	normalized := c.normalizer.Normalize(text)
	raw := make(map[domain.DocumentType]float64)
	var keywordFired, structureFired bool

	if normalized != "" {
		for _, sig := range c.registry.signals {
			evidence := sig.match(normalized)
			matched := len(evidence) > 0
			s := domain.ClassificationSignal{
				Name:     sig.def.Name,
				Target:   sig.def.Target,
				Matched:  matched,
				Weight:   sig.def.Weight,
				Evidence: evidence,
			}
			if matched {
				s.Confidence = th.SignalConfidence
				raw[sig.def.Target] += sig.def.Weight * th.SignalConfidence
				if sig.def.Kind == KindStructure {
					structureFired = true
				} else {
					keywordFired = true
				}
			}
			result.Signals = append(result.Signals, s)
		}
	}

	if hinted, ok := c.registry.lookupHint(baseName(fileName)); ok && normalized != "" {
		result.Signals = append(result.Signals, domain.ClassificationSignal{
			Name:       "filename_hint",
			Target:     hinted,
			Matched:    true,
			Weight:     th.FilenameWeight,
			Confidence: th.SignalConfidence,
			Evidence:   []string{fileName},
		})
		raw[hinted] += th.FilenameWeight * th.SignalConfidence
		structureFired = true
		result.Reasoning = append(result.Reasoning, fmt.Sprintf("file name %q suggests %s", fileName, hinted))
	}

	ranked := rankScores(raw)
	switch {
	case keywordFired && structureFired:
		result.Method = domain.MethodHybrid
	case keywordFired:
		result.Method = domain.MethodKeyword
	case structureFired:
		result.Method = domain.MethodStructure
	}

	if len(ranked) == 0 {
		result.Reasoning = append(result.Reasoning, "no classification signals matched")
	} else {
		top := ranked[0]
		normalizedScores := normalizeScores(ranked)
		result.Confidence = math.Min(1, top.Score)

		if top.Score+scoreEpsilon < th.Confidence {
			result.Alternatives = limitAlternatives(normalizedScores)
			result.Reasoning = append(result.Reasoning, fmt.Sprintf(
				"top score %.2f for %s is below threshold %.2f", top.Score, top.Type, th.Confidence))
		} else {
			result.DocumentType = top.Type
			result.Alternatives = limitAlternatives(normalizedScores[1:])
			result.Reasoning = append(result.Reasoning, fmt.Sprintf("%s scored %.2f from matched signals", top.Type, top.Score))

			if first, second, mixed := mixedPair(normalizedScores, th.MixedFloor, th.MixedGap); mixed {
				primary := top.Type
				result.DocumentType = domain.DocumentTypeMixed
				result.Confidence *= th.MixedPenalty
				result.SuggestedConversion = &primary
				result.Reasoning = append(result.Reasoning, fmt.Sprintf(
					"mixed document: %s (%.2f) and %s (%.2f) are within %.2f",
					first.Type, first.Score, second.Type, second.Score, th.MixedGap))
			}
		}
	}

	if normalized == "" {
		if strings.TrimSpace(userHint) != "" {
			result.Reasoning = append(result.Reasoning, fmt.Sprintf("user hint %q ignored: no text to classify", userHint))
		}
	} else {
		c.reconcileHint(&result, userHint)
	}

	result.Confidence = clamp01(result.Confidence)
	result.RequiresReview = result.Confidence+scoreEpsilon < th.Confidence ||
		result.DocumentType == domain.DocumentTypeMixed ||
		result.DocumentType == domain.DocumentTypeUnknown
	return result
}

func (c *Classifier) reconcileHint(result *domain.ClassificationResult, userHint string) {
	th := c.registry.thresholds
	hinted, ok := c.registry.lookupHint(userHint)
	if !ok {
		if strings.TrimSpace(userHint) != "" {
			result.Reasoning = append(result.Reasoning, fmt.Sprintf("user hint %q not recognized", userHint))
		}
		return
	}
	if hinted == result.DocumentType {
		result.Reasoning = append(result.Reasoning, fmt.Sprintf("user hint %q agrees with %s", userHint, hinted))
		return
	}

	if result.Confidence+scoreEpsilon < th.HintTrustBelow {
		result.Reasoning = append(result.Reasoning, fmt.Sprintf(
			"user hint %q overrides low-confidence %s (%.2f)", userHint, result.DocumentType, result.Confidence))
		result.DocumentType = hinted
		result.Confidence = th.HintConfidence
		result.Method = domain.MethodUserHint
		result.SuggestedConversion = nil
		result.Signals = append(result.Signals, domain.ClassificationSignal{
			Name:       "user_hint",
			Target:     hinted,
			Matched:    true,
			Weight:     1,
			Confidence: th.HintConfidence,
			Evidence:   []string{userHint},
		})
		return
	}

	result.Signals = append(result.Signals, domain.ClassificationSignal{
		Name:       "user_hint_conflict",
		Target:     hinted,
		Matched:    true,
		Weight:     th.ConflictWeight,
		Confidence: th.SignalConfidence,
		Evidence:   []string{userHint},
	})
	result.Reasoning = append(result.Reasoning, fmt.Sprintf(
		"user hint %q (%s) conflicts with %s at confidence %.2f; keeping computed type",
		userHint, hinted, result.DocumentType, result.Confidence))
}

// match returns up to maxEvidence matched substrings, or nil when no pattern hits.
func (s compiledSignal) match(text string) []string {
	for _, re := range s.exclude {
		text = re.ReplaceAllStringFunc(text, func(m string) string { return strings.Repeat(" ", len(m)) })
	}
	var evidence []string
	for _, re := range s.patterns {
		if len(evidence) >= maxEvidence {
			break
		}
		for _, m := range re.FindAllString(text, maxEvidence-len(evidence)) {
			evidence = append(evidence, strings.TrimSpace(m))
		}
	}
	return evidence
}

// rankScores orders positive scores descending; ties keep the declaration
// order of domain.ConcreteDocumentTypes.
func rankScores(raw map[domain.DocumentType]float64) []domain.TypeScore {
	ranked := make([]domain.TypeScore, 0, len(raw))
	for _, t := range domain.ConcreteDocumentTypes {
		if score := raw[t]; score > 0 {
			ranked = append(ranked, domain.TypeScore{Type: t, Score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

func normalizeScores(ranked []domain.TypeScore) []domain.TypeScore {
	out := make([]domain.TypeScore, len(ranked))
	if len(ranked) == 0 || ranked[0].Score <= 0 {
		return out
	}
	top := ranked[0].Score
	for i, ts := range ranked {
		out[i] = domain.TypeScore{Type: ts.Type, Score: ts.Score / top}
	}
	return out
}

// mixedPair reports whether the two best of the descending normalized scores
// both clear floor and sit closer than gap.
func mixedPair(ranked []domain.TypeScore, floor, gap float64) (domain.TypeScore, domain.TypeScore, bool) {
	if len(ranked) < 2 {
		return domain.TypeScore{}, domain.TypeScore{}, false
	}
	first, second := ranked[0], ranked[1]
	if first.Score+scoreEpsilon < floor || second.Score+scoreEpsilon < floor {
		return first, second, false
	}
	return first, second, first.Score-second.Score < gap-scoreEpsilon
}

func limitAlternatives(scores []domain.TypeScore) []domain.TypeScore {
	if len(scores) > maxAlternatives {
		scores = scores[:maxAlternatives]
	}
	out := make([]domain.TypeScore, len(scores))
	copy(out, scores)
	return out
}

func baseName(fileName string) string {
	if i := strings.LastIndexAny(fileName, `/\`); i >= 0 {
		fileName = fileName[i+1:]
	}
	if i := strings.LastIndex(fileName, "."); i > 0 {
		fileName = fileName[:i]
	}
	return fileName
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
