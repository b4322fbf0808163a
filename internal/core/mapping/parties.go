package mapping

import (
	"regexp"
	"strings"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

var (
	emailPattern   = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePattern   = regexp.MustCompile(`(?i)\b(?:tel|phone|mobile|mob|ph|fax)\b\.?[ \t]*(?:no\b\.?)?[ \t]*[:\-]?[ \t]*(\+?\d[\d \-()]{6,}\d)|(\+\d[\d \-()]{7,}\d)`)
	contactPattern = regexp.MustCompile(`(?i)^\s*(?:attn|attention|contact(?:\s+person)?)\s*[:.\-]\s*(.+)$`)
	taxIDPattern   = regexp.MustCompile(`(?i)\b(?:vat|tax|trn|cr)\s*(?:reg(?:istration)?\.?\s*)?(?:no\b\.?|number|id|#)\s*[:\-]?\s*([A-Z0-9\-]{5,})`)
	addressPattern = regexp.MustCompile(`(?i)^\s*address\s*[:\-]\s*(.+)$`)
	anyLabelLine   = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z ./]{0,30}:\s*`)
)

const partyContextLines = 3

type labelMatcher struct {
	role    domain.PartyRole
	pattern *regexp.Regexp
}

func newLabelMatchers(labels roleLabels) []labelMatcher {
	build := func(words []string) *regexp.Regexp {
		quoted := make([]string, 0, len(words))
		for _, w := range words {
			quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
		}
		return regexp.MustCompile(`(?i)^\s*(?:` + strings.Join(quoted, "|") + `)(?:\s+name)?\s*[:\-]\s*(.*)$`)
	}
	return []labelMatcher{
		{role: domain.PartyIssuer, pattern: build(labels.issuer)},
		{role: domain.PartyRecipient, pattern: build(labels.recipient)},
	}
}

// extractParties finds labelled issuer and recipient blocks. Contact details
// on the label line or the few lines after it are attached to the party.
func extractParties(lines []string, matchers []labelMatcher) map[domain.PartyRole]*domain.Party {
	parties := make(map[domain.PartyRole]*domain.Party)
	for i, line := range lines {
		for _, lm := range matchers {
			if _, seen := parties[lm.role]; seen {
				continue
			}
			m := lm.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			value := strings.TrimSpace(m[1])
			next := i + 1
			if value == "" && next < len(lines) && !anyLabelLine.MatchString(lines[next]) {
				value = lines[next]
				next++
			}
			party := &domain.Party{Name: partyName(value)}
			if party.Name == "" {
				continue
			}
			fillContact(party, value)
			for j := next; j < len(lines) && j < next+partyContextLines; j++ {
				if startsPartyBlock(lines[j], matchers) {
					break
				}
				fillContact(party, lines[j])
				if party.Address == "" && !anyLabelLine.MatchString(lines[j]) &&
					!emailPattern.MatchString(lines[j]) && !phonePattern.MatchString(lines[j]) &&
					!strings.Contains(lines[j], "|") {
					party.Address = lines[j]
				}
			}
			parties[lm.role] = party
			break
		}
	}
	return parties
}

func startsPartyBlock(line string, matchers []labelMatcher) bool {
	for _, lm := range matchers {
		if lm.pattern.MatchString(line) {
			return true
		}
	}
	return false
}

func partyName(value string) string {
	name := emailPattern.ReplaceAllString(value, "")
	name = phonePattern.ReplaceAllString(name, "")
	if i := strings.IndexAny(name, ",;"); i > 0 {
		name = name[:i]
	}
	return cleanValue(name)
}

func fillContact(p *domain.Party, line string) {
	if p.Email == "" {
		p.Email = emailPattern.FindString(line)
	}
	if m := taxIDPattern.FindStringSubmatch(line); m != nil && p.TaxID == "" {
		p.TaxID = m[1]
		line = strings.Replace(line, m[0], "", 1)
	}
	if p.Phone == "" {
		p.Phone = findPhone(line)
	}
	if m := contactPattern.FindStringSubmatch(line); m != nil && p.ContactPerson == "" {
		p.ContactPerson = partyName(m[1])
	}
	if m := addressPattern.FindStringSubmatch(line); m != nil && p.Address == "" {
		p.Address = cleanValue(m[1])
	}
}

func findPhone(line string) string {
	m := phonePattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(m[2])
}

// FindEmails returns every e-mail address in text, in order of appearance.
func FindEmails(text string) []string {
	return emailPattern.FindAllString(text, -1)
}

// FindPhones returns labelled or internationally formatted phone numbers in text.
func FindPhones(text string) []string {
	var out []string
	for _, m := range phonePattern.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			out = append(out, strings.TrimSpace(m[1]))
		} else {
			out = append(out, strings.TrimSpace(m[2]))
		}
	}
	return out
}
