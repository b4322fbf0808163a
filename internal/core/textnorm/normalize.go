// Package textnorm produces the normalized text every pipeline stage reads.
//
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization
// 3 Case folding
// 4 Remove format characters (zero-width joiners, BOM) and control characters
// 5 Width fold fullwidth to ASCII
// 6 Collapse whitespace runs, keeping a single newline where a run had one
package textnorm

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalizer is safe for concurrent use.
type Normalizer struct {
	fold bool
}

var (
	foldPool = sync.Pool{New: func() any { return newChain(true) }}
	keepPool = sync.Pool{New: func() any { return newChain(false) }}
)

func newChain(fold bool) transform.Transformer {
	steps := []transform.Transformer{norm.NFKC}
	if fold {
		steps = append(steps, cases.Fold())
	}
	steps = append(steps,
		runes.Remove(runes.In(unicode.Cf)),
		runes.Remove(runes.Predicate(isStrippedControl)),
		width.Fold,
	)
	return transform.Chain(steps...)
}

// isStrippedControl matches control characters other than the whitespace the
// collapse step understands.
func isStrippedControl(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return false
	}
	return unicode.IsControl(r)
}

// New returns a case-folding normalizer.
func New() *Normalizer { return &Normalizer{fold: true} }

// NewCasePreserving returns a normalizer that skips case folding. The mapper
// uses it so extracted names and descriptions keep their original casing.
func NewCasePreserving() *Normalizer { return &Normalizer{} }

// Normalize returns the normalized form of s.
func (n *Normalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	pool := &keepPool
	if n == nil || n.fold {
		pool = &foldPool
	}
	tr := pool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	pool.Put(tr)
	if err != nil {
		ns = s
	}

	return collapseSpaces(ns)
}

// collapseSpaces converts whitespace runs to a single ASCII space, but preserves line breaks.
// Runs that contain any newline are collapsed to a single newline.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	sawNL := false
	flush := func() {
		if !inWS {
			return
		}
		if sawNL {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		inWS = false
		sawNL = false
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			if r == '\n' || r == '\r' {
				sawNL = true
			}
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return strings.Trim(b.String(), " \n\t\r")
}

// Lines splits normalized text into its non-empty lines.
func Lines(s string) []string {
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
