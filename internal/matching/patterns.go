// internal/matching/patterns.go
package matching

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const DefaultPatternSetVersion = "v1"

// defaultAnchorPhrases are the section labels found on Indian board marksheets.
var defaultAnchorPhrases = []string{
	"STUDENT NAME",
	"CANDIDATE",
	"ROLL NO",
	"SEAT NO",
	"TOTAL MARKS",
	"PERCENTAGE",
	"GRADE",
	"DIVISION",
	"EXAMINATION",
	"CERTIFICATE",
	"RESULT",
}

// Anchor is a labelled regular expression looked for in OCR text.
type Anchor struct {
	Label   string
	pattern *regexp.Regexp
}

func (a Anchor) Pattern() string {
	if a.pattern == nil {
		return ""
	}
	return a.pattern.String()
}

func (a Anchor) MatchString(text string) bool {
	return a.pattern != nil && a.pattern.MatchString(text)
}

// PatternSet is an immutable, versioned list of anchors. Extending a set
// returns a new value; existing holders keep seeing the old anchors.
type PatternSet struct {
	version string
	anchors []Anchor
}

func DefaultPatternSet() PatternSet {
	ps, err := NewPatternSet(DefaultPatternSetVersion, defaultAnchorPhrases...)
	if err != nil {
		panic(fmt.Sprintf("default pattern set: %v", err))
	}
	return ps
}

// NewPatternSet builds a set from plain phrases. Words in a phrase may be
// separated by any whitespace in the text; matching ignores case.
func NewPatternSet(version string, phrases ...string) (PatternSet, error) {
	return PatternSet{version: version}.Extend(version, phrases...)
}

func (p PatternSet) Version() string { return p.version }

func (p PatternSet) Len() int { return len(p.anchors) }

func (p PatternSet) Labels() []string {
	out := make([]string, len(p.anchors))
	for i, a := range p.anchors {
		out[i] = a.Label
	}
	return out
}

// Extend adds phrases not already in the set under a new version.
func (p PatternSet) Extend(version string, phrases ...string) (PatternSet, error) {
	next := p.copyAs(version)
	for _, phrase := range phrases {
		label := strings.ToUpper(strings.Join(strings.Fields(phrase), " "))
		if label == "" || next.has(label) {
			continue
		}
		re, err := regexp.Compile(phraseExpr(label))
		if err != nil {
			return PatternSet{}, fmt.Errorf("compile anchor %q: %w", phrase, err)
		}
		next.anchors = append(next.anchors, Anchor{Label: label, pattern: re})
	}
	return next, nil
}

// WithAnchor adds a raw expression, such as one produced by DerivePattern.
func (p PatternSet) WithAnchor(version, label, expr string) (PatternSet, error) {
	if p.has(label) {
		return p.copyAs(version), nil
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return PatternSet{}, fmt.Errorf("compile anchor %q: %w", label, err)
	}
	next := p.copyAs(version)
	next.anchors = append(next.anchors, Anchor{Label: label, pattern: re})
	return next, nil
}

// Present lists the labels of anchors found in text.
func (p PatternSet) Present(text string) []string {
	var out []string
	for _, a := range p.anchors {
		if a.MatchString(text) {
			out = append(out, a.Label)
		}
	}
	return out
}

// RawTextSimilarity is the fraction of anchors whose presence agrees between
// the two texts.
func (p PatternSet) RawTextSimilarity(doc, tmpl string) float64 {
	if strings.TrimSpace(doc) == "" || strings.TrimSpace(tmpl) == "" || len(p.anchors) == 0 {
		return 0
	}
	agree := 0
	for _, a := range p.anchors {
		if a.MatchString(doc) == a.MatchString(tmpl) {
			agree++
		}
	}
	return float64(agree) / float64(len(p.anchors))
}

func (p PatternSet) has(label string) bool {
	for _, a := range p.anchors {
		if a.Label == label {
			return true
		}
	}
	return false
}

func (p PatternSet) copyAs(version string) PatternSet {
	return PatternSet{
		version: version,
		anchors: append([]Anchor(nil), p.anchors...),
	}
}

func phraseExpr(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return `(?i)` + strings.Join(words, `\s+`)
}

// DerivePattern turns an example phrase into a shape expression: runs of
// digits, upper case, lower case and whitespace become character classes and
// everything else is matched literally. "Total Marks 450" becomes
// `[A-Z]+[a-z]+\s+[A-Z]+[a-z]+\s+\d+`.
func DerivePattern(example string) string {
	var b strings.Builder
	prev := ""
	for _, r := range example {
		var class string
		switch {
		case unicode.IsDigit(r):
			class = `\d+`
		case unicode.IsUpper(r):
			class = `[A-Z]+`
		case unicode.IsLower(r):
			class = `[a-z]+`
		case unicode.IsSpace(r):
			class = `\s+`
		default:
			prev = ""
			b.WriteString(regexp.QuoteMeta(string(r)))
			continue
		}
		if class != prev {
			b.WriteString(class)
			prev = class
		}
	}
	return b.String()
}
