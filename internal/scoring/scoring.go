// internal/scoring/scoring.go
package scoring

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/candidate"
	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// Weights are the additive contributions of each signal. The defaults are
// empirical and kept configurable.
type Weights struct {
	Tag           float64
	ExactAttr     float64
	FuzzyAttr     float64
	Text          float64
	TextThreshold float64
}

// DefaultWeights returns the stock weights.
func DefaultWeights() Weights {
	return Weights{
		Tag:           0.35,
		ExactAttr:     0.25,
		FuzzyAttr:     0.15,
		Text:          0.25,
		TextThreshold: 0.62,
	}
}

// scoredAttrs are compared between the entry and the element.
var scoredAttrs = []string{"type", "placeholder", "aria-label", "name", "id", "class"}

// Match is a scored query result. Index is 1-based document order within the
// query that produced it.
type Match struct {
	Element browser.Element
	Index   int
	Score   float64
}

// Scorer ranks elements against a locator entry.
type Scorer struct {
	weights         Weights
	visibleRequired bool
}

// New creates a scorer.
func New(w Weights, visibleRequired bool) *Scorer {
	return &Scorer{weights: w, visibleRequired: visibleRequired}
}

// Default returns a scorer with DefaultWeights that requires visibility.
func Default() *Scorer {
	return New(DefaultWeights(), true)
}

// Weights returns the scorer's weights.
func (s *Scorer) Weights() Weights { return s.weights }

// Guard applies the hard attribute checks: declared tag, declared
// aria-colindex and declared class tokens. Visibility is not a guard; it only
// gates Score. A read error is returned as is; callers treat it as a failed
// guard.
func (s *Scorer) Guard(el browser.Element, e locator.Entry) (bool, error) {
	if want := expectedTag(e); want != "" {
		have, err := el.TagName()
		if err != nil {
			return false, err
		}
		if strings.ToLower(strings.TrimSpace(have)) != want {
			return false, nil
		}
	}

	if want, ok := e.Attributes["aria-colindex"]; ok {
		have, _, err := el.Attribute("aria-colindex")
		if err != nil {
			return false, err
		}
		if strings.TrimSpace(have) != strings.TrimSpace(want) {
			return false, nil
		}
	}

	if want := strings.Fields(e.Attr("class")); len(want) > 0 {
		have, _, err := el.Attribute("class")
		if err != nil {
			return false, err
		}
		if !HasClassTokens(have, want) {
			return false, nil
		}
	}
	return true, nil
}

// Score returns the confidence that el is the element e describes. It is 0
// when a guard fails, when visibility is required and el is hidden, or when
// the element cannot be read.
func (s *Scorer) Score(el browser.Element, e locator.Entry) float64 {
	ok, err := s.Guard(el, e)
	if err != nil || !ok {
		return 0
	}
	if s.visibleRequired {
		visible, err := el.Visible()
		if err != nil || !visible {
			return 0
		}
	}

	var score float64
	if want := expectedTag(e); want != "" {
		// Guard already verified the tag.
		score += s.weights.Tag
	}

	for _, a := range scoredAttrs {
		want := e.Attr(a)
		if want == "" {
			continue
		}
		have, _, err := el.Attribute(a)
		if err != nil {
			return 0
		}
		if have == "" {
			continue
		}
		if candidate.Normalize(have) == candidate.Normalize(want) {
			score += s.weights.ExactAttr
		} else {
			score += s.weights.FuzzyAttr * Similarity(have, want)
		}
	}

	if e.Text != "" {
		text, err := el.Text()
		if err != nil {
			return 0
		}
		if sim := Similarity(text, e.Text); sim >= s.weights.TextThreshold {
			score += s.weights.Text * sim
		}
	}
	return score
}

// Rank scores every element and returns the best one. ok is false when no
// element scores above zero. Ties keep the earliest element.
func (s *Scorer) Rank(els []browser.Element, e locator.Entry) (best Match, ok bool) {
	for i, el := range els {
		sc := s.Score(el, e)
		if sc > best.Score {
			best = Match{Element: el, Index: i + 1, Score: sc}
		}
	}
	return best, best.Score > 0
}

// Similarity is the case and whitespace insensitive SequenceMatcher ratio of
// a and b, in [0,1].
func Similarity(a, b string) float64 {
	na := strings.ToLower(candidate.Normalize(a))
	nb := strings.ToLower(candidate.Normalize(b))
	m := difflib.NewMatcher(strings.Split(na, ""), strings.Split(nb, ""))
	return m.Ratio()
}

// HasClassTokens reports whether every wanted token appears in the
// whitespace-separated class attribute have.
func HasClassTokens(have string, want []string) bool {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(have) {
		tokens[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := tokens[t]; !ok {
			return false
		}
	}
	return true
}

func expectedTag(e locator.Entry) string {
	tag := strings.ToLower(strings.TrimSpace(e.Tag))
	if tag == "*" || !selector.IsTagName(tag) {
		return ""
	}
	return tag
}
