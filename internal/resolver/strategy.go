// internal/resolver/strategy.go
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/candidate"
	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/scoring"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// Kind names the family a strategy belongs to.
type Kind int

const (
	KindExplicit Kind = iota
	KindAlternate
	KindHeuristic
)

func (k Kind) String() string {
	switch k {
	case KindExplicit:
		return "explicit"
	case KindAlternate:
		return "alternate"
	default:
		return "heuristic"
	}
}

// Outcome is an accepted selector with what produced it.
type Outcome struct {
	Selector string
	Kind     Kind
	Tier     candidate.Tier
	// Score is only set by heuristic strategies.
	Score float64
	// Persist marks outcomes worth writing to the heal store.
	Persist bool
	// Confirm asks the resolver to check the selector still matches before
	// accepting it.
	Confirm bool
}

// Strategy is one attempt at finding the element an entry describes.
type Strategy interface {
	Attempt(ctx context.Context, m *Matcher, s *scoring.Scorer, e locator.Entry) (Outcome, bool)
	String() string
}

// Explicit trusts the declared selector as long as its first match passes the
// guards.
type Explicit struct {
	Selector string
	Timeout  time.Duration
}

func (x Explicit) Attempt(ctx context.Context, m *Matcher, s *scoring.Scorer, e locator.Entry) (Outcome, bool) {
	if !waitGuarded(ctx, m, s, e, x.Selector, x.Timeout) {
		return Outcome{}, false
	}
	return Outcome{Selector: x.Selector, Kind: KindExplicit, Tier: candidate.TierExplicit}, true
}

func (x Explicit) String() string { return "explicit" }

// Alternate tries one previously working selector. A hit is persisted again
// so it moves to the front of the list.
type Alternate struct {
	Index    int
	Selector string
	Timeout  time.Duration
}

func (a Alternate) Attempt(ctx context.Context, m *Matcher, s *scoring.Scorer, e locator.Entry) (Outcome, bool) {
	if !waitGuarded(ctx, m, s, e, a.Selector, a.Timeout) {
		return Outcome{}, false
	}
	return Outcome{Selector: a.Selector, Kind: KindAlternate, Tier: candidate.TierExplicit, Persist: true}, true
}

func (a Alternate) String() string { return fmt.Sprintf("alternate[%d]", a.Index) }

// Heuristic scores the matches of one generated candidate. A single positive
// match accepts the candidate as is; several matches accept the best one,
// pinned with a positional wrapper when the candidate is XPath.
type Heuristic struct {
	Candidate candidate.Candidate
}

func (h Heuristic) Attempt(ctx context.Context, m *Matcher, s *scoring.Scorer, e locator.Entry) (Outcome, bool) {
	sel := h.Candidate.Selector
	els := m.Query(ctx, sel)
	out := Outcome{Kind: KindHeuristic, Tier: h.Candidate.Tier, Persist: true, Confirm: true}

	switch len(els) {
	case 0:
		return Outcome{}, false
	case 1:
		score := s.Score(els[0], e)
		if score <= 0 {
			return Outcome{}, false
		}
		out.Selector, out.Score = sel, score
		return out, true
	}

	best, ok := s.Rank(els, e)
	if !ok {
		return Outcome{}, false
	}
	if selector.Parse(sel).Kind != selector.XPath || !selector.IsWrappable(sel) {
		// A CSS selector cannot be pinned to one of several matches.
		return Outcome{}, false
	}
	out.Selector, out.Score = selector.Indexed(sel, best.Index), best.Score
	return out, true
}

func (h Heuristic) String() string { return "heuristic:" + h.Candidate.Tier.String() }

// waitGuarded polls sel until its first match passes the scorer's guards.
func waitGuarded(ctx context.Context, m *Matcher, s *scoring.Scorer, e locator.Entry, sel string, timeout time.Duration) bool {
	if sel == "" {
		return false
	}
	_, ok := m.WaitMatch(ctx, sel, timeout, func(els []browser.Element) bool {
		if len(els) == 0 {
			return false
		}
		pass, err := s.Guard(els[0], e)
		return err == nil && pass
	})
	return ok
}

// Plan lists the strategies for an entry in evaluation order.
func Plan(e locator.Entry, opts Options, timeout time.Duration) []Strategy {
	var plan []Strategy
	explicit := e.Explicit()
	if explicit != "" {
		plan = append(plan, Explicit{Selector: explicit, Timeout: min(timeout, opts.ExplicitTimeoutCap)})
	}
	for i, alt := range e.Alternates {
		if alt == "" || alt == explicit {
			continue
		}
		plan = append(plan, Alternate{Index: i, Selector: alt, Timeout: opts.AlternateTimeout})
	}
	for _, c := range candidate.Generate(e, candidate.Options{MinStablePrefix: opts.MinStablePrefix}) {
		plan = append(plan, Heuristic{Candidate: c})
	}
	return plan
}
