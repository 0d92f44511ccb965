// internal/resolver/options.go
package resolver

import (
	"time"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/candidate"
	"github.com/xkilldash9x/scalpel-locator/internal/config"
	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/scoring"
)

// Options tunes a Resolver.
type Options struct {
	PrimaryTimeout     time.Duration
	ExplicitTimeoutCap time.Duration
	AlternateTimeout   time.Duration
	StrictTimeout      time.Duration
	PollInterval       time.Duration
	PersistHealed      bool
	MaxAlternates      int
	Weights            scoring.Weights
	VisibleRequired    bool
	MinStablePrefix    int
	// RunID is attached to every log line of the resolver.
	RunID string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		PrimaryTimeout:     6 * time.Second,
		ExplicitTimeoutCap: 8 * time.Second,
		AlternateTimeout:   3 * time.Second,
		StrictTimeout:      2 * time.Second,
		PollInterval:       browser.DefaultPollInterval,
		PersistHealed:      true,
		MaxAlternates:      locator.MaxAlternates,
		Weights:            scoring.DefaultWeights(),
		VisibleRequired:    true,
		MinStablePrefix:    candidate.DefaultMinStablePrefix,
	}
}

// OptionsFromConfig maps the resolver and scoring sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	r, s := cfg.Resolver, cfg.Scoring
	return Options{
		PrimaryTimeout:     r.PrimaryTimeout,
		ExplicitTimeoutCap: r.ExplicitTimeoutCap,
		AlternateTimeout:   r.AlternateTimeout,
		StrictTimeout:      r.StrictTimeout,
		PollInterval:       r.PollInterval,
		PersistHealed:      r.PersistHealed,
		MaxAlternates:      r.MaxAlternates,
		Weights: scoring.Weights{
			Tag:           s.TagWeight,
			ExactAttr:     s.ExactAttrWeight,
			FuzzyAttr:     s.FuzzyAttrWeight,
			Text:          s.TextWeight,
			TextThreshold: s.SimilarityThreshold,
		},
		VisibleRequired: s.VisibleRequired,
		MinStablePrefix: s.MinStablePrefix,
	}
}

// withDefaults fills zero durations and limits.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PrimaryTimeout <= 0 {
		o.PrimaryTimeout = d.PrimaryTimeout
	}
	if o.ExplicitTimeoutCap <= 0 {
		o.ExplicitTimeoutCap = d.ExplicitTimeoutCap
	}
	if o.AlternateTimeout <= 0 {
		o.AlternateTimeout = d.AlternateTimeout
	}
	if o.StrictTimeout <= 0 {
		o.StrictTimeout = d.StrictTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxAlternates <= 0 {
		o.MaxAlternates = d.MaxAlternates
	}
	if o.Weights == (scoring.Weights{}) {
		o.Weights = d.Weights
	}
	if o.MinStablePrefix <= 0 {
		o.MinStablePrefix = d.MinStablePrefix
	}
	return o
}
