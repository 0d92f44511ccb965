// internal/resolver/resolver.go
package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/heal"
	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/scoring"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// Definitions supplies the locator entries of a page. *locator.Store
// implements it.
type Definitions interface {
	Load(page string) (map[string]locator.Entry, error)
	LoadMerged(ctx context.Context, page string) (map[string]locator.Entry, error)
}

// Resolver turns logical names of one page into working selectors. Call it
// from a single goroutine; the cache and in-memory entries are unguarded.
type Resolver struct {
	page    string
	defs    Definitions
	heals   heal.Store
	matcher *Matcher
	scorer  *scoring.Scorer
	opts    Options
	logger  *zap.Logger

	entries map[string]locator.Entry
	cache   *Cache
}

// New loads the merged definitions of page and returns a resolver bound to
// driver. heals may be nil, which disables persistence.
func New(ctx context.Context, page string, driver browser.Driver, defs Definitions, heals heal.Store, opts Options, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if heals == nil {
		heals = heal.Disabled{}
	}
	opts = opts.withDefaults()

	entries, err := defs.LoadMerged(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to load locators for page %q: %w", page, err)
	}

	log := logger.Named("resolver").With(zap.String("page", page))
	if opts.RunID != "" {
		log = log.With(zap.String("run_id", opts.RunID))
	}
	return &Resolver{
		page:    page,
		defs:    defs,
		heals:   heals,
		matcher: NewMatcher(driver, opts.PollInterval, log),
		scorer:  scoring.New(opts.Weights, opts.VisibleRequired),
		opts:    opts,
		logger:  log,
		entries: entries,
		cache:   NewCache(),
	}, nil
}

// Page returns the page the resolver is bound to.
func (r *Resolver) Page() string { return r.page }

// Options returns the effective options.
func (r *Resolver) Options() Options { return r.opts }

// Matcher exposes the resolver's matcher, shared with page helpers.
func (r *Resolver) Matcher() *Matcher { return r.matcher }

// Entry returns the in-memory entry for name.
func (r *Resolver) Entry(name string) (locator.Entry, bool) {
	e, ok := r.entries[name]
	return e.Clone(), ok
}

// Names returns the logical names of the page, sorted.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns a working selector for name using the primary timeout.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	return r.ResolveWithin(ctx, name, r.opts.PrimaryTimeout)
}

// ResolveWithin returns a working selector for name. Results are cached for
// the lifetime of the resolver; heals are written to the heal store.
func (r *Resolver) ResolveWithin(ctx context.Context, name string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = r.opts.PrimaryTimeout
	}
	start := time.Now()
	log := r.logger.With(zap.String("name", name))

	// 1. Cache.
	if sel, ok := r.cache.Get(r.page, name); ok {
		log.Debug("Resolved locator from cache.", zap.String("selector", sel))
		return sel, nil
	}

	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q on page %q", ErrEntryNotFound, name, r.page)
	}

	// 2. Explicit, alternates, then generated candidates.
	for _, s := range Plan(e, r.opts, timeout) {
		out, ok := s.Attempt(ctx, r.matcher, r.scorer, e)
		if err := ctx.Err(); err != nil {
			return "", &ResolutionError{Page: r.page, Name: name, Err: err}
		}
		if !ok {
			log.Debug("Strategy rejected.", zap.Stringer("strategy", s))
			continue
		}

		// 3. A heal has to keep matching before it is trusted.
		if out.Confirm {
			if _, ok := r.matcher.WaitFor(ctx, out.Selector, timeout); !ok {
				log.Warn("Healed selector did not reappear.", zap.String("selector", out.Selector))
				return "", &ResolutionError{Page: r.page, Name: name, Err: ctx.Err()}
			}
		}

		r.cache.Put(r.page, name, out.Selector)
		fields := []zap.Field{
			zap.Stringer("strategy", s),
			zap.Stringer("tier", out.Tier),
			zap.String("selector", out.Selector),
			zap.Duration("duration", time.Since(start)),
		}
		if out.Kind == KindHeuristic {
			log.Info("Healed locator.", append(fields, zap.Float64("score", out.Score))...)
		} else {
			log.Debug("Resolved locator.", fields...)
		}

		// 4. Persist.
		if out.Persist {
			r.persist(ctx, name, out.Selector)
		}
		return out.Selector, nil
	}

	log.Warn("Failed to resolve locator.", zap.Duration("duration", time.Since(start)))
	return "", &ResolutionError{Page: r.page, Name: name}
}

// persist records sel in the page overlay. Generic selectors are never
// written. Failures are logged and otherwise ignored.
func (r *Resolver) persist(ctx context.Context, name, sel string) {
	log := r.logger.With(zap.String("name", name), zap.String("selector", sel))
	if !r.opts.PersistHealed {
		return
	}
	if selector.IsGeneric(sel) {
		log.Debug("Not persisting generic selector.")
		return
	}
	overlay, err := r.heals.Load(ctx, r.page)
	if err != nil {
		log.Warn("Failed to load healed overlay for update.", zap.Error(err))
		return
	}
	if overlay == nil {
		overlay = locator.Overlay{}
	}
	if _, ok := overlay[name]; !ok {
		// Keep the declared alternates behind the new selector.
		if alts := r.entries[name].Alternates; len(alts) > 0 {
			overlay[name] = locator.Entry{Alternates: append([]string{}, alts...)}
		}
	}
	heal.Record(overlay, name, sel, r.opts.MaxAlternates)
	if err := r.heals.Save(ctx, r.page, overlay); err != nil {
		log.Warn("Failed to save healed overlay.", zap.Error(err))
		return
	}
	r.entries[name] = locator.Merge(r.entries[name], overlay[name])
	log.Debug("Persisted healed selector.")
}

// ResolveStrict returns the declared explicit selector of name without
// healing. It waits briefly for a guard-passing match but returns the
// declared selector either way. Strict results are not cached.
func (r *Resolver) ResolveStrict(ctx context.Context, name string) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q on page %q", ErrEntryNotFound, name, r.page)
	}
	sel := e.Explicit()
	if sel == "" {
		return "", fmt.Errorf("%w: %q on page %q", ErrNoExplicitSelector, name, r.page)
	}
	if !waitGuarded(ctx, r.matcher, r.scorer, e, sel, r.opts.StrictTimeout) {
		r.logger.Debug("Declared selector did not pass guards.", zap.String("name", name), zap.String("selector", sel))
	}
	return sel, nil
}

// Unheal removes the healed overlay entry and cached selector of name and
// restores its base definition, so the next Resolve searches again. It
// reports whether anything was removed.
func (r *Resolver) Unheal(ctx context.Context, name string) (bool, error) {
	overlay, err := r.heals.Load(ctx, r.page)
	if err != nil {
		return false, fmt.Errorf("failed to load healed overlay: %w", err)
	}
	removed := heal.Remove(overlay, name)
	if removed {
		if err := r.heals.Save(ctx, r.page, overlay); err != nil {
			return false, fmt.Errorf("failed to save healed overlay: %w", err)
		}
	}

	forgotQualified := r.cache.Forget(r.page, name)
	forgotBare := r.cache.Forget("", name)

	base, err := r.defs.Load(r.page)
	if err != nil {
		return removed || forgotQualified || forgotBare, fmt.Errorf("failed to reload base locators: %w", err)
	}
	if e, ok := base[name]; ok {
		r.entries[name] = e
	} else {
		delete(r.entries, name)
	}

	changed := removed || forgotQualified || forgotBare
	r.logger.Info("Unhealed locator.", zap.String("name", name), zap.Bool("removed", changed))
	return changed, nil
}

// UnhealAll unheals every given name, or every known name when none are
// given. Failures are logged and skipped. It returns how many names had
// something removed.
func (r *Resolver) UnhealAll(ctx context.Context, names ...string) int {
	if len(names) == 0 {
		names = r.Names()
		if overlay, err := r.heals.Load(ctx, r.page); err == nil {
			for name := range overlay {
				if _, known := r.entries[name]; !known {
					names = append(names, name)
				}
			}
		}
	}
	count := 0
	for _, name := range names {
		removed, err := r.Unheal(ctx, name)
		if err != nil {
			r.logger.Warn("Failed to unheal locator.", zap.String("name", name), zap.Error(err))
			continue
		}
		if removed {
			count++
		}
	}
	return count
}

// ClearCache forgets the cached selectors of the given names, or all of them
// when none are given. The heal store is not touched.
func (r *Resolver) ClearCache(names ...string) {
	if len(names) == 0 {
		r.cache.Clear()
		return
	}
	for _, name := range names {
		r.cache.Forget(r.page, name)
		r.cache.Forget("", name)
	}
}

// Cached reports whether name currently has a cached selector.
func (r *Resolver) Cached(name string) bool {
	_, ok := r.cache.Get(r.page, name)
	return ok
}
