package similarity

import (
	"context"
	"fmt"

	"github.com/agnivade/levenshtein"

	"github.com/siftmod/sift/decisionstore"
	"github.com/siftmod/sift/normtext"
)

// Default tunables, preserved from the source system.
const (
	DefaultThreshold  = 0.85
	DefaultWindowSize = 1000
)

type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchApprox MatchKind = "approx"
)

// Matcher resolves new content against previously recorded decisions.
//
// The exact path is index-backed and unbounded in corpus size: every
// normalization variant is fingerprinted and looked up directly. The
// approximate path is a bounded best-effort fallback over a recent window;
// false negatives there are acceptable, false positives are kept rare by
// the high default threshold.
type Matcher struct {
	Store decisionstore.DecisionStore
	// optional read-through cache over exact lookups
	Cache      DecisionCache
	Threshold  float64
	WindowSize int
}

func NewMatcher(store decisionstore.DecisionStore, cache DecisionCache) *Matcher {
	return &Matcher{
		Store:      store,
		Cache:      cache,
		Threshold:  DefaultThreshold,
		WindowSize: DefaultWindowSize,
	}
}

// Match returns the binding prior decision for the given raw text, or nil
// if no prior decision applies. Read-only apart from cache fills.
func (m *Matcher) Match(ctx context.Context, rawText string) (*decisionstore.Decision, MatchKind, error) {
	variants := normtext.Variants(rawText)
	if len(variants) == 0 {
		return nil, "", nil
	}

	for _, v := range variants {
		fp := normtext.Fingerprint(v)
		if m.Cache != nil {
			hit, err := m.Cache.Get(ctx, fp)
			if err == nil && hit != nil {
				return hit, MatchExact, nil
			}
			// cache errors fall through to the store
		}
		d, err := m.Store.Get(ctx, fp)
		if err != nil {
			return nil, "", fmt.Errorf("decision lookup for variant fingerprint: %w", err)
		}
		if d != nil {
			if m.Cache != nil {
				_ = m.Cache.Set(ctx, fp, d)
			}
			return d, MatchExact, nil
		}
	}

	normalized := variants[0]
	window, err := m.Store.RecentWindow(ctx, m.WindowSize)
	if err != nil {
		return nil, "", fmt.Errorf("fetching recent decision window: %w", err)
	}
	// window is newest-first, so ties on score resolve to the most recent
	for _, d := range window {
		if d.NormalizedText == "" {
			continue
		}
		if Ratio(normalized, d.NormalizedText) >= m.Threshold {
			return d, MatchApprox, nil
		}
	}
	return nil, "", nil
}

// Invalidate drops any cached entries for the given fingerprints. Callers
// must invalidate after any decision upsert that can supersede a verdict
// (overrule, re-finalize): a cached entry would otherwise keep serving the
// old verdict until its TTL. Returns the first cache error encountered but
// always attempts every fingerprint.
func (m *Matcher) Invalidate(ctx context.Context, fingerprints ...string) error {
	if m.Cache == nil {
		return nil
	}
	var firstErr error
	for _, fp := range fingerprints {
		if err := m.Cache.Delete(ctx, fp); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ratio is a symmetric edit-distance similarity score in [0, 1]: 1 for
// identical strings, 0 for completely disjoint ones.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}
