package decisionstore

import (
	"context"
	"fmt"
	"time"
)

// Verdict is the closed set of outcomes a decision can carry.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictWhitelist
	VerdictBlacklist
)

func (v Verdict) String() string {
	switch v {
	case VerdictWhitelist:
		return "whitelist"
	case VerdictBlacklist:
		return "blacklist"
	default:
		return "unknown"
	}
}

func ParseVerdict(raw string) (Verdict, error) {
	switch raw {
	case "whitelist":
		return VerdictWhitelist, nil
	case "blacklist":
		return VerdictBlacklist, nil
	default:
		return VerdictUnknown, fmt.Errorf("unknown verdict: %q", raw)
	}
}

// Source records how a decision came about, separate from the verdict
// itself.
type Source int

const (
	SourceUnknown Source = iota
	SourceCommunityVote
	SourceAdminOverrule
)

func (s Source) String() string {
	switch s {
	case SourceCommunityVote:
		return "community_vote"
	case SourceAdminOverrule:
		return "admin_overrule"
	default:
		return "unknown"
	}
}

func ParseSource(raw string) Source {
	switch raw {
	case "community_vote":
		return SourceCommunityVote
	case "admin_overrule":
		return SourceAdminOverrule
	default:
		return SourceUnknown
	}
}

// Decision is a durable, reusable verdict bound to one or more text-variant
// fingerprints. The normalized text is retained to support approximate
// re-matching of future content.
type Decision struct {
	PrimaryFingerprint  string
	VariantFingerprints []string
	Verdict             Verdict
	ReviewerID          string
	Reason              string
	NormalizedText      string
	Source              Source
	CreatedAt           time.Time
}

// DecisionStore is the durable index of moderation decisions, keyed by
// content fingerprint.
//
// Put upserts by primary fingerprint: writing the same primary again
// supersedes the prior verdict (re-judgement). Get resolves any variant
// fingerprint to its primary's decision, returning nil (with nil error) on a
// miss. RecentWindow returns up to limit decisions newest-first, for
// approximate matching only; entries omit their variant fingerprint sets.
type DecisionStore interface {
	Put(ctx context.Context, d *Decision) error
	Get(ctx context.Context, fingerprint string) (*Decision, error)
	RecentWindow(ctx context.Context, limit int) ([]*Decision, error)
}
