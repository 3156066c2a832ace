package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/siftmod/sift/casestore"
	"github.com/siftmod/sift/decisionstore"
	"github.com/siftmod/sift/normtext"
)

type VoteOutcome int

const (
	VoteNotFound VoteOutcome = iota
	VoteAlreadyResolved
	VoteDuplicate
	VoteRecorded
	VoteTieNeedsAdmin
	VoteResolved
)

func (o VoteOutcome) String() string {
	switch o {
	case VoteNotFound:
		return "not_found"
	case VoteAlreadyResolved:
		return "already_resolved"
	case VoteDuplicate:
		return "duplicate"
	case VoteRecorded:
		return "recorded"
	case VoteTieNeedsAdmin:
		return "tie_needs_admin"
	case VoteResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

type VoteResult struct {
	Outcome  VoteOutcome
	Decision *decisionstore.Decision
	// tally after the vote was applied
	Whitelist int
	Blacklist int
}

// CastVote records one reviewer's vote on an open case and evaluates the
// threshold rule in the same atomic step. The case lock is held across the
// whole read-record-evaluate-finalize sequence, so no other vote for the
// same case interleaves; votes on different cases proceed in parallel.
func (eng *Engine) CastVote(ctx context.Context, caseID, reviewerID string, choice decisionstore.Verdict) (*VoteResult, error) {
	fc, ok := eng.Cases.Get(caseID)
	if !ok {
		voteCount.WithLabelValues(VoteNotFound.String()).Inc()
		return &VoteResult{Outcome: VoteNotFound}, nil
	}

	fc.Lock()
	defer fc.Unlock()

	if fc.Processed() {
		voteCount.WithLabelValues(VoteAlreadyResolved.String()).Inc()
		return &VoteResult{Outcome: VoteAlreadyResolved}, nil
	}

	changed := fc.RecordVote(reviewerID, choice)
	w, b := fc.Tally()
	if !changed {
		voteCount.WithLabelValues(VoteDuplicate.String()).Inc()
		return &VoteResult{Outcome: VoteDuplicate, Whitelist: w, Blacklist: b}, nil
	}

	eval := fc.Evaluate(eng.Config.WhitelistQuorum, eng.Config.TieTotalFloor)
	switch eval {
	case casestore.EvalWhitelist, casestore.EvalBlacklist:
		verdict := decisionstore.VerdictWhitelist
		if eval == casestore.EvalBlacklist {
			verdict = decisionstore.VerdictBlacklist
		}
		reason := fmt.Sprintf("community vote, %d whitelist / %d blacklist", w, b)
		d, err := eng.finalizeLocked(ctx, fc, verdict, reviewerID, reason, decisionstore.SourceCommunityVote)
		if err != nil {
			return nil, err
		}
		status := StatusApproved
		if verdict == decisionstore.VerdictBlacklist {
			status = StatusRejected
		}
		eng.setReviewStatus(ctx, caseID, status, reviewerID, reason)
		voteCount.WithLabelValues(VoteResolved.String()).Inc()
		eng.Logger.Info("flag case resolved by vote", "contentID", caseID, "verdict", verdict, "whitelist", w, "blacklist", b)
		return &VoteResult{Outcome: VoteResolved, Decision: d, Whitelist: w, Blacklist: b}, nil
	case casestore.EvalTie:
		fc.MarkAwaitingAdmin()
		eng.journalLocked(ctx, fc)
		voteCount.WithLabelValues(VoteTieNeedsAdmin.String()).Inc()
		eng.Logger.Info("tie vote, admin intervention required", "contentID", caseID, "whitelist", w, "blacklist", b)
		return &VoteResult{Outcome: VoteTieNeedsAdmin, Whitelist: w, Blacklist: b}, nil
	default:
		eng.journalLocked(ctx, fc)
		voteCount.WithLabelValues(VoteRecorded.String()).Inc()
		return &VoteResult{Outcome: VoteRecorded, Whitelist: w, Blacklist: b}, nil
	}
}

// Overrule forces a verdict on a case, bypassing thresholds. Valid at any
// time: an open case is finalized directly; a case that already resolved
// (even one evicted after an automatic verdict, or resolved before a
// restart) is superseded through its review-log record, via the same
// idempotent decision-store upsert. Unknown case IDs return ErrCaseNotFound.
func (eng *Engine) Overrule(ctx context.Context, caseID, adminID string, verdict decisionstore.Verdict, reason string) (*decisionstore.Decision, error) {
	if reason == "" {
		reason = "no reason provided"
	}
	tagged := "admin overrule: " + reason

	if fc, ok := eng.Cases.Get(caseID); ok {
		fc.Lock()
		defer fc.Unlock()

		if fc.Processed() {
			tagged = fmt.Sprintf("%s (supersedes automatic %s)", tagged, resolvedVerdict(fc.Status()))
		}
		d, err := eng.finalizeLocked(ctx, fc, verdict, adminID, tagged, decisionstore.SourceAdminOverrule)
		if err != nil {
			return nil, err
		}
		eng.finishOverrule(ctx, caseID, adminID, verdict, tagged)
		return d, nil
	}

	// case no longer live: supersede through the durable review log
	if eng.ReviewLog == nil {
		return nil, fmt.Errorf("overruling case %s: %w", caseID, ErrCaseNotFound)
	}
	entry, err := eng.ReviewLog.Get(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("reading review log for overrule: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("overruling case %s: %w", caseID, ErrCaseNotFound)
	}
	if prior := entryVerdict(entry.Status); prior != decisionstore.VerdictUnknown {
		tagged = fmt.Sprintf("%s (supersedes automatic %s)", tagged, prior)
	}
	variants := normtext.Variants(entry.Content)
	if len(variants) == 0 {
		return nil, fmt.Errorf("overruling case %s: no fingerprintable content", caseID)
	}
	d, err := eng.buildAndPersist(ctx, variants, verdict, adminID, tagged, decisionstore.SourceAdminOverrule)
	if err != nil {
		return nil, err
	}
	eng.finishOverrule(ctx, caseID, adminID, verdict, tagged)
	return d, nil
}

func (eng *Engine) finishOverrule(ctx context.Context, caseID, adminID string, verdict decisionstore.Verdict, reason string) {
	status := StatusOverruledApproved
	if verdict == decisionstore.VerdictBlacklist {
		status = StatusOverruledRejected
	}
	eng.setReviewStatus(ctx, caseID, status, adminID, reason)
	overruleCount.WithLabelValues(verdict.String()).Inc()
	eng.Logger.Info("flag case overruled", "contentID", caseID, "verdict", verdict, "admin", adminID)
}

func resolvedVerdict(status casestore.Status) decisionstore.Verdict {
	if status == casestore.StatusResolvedWhitelist {
		return decisionstore.VerdictWhitelist
	}
	return decisionstore.VerdictBlacklist
}

// entryVerdict maps a terminal review-log status back to the verdict it
// recorded, or VerdictUnknown for non-terminal statuses.
func entryVerdict(status string) decisionstore.Verdict {
	switch status {
	case StatusApproved, StatusAutoApproved, StatusOverruledApproved:
		return decisionstore.VerdictWhitelist
	case StatusRejected, StatusBlacklisted, StatusOverruledRejected:
		return decisionstore.VerdictBlacklist
	default:
		return decisionstore.VerdictUnknown
	}
}

// finalizeLocked durably writes the decision and then, only after the write
// succeeded, commits the processed flag and evicts the case. A failed write
// leaves the case unprocessed so a retry can safely re-attempt. Callers
// must hold the case lock; the first finalizer wins and later attempts on a
// processed case only reach here through Overrule, which is allowed to
// supersede.
func (eng *Engine) finalizeLocked(ctx context.Context, fc *casestore.FlagCase, verdict decisionstore.Verdict, reviewerID, reason string, source decisionstore.Source) (*decisionstore.Decision, error) {
	d, err := eng.buildAndPersist(ctx, fc.Variants, verdict, reviewerID, reason, source)
	if err != nil {
		return nil, err
	}
	fc.MarkProcessed(verdict)
	eng.Cases.Delete(fc.Content.ContentID)
	if err := eng.Journal.Delete(ctx, fc.Content.ContentID); err != nil {
		eng.Logger.Error("deleting case journal entry", "err", err, "contentID", fc.Content.ContentID)
	}
	casesOpenGauge.Set(float64(eng.Cases.Len()))
	return d, nil
}

// buildAndPersist fingerprints the variant set, upserts the decision, and
// invalidates the matcher's cache for every fingerprint so a superseded
// verdict never serves stale. The first variant is the fully-normalized
// form and becomes the primary fingerprint.
func (eng *Engine) buildAndPersist(ctx context.Context, variants []string, verdict decisionstore.Verdict, reviewerID, reason string, source decisionstore.Source) (*decisionstore.Decision, error) {
	fps := make([]string, len(variants))
	for i, v := range variants {
		fps[i] = normtext.Fingerprint(v)
	}
	d := &decisionstore.Decision{
		PrimaryFingerprint:  fps[0],
		VariantFingerprints: fps[1:],
		Verdict:             verdict,
		ReviewerID:          reviewerID,
		Reason:              reason,
		NormalizedText:      variants[0],
		Source:              source,
		CreatedAt:           time.Now(),
	}
	if err := eng.Decisions.Put(ctx, d); err != nil {
		return nil, fmt.Errorf("persisting decision: %w", err)
	}
	if err := eng.Matcher.Invalidate(ctx, fps...); err != nil {
		eng.Logger.Error("invalidating decision cache", "err", err, "fingerprint", fps[0])
	}
	decisionPersistCount.WithLabelValues(verdict.String(), source.String()).Inc()
	return d, nil
}

func (eng *Engine) journalLocked(ctx context.Context, fc *casestore.FlagCase) {
	if err := eng.Journal.Save(ctx, fc); err != nil {
		eng.Logger.Error("journaling flag case", "err", err, "contentID", fc.Content.ContentID)
	}
}
