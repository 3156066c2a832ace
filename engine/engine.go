package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siftmod/sift/casestore"
	"github.com/siftmod/sift/classifier"
	"github.com/siftmod/sift/decisionstore"
	"github.com/siftmod/sift/normtext"
	"github.com/siftmod/sift/similarity"
)

var ErrCaseNotFound = errors.New("flag case not found")

// Config carries the engine's tunables. The defaults are preserved from the
// source system rather than re-derived.
type Config struct {
	// whitelist votes needed to resolve (given no blacklist majority)
	WhitelistQuorum int
	// total votes at which an exact tie requires admin intervention
	TieTotalFloor int
}

func DefaultConfig() Config {
	return Config{
		WhitelistQuorum: 2,
		TieTotalFloor:   4,
	}
}

// Engine is the moderation decision engine: it routes freshly flagged
// content through review, deduplicates against prior decisions, and records
// verdicts for future instant resolution.
//
// All collaborators are injected; there is no ambient state. Logger,
// Classifier, Matcher, Decisions, Cases and Journal must be set; ReviewLog
// and Settings are optional.
type Engine struct {
	Logger     *slog.Logger
	Classifier classifier.Classifier
	Matcher    *similarity.Matcher
	Decisions  decisionstore.DecisionStore
	Cases      *casestore.Registry
	Journal    casestore.Journal
	ReviewLog  ReviewLog
	Settings   SettingsStore
	Config     Config
}

type ScanStatus int

const (
	ScanNotFlagged ScanStatus = iota
	ScanAutoResolved
	ScanFlaggedForReview
)

func (s ScanStatus) String() string {
	switch s {
	case ScanNotFlagged:
		return "not_flagged"
	case ScanAutoResolved:
		return "auto_resolved"
	case ScanFlaggedForReview:
		return "flagged_for_review"
	default:
		return "unknown"
	}
}

type ScanResult struct {
	Status   ScanStatus
	Decision *decisionstore.Decision
	Case     *casestore.FlagCase
}

// Scan runs one piece of content through the engine: classifier check,
// dedup against prior decisions, and (when nothing binds) opening a new
// flag case for review.
//
// A classifier outage fails open: the content is treated as not flagged and
// the error is logged, never surfaced. Content must not be blocked on a
// moderation-service outage.
func (eng *Engine) Scan(ctx context.Context, content casestore.RawContent) (*ScanResult, error) {
	start := time.Now()
	defer func() {
		scanDuration.Observe(time.Since(start).Seconds())
	}()
	logger := eng.Logger.With("contentID", content.ContentID, "scope", content.ScopeID)

	if eng.Settings != nil {
		enabled, err := ModerationEnabled(ctx, eng.Settings, content.ScopeID)
		if err != nil {
			logger.Error("reading moderation settings", "err", err)
		}
		if !enabled {
			scanCount.WithLabelValues("disabled").Inc()
			return &ScanResult{Status: ScanNotFlagged}, nil
		}
	}

	flagging, err := eng.Classifier.Check(ctx, content.Text)
	if err != nil {
		logger.Warn("classifier unavailable, failing open", "err", err)
		scanCount.WithLabelValues("classifier_error").Inc()
		return &ScanResult{Status: ScanNotFlagged}, nil
	}
	if !flagging.Flagged {
		scanCount.WithLabelValues("clean").Inc()
		return &ScanResult{Status: ScanNotFlagged}, nil
	}

	prior, kind, err := eng.Matcher.Match(ctx, content.Text)
	if err != nil {
		return nil, fmt.Errorf("matching against prior decisions: %w", err)
	}
	if prior != nil {
		status := StatusAutoApproved
		if prior.Verdict == decisionstore.VerdictBlacklist {
			status = StatusBlacklisted
		}
		eng.recordReview(ctx, content, status, prior.ReviewerID, prior.Reason)
		autoResolveCount.WithLabelValues(prior.Verdict.String(), string(kind)).Inc()
		scanCount.WithLabelValues("auto_resolved").Inc()
		logger.Info("auto-resolved from prior decision", "verdict", prior.Verdict, "match", kind)
		return &ScanResult{Status: ScanAutoResolved, Decision: prior}, nil
	}

	// duplicate scans of the same content re-join the open case
	if existing, ok := eng.Cases.Get(content.ContentID); ok {
		return &ScanResult{Status: ScanFlaggedForReview, Case: existing}, nil
	}

	variants := normtext.Variants(content.Text)
	if len(variants) == 0 {
		scanCount.WithLabelValues("clean").Inc()
		return &ScanResult{Status: ScanNotFlagged}, nil
	}
	fc := casestore.NewFlagCase(content, variants[0], variants)
	eng.Cases.Put(fc)
	if err := eng.Journal.Save(ctx, fc); err != nil {
		logger.Error("journaling new flag case", "err", err)
	}
	eng.recordReview(ctx, content, StatusPendingReview, "", "")
	casesOpenGauge.Set(float64(eng.Cases.Len()))
	scanCount.WithLabelValues("flagged").Inc()
	logger.Info("content flagged for review", "author", content.AuthorID)
	return &ScanResult{Status: ScanFlaggedForReview, Case: fc}, nil
}

// LookupDecision is the direct read path: the same matching as Scan but
// with no case creation or logging, for diagnostics and testing.
func (eng *Engine) LookupDecision(ctx context.Context, text string) (*decisionstore.Decision, error) {
	d, _, err := eng.Matcher.Match(ctx, text)
	return d, err
}

// Rehydrate reloads journaled open cases into the live registry, typically
// once at startup.
func (eng *Engine) Rehydrate(ctx context.Context) error {
	cases, err := eng.Journal.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading journaled cases: %w", err)
	}
	for _, fc := range cases {
		eng.Cases.Put(fc)
	}
	if len(cases) > 0 {
		eng.Logger.Info("rehydrated open flag cases", "count", len(cases))
	}
	casesOpenGauge.Set(float64(eng.Cases.Len()))
	return nil
}

func (eng *Engine) recordReview(ctx context.Context, content casestore.RawContent, status, reviewerID, reason string) {
	if eng.ReviewLog == nil {
		return
	}
	entry := &ReviewEntry{
		ContentID:  content.ContentID,
		ScopeID:    content.ScopeID,
		AuthorID:   content.AuthorID,
		Content:    content.Text,
		Link:       content.Link,
		Status:     status,
		ReviewerID: reviewerID,
		Reason:     reason,
	}
	if err := eng.ReviewLog.Record(ctx, entry); err != nil {
		eng.Logger.Error("recording review log entry", "err", err, "contentID", content.ContentID)
	}
}

func (eng *Engine) setReviewStatus(ctx context.Context, contentID, status, reviewerID, reason string) {
	if eng.ReviewLog == nil {
		return
	}
	if err := eng.ReviewLog.SetStatus(ctx, contentID, status, reviewerID, reason); err != nil {
		eng.Logger.Error("updating review log status", "err", err, "contentID", contentID)
	}
}
