package casestore

import (
	"sync"
	"time"

	"github.com/siftmod/sift/decisionstore"
)

// RawContent is the immutable snapshot of one piece of flagged content, as
// supplied by the upstream content store.
type RawContent struct {
	ContentID   string    `json:"content_id"`
	ScopeID     string    `json:"scope_id"`
	AuthorID    string    `json:"author_id"`
	Text        string    `json:"text"`
	Link        string    `json:"link,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Status int

const (
	StatusPending Status = iota
	StatusAwaitingAdmin
	StatusResolvedWhitelist
	StatusResolvedBlacklist
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAwaitingAdmin:
		return "awaiting_admin"
	case StatusResolvedWhitelist:
		return "resolved_whitelist"
	case StatusResolvedBlacklist:
		return "resolved_blacklist"
	default:
		return "unknown"
	}
}

// VoteEval is the aggregator's reading of the tally after a vote.
type VoteEval int

const (
	EvalPending VoteEval = iota
	EvalWhitelist
	EvalBlacklist
	EvalTie
)

// FlagCase is one open review session for a piece of flagged content. It
// owns the vote tally and the threshold evaluation; callers must hold the
// embedded mutex across any read-record-evaluate sequence so that no other
// vote interleaves (see Engine.CastVote). Different cases lock
// independently.
type FlagCase struct {
	sync.Mutex

	Content        RawContent
	NormalizedText string
	Variants       []string
	CreatedAt      time.Time

	status          Status
	whitelistVoters map[string]bool
	blacklistVoters map[string]bool
	processed       bool
}

func NewFlagCase(content RawContent, normalizedText string, variants []string) *FlagCase {
	return &FlagCase{
		Content:         content,
		NormalizedText:  normalizedText,
		Variants:        variants,
		CreatedAt:       time.Now(),
		status:          StatusPending,
		whitelistVoters: make(map[string]bool),
		blacklistVoters: make(map[string]bool),
	}
}

// Processed reports whether a verdict has been durably recorded for this
// case. Callers must hold the lock.
func (fc *FlagCase) Processed() bool {
	return fc.processed
}

// MarkProcessed transitions the case to its terminal status. Monotonic:
// once set it never clears. Callers must hold the lock, and must only call
// this after the decision has been durably written, so that a failed write
// leaves the case retryable.
func (fc *FlagCase) MarkProcessed(verdict decisionstore.Verdict) {
	fc.processed = true
	if verdict == decisionstore.VerdictWhitelist {
		fc.status = StatusResolvedWhitelist
	} else {
		fc.status = StatusResolvedBlacklist
	}
}

func (fc *FlagCase) Status() Status {
	return fc.status
}

// RecordVote moves the reviewer into the chosen voter set, removing them
// from the opposite set first so a changed vote is never double-counted.
// Returns false if the reviewer had already cast this exact vote. Callers
// must hold the lock.
func (fc *FlagCase) RecordVote(reviewerID string, choice decisionstore.Verdict) bool {
	mine, theirs := fc.whitelistVoters, fc.blacklistVoters
	if choice == decisionstore.VerdictBlacklist {
		mine, theirs = fc.blacklistVoters, fc.whitelistVoters
	}
	if mine[reviewerID] {
		return false
	}
	delete(theirs, reviewerID)
	mine[reviewerID] = true
	return true
}

// Tally returns the current whitelist and blacklist vote counts. Callers
// must hold the lock.
func (fc *FlagCase) Tally() (int, int) {
	return len(fc.whitelistVoters), len(fc.blacklistVoters)
}

// Evaluate applies the threshold rule to the current tally. Read-only: on
// EvalTie the caller transitions the case with MarkAwaitingAdmin. Callers
// must hold the lock.
//
// With w whitelist votes, b blacklist votes, t = w+b:
//   - w >= quorum and b < w: whitelist wins
//   - t >= 2 and b > w: blacklist wins
//   - t >= tieFloor and w == b: tie, admin intervention required
//   - otherwise: still pending
func (fc *FlagCase) Evaluate(quorum, tieFloor int) VoteEval {
	w, b := fc.Tally()
	t := w + b
	if w >= quorum && b < w {
		return EvalWhitelist
	}
	if t >= 2 && b > w {
		return EvalBlacklist
	}
	if t >= tieFloor && w == b {
		return EvalTie
	}
	return EvalPending
}

// MarkAwaitingAdmin flags a tied case as needing admin intervention. Not
// terminal: further votes or an overrule can still resolve the case.
// Callers must hold the lock.
func (fc *FlagCase) MarkAwaitingAdmin() {
	if !fc.processed {
		fc.status = StatusAwaitingAdmin
	}
}
