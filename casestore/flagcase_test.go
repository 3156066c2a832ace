package casestore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/siftmod/sift/decisionstore"
)

func testCase() *FlagCase {
	return NewFlagCase(RawContent{
		ContentID: "msg-1",
		ScopeID:   "guild-1",
		AuthorID:  "user-1",
		Text:      "fr33 vi3ws!!!",
	}, "fr33 vi3ws", []string{"fr33 vi3ws", "free views"})
}

func TestThresholdRule(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		name     string
		votes    map[string]decisionstore.Verdict
		expected VoteEval
	}{
		{
			name: "two whitelist resolves",
			votes: map[string]decisionstore.Verdict{
				"r1": decisionstore.VerdictWhitelist,
				"r2": decisionstore.VerdictWhitelist,
			},
			expected: EvalWhitelist,
		},
		{
			name: "blacklist majority resolves",
			votes: map[string]decisionstore.Verdict{
				"r1": decisionstore.VerdictWhitelist,
				"r2": decisionstore.VerdictBlacklist,
				"r3": decisionstore.VerdictBlacklist,
			},
			expected: EvalBlacklist,
		},
		{
			name: "two blacklist no whitelist resolves",
			votes: map[string]decisionstore.Verdict{
				"r1": decisionstore.VerdictBlacklist,
				"r2": decisionstore.VerdictBlacklist,
			},
			expected: EvalBlacklist,
		},
		{
			name: "two-vote tie stays pending",
			votes: map[string]decisionstore.Verdict{
				"r1": decisionstore.VerdictWhitelist,
				"r2": decisionstore.VerdictBlacklist,
			},
			expected: EvalPending,
		},
		{
			name: "four-vote tie needs admin",
			votes: map[string]decisionstore.Verdict{
				"r1": decisionstore.VerdictWhitelist,
				"r2": decisionstore.VerdictWhitelist,
				"r3": decisionstore.VerdictBlacklist,
				"r4": decisionstore.VerdictBlacklist,
			},
			expected: EvalTie,
		},
		{
			name: "single vote stays pending",
			votes: map[string]decisionstore.Verdict{
				"r1": decisionstore.VerdictWhitelist,
			},
			expected: EvalPending,
		},
	}

	for _, fix := range fixtures {
		fc := testCase()
		fc.Lock()
		for id, choice := range fix.votes {
			fc.RecordVote(id, choice)
		}
		assert.Equal(fix.expected, fc.Evaluate(2, 4), fix.name)
		fc.Unlock()
	}
}

func TestVoteMutation(t *testing.T) {
	assert := assert.New(t)

	fc := testCase()
	fc.Lock()
	defer fc.Unlock()

	assert.True(fc.RecordVote("r1", decisionstore.VerdictWhitelist))
	w, b := fc.Tally()
	assert.Equal(1, w)
	assert.Equal(0, b)

	// changing a vote moves the reviewer, never double-counts
	assert.True(fc.RecordVote("r1", decisionstore.VerdictBlacklist))
	w, b = fc.Tally()
	assert.Equal(0, w)
	assert.Equal(1, b)

	// duplicate same-choice vote is a no-op
	assert.False(fc.RecordVote("r1", decisionstore.VerdictBlacklist))
	w, b = fc.Tally()
	assert.Equal(0, w)
	assert.Equal(1, b)
}

func TestTieIsNotTerminal(t *testing.T) {
	assert := assert.New(t)

	fc := testCase()
	fc.Lock()
	defer fc.Unlock()

	fc.RecordVote("r1", decisionstore.VerdictWhitelist)
	fc.RecordVote("r2", decisionstore.VerdictWhitelist)
	fc.RecordVote("r3", decisionstore.VerdictBlacklist)
	fc.RecordVote("r4", decisionstore.VerdictBlacklist)
	assert.Equal(EvalTie, fc.Evaluate(2, 4))
	// Evaluate only reads; the transition is an explicit step
	assert.Equal(StatusPending, fc.Status())
	fc.MarkAwaitingAdmin()
	assert.Equal(StatusAwaitingAdmin, fc.Status())
	assert.False(fc.Processed())

	// a fifth vote can still break the tie
	fc.RecordVote("r5", decisionstore.VerdictWhitelist)
	assert.Equal(EvalWhitelist, fc.Evaluate(2, 4))
}

func TestMarkProcessed(t *testing.T) {
	assert := assert.New(t)

	fc := testCase()
	fc.Lock()
	defer fc.Unlock()

	assert.False(fc.Processed())
	fc.MarkProcessed(decisionstore.VerdictBlacklist)
	assert.True(fc.Processed())
	assert.Equal(StatusResolvedBlacklist, fc.Status())
}

func TestRegistry(t *testing.T) {
	assert := assert.New(t)

	reg := NewRegistry()
	assert.Equal(0, reg.Len())

	fc := testCase()
	reg.Put(fc)
	got, ok := reg.Get("msg-1")
	assert.True(ok)
	assert.Same(fc, got)
	assert.Equal(1, reg.Len())

	reg.Delete("msg-1")
	_, ok = reg.Get("msg-1")
	assert.False(ok)
}
