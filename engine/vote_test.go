package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siftmod/sift/casestore"
	"github.com/siftmod/sift/decisionstore"
	"github.com/siftmod/sift/normtext"
)

func openCase(t *testing.T, eng *Engine, id, text string) {
	t.Helper()
	res, err := eng.Scan(context.Background(), testContent(id, text))
	require.NoError(t, err)
	require.Equal(t, ScanFlaggedForReview, res.Status)
}

func TestVoteUnknownCase(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	vr, err := eng.CastVote(ctx, "nope", "mod1", decisionstore.VerdictWhitelist)
	assert.NoError(err)
	assert.Equal(VoteNotFound, vr.Outcome)
}

func TestVoteDuplicate(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	vr, err := eng.CastVote(ctx, "c1", "mod1", decisionstore.VerdictWhitelist)
	require.NoError(err)
	assert.Equal(VoteRecorded, vr.Outcome)

	vr, err = eng.CastVote(ctx, "c1", "mod1", decisionstore.VerdictWhitelist)
	require.NoError(err)
	assert.Equal(VoteDuplicate, vr.Outcome)
	assert.Equal(1, vr.Whitelist)
	assert.Equal(0, vr.Blacklist)
}

// A reviewer switching sides moves their vote; the sets stay disjoint.
func TestVoteMutation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	_, err := eng.CastVote(ctx, "c1", "mod1", decisionstore.VerdictWhitelist)
	require.NoError(err)

	vr, err := eng.CastVote(ctx, "c1", "mod1", decisionstore.VerdictBlacklist)
	require.NoError(err)
	assert.Equal(VoteRecorded, vr.Outcome)
	assert.Equal(0, vr.Whitelist)
	assert.Equal(1, vr.Blacklist)
}

func TestVoteResolvesWhitelist(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	_, err := eng.CastVote(ctx, "c1", "mod1", decisionstore.VerdictWhitelist)
	require.NoError(err)
	vr, err := eng.CastVote(ctx, "c1", "mod2", decisionstore.VerdictWhitelist)
	require.NoError(err)

	require.Equal(VoteResolved, vr.Outcome)
	require.NotNil(vr.Decision)
	assert.Equal(decisionstore.VerdictWhitelist, vr.Decision.Verdict)
	assert.Equal(decisionstore.SourceCommunityVote, vr.Decision.Source)
	assert.False(vr.Decision.CreatedAt.IsZero())
	assert.Equal(0, eng.Cases.Len())

	entry, err := eng.ReviewLog.Get(ctx, "c1")
	require.NoError(err)
	require.NotNil(entry)
	assert.Equal(StatusApproved, entry.Status)
}

// A blacklist majority out-votes earlier whitelist votes: the whitelist
// quorum alone is not enough once blacklist votes outnumber it.
func TestVoteBlacklistMajorityWins(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	for i, v := range []decisionstore.Verdict{
		decisionstore.VerdictWhitelist,
		decisionstore.VerdictBlacklist,
		decisionstore.VerdictBlacklist,
	} {
		vr, err := eng.CastVote(ctx, "c1", []string{"mod1", "mod2", "mod3"}[i], v)
		require.NoError(err)
		if i < 2 {
			require.Equal(VoteRecorded, vr.Outcome)
		} else {
			require.Equal(VoteResolved, vr.Outcome)
			assert.Equal(decisionstore.VerdictBlacklist, vr.Decision.Verdict)
		}
	}
}

// An exact tie at four votes is a signal, not a resolution: the case stays
// open and the next vote can still settle it. The whitelist quorum is
// raised to three here so four votes can land before anything resolves.
func TestVoteTieNeedsAdmin(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Config = Config{WhitelistQuorum: 3, TieTotalFloor: 4}
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	votes := []struct {
		mod     string
		verdict decisionstore.Verdict
	}{
		{"mod1", decisionstore.VerdictWhitelist},
		{"mod2", decisionstore.VerdictBlacklist},
		{"mod3", decisionstore.VerdictWhitelist},
		{"mod4", decisionstore.VerdictBlacklist},
	}
	var last *VoteResult
	for _, v := range votes {
		vr, err := eng.CastVote(ctx, "c1", v.mod, v.verdict)
		require.NoError(err)
		last = vr
	}
	assert.Equal(VoteTieNeedsAdmin, last.Outcome)
	assert.Equal(2, last.Whitelist)
	assert.Equal(2, last.Blacklist)
	assert.Equal(1, eng.Cases.Len())

	vr, err := eng.CastVote(ctx, "c1", "mod5", decisionstore.VerdictBlacklist)
	require.NoError(err)
	require.Equal(VoteResolved, vr.Outcome)
	assert.Equal(decisionstore.VerdictBlacklist, vr.Decision.Verdict)
}

func TestVoteAlreadyResolved(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	content := testContent("c1", "fr33 vi3ws!!!")
	variants := normtext.Variants(content.Text)
	fc := casestore.NewFlagCase(content, variants[0], variants)
	fc.Lock()
	fc.MarkProcessed(decisionstore.VerdictBlacklist)
	fc.Unlock()
	eng.Cases.Put(fc)

	vr, err := eng.CastVote(ctx, "c1", "mod1", decisionstore.VerdictWhitelist)
	assert.NoError(err)
	assert.Equal(VoteAlreadyResolved, vr.Outcome)
}

func TestOverruleOpenCase(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	d, err := eng.Overrule(ctx, "c1", "admin1", decisionstore.VerdictBlacklist, "obvious scam")
	require.NoError(err)
	require.NotNil(d)
	assert.Equal(decisionstore.VerdictBlacklist, d.Verdict)
	assert.Equal(decisionstore.SourceAdminOverrule, d.Source)
	assert.Equal("admin1", d.ReviewerID)
	assert.Contains(d.Reason, "obvious scam")
	assert.Equal(0, eng.Cases.Len())

	entry, err := eng.ReviewLog.Get(ctx, "c1")
	require.NoError(err)
	require.NotNil(entry)
	assert.Equal(StatusOverruledRejected, entry.Status)
}

// An overrule after the community already resolved reverses the standing
// decision, even though the live case was evicted on resolution.
func TestOverruleSupersedesResolvedCase(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	_, err := eng.CastVote(ctx, "c1", "mod1", decisionstore.VerdictBlacklist)
	require.NoError(err)
	vr, err := eng.CastVote(ctx, "c1", "mod2", decisionstore.VerdictBlacklist)
	require.NoError(err)
	require.Equal(VoteResolved, vr.Outcome)
	require.Equal(0, eng.Cases.Len())

	d, err := eng.Overrule(ctx, "c1", "admin1", decisionstore.VerdictWhitelist, "false positive")
	require.NoError(err)
	require.NotNil(d)
	assert.Equal(decisionstore.VerdictWhitelist, d.Verdict)
	assert.True(strings.Contains(d.Reason, "supersedes automatic blacklist"), d.Reason)

	lookup, err := eng.LookupDecision(ctx, "FREE VIEWS")
	require.NoError(err)
	require.NotNil(lookup)
	assert.Equal(decisionstore.VerdictWhitelist, lookup.Verdict)

	entry, err := eng.ReviewLog.Get(ctx, "c1")
	require.NoError(err)
	require.NotNil(entry)
	assert.Equal(StatusOverruledApproved, entry.Status)
}

// A warm lookup cache must not keep serving the superseded verdict: the
// overrule invalidates every fingerprint the decision covers.
func TestOverruleRefreshesCachedLookup(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	_, err := eng.CastVote(ctx, "c1", "mod1", decisionstore.VerdictBlacklist)
	require.NoError(err)
	vr, err := eng.CastVote(ctx, "c1", "mod2", decisionstore.VerdictBlacklist)
	require.NoError(err)
	require.Equal(VoteResolved, vr.Outcome)

	// this lookup warms the matcher's cache with the blacklist verdict
	lookup, err := eng.LookupDecision(ctx, "FREE VIEWS")
	require.NoError(err)
	require.NotNil(lookup)
	require.Equal(decisionstore.VerdictBlacklist, lookup.Verdict)

	_, err = eng.Overrule(ctx, "c1", "admin1", decisionstore.VerdictWhitelist, "false positive")
	require.NoError(err)

	for _, text := range []string{"FREE VIEWS", "fr33 vi3ws!!!"} {
		lookup, err = eng.LookupDecision(ctx, text)
		require.NoError(err)
		require.NotNil(lookup, text)
		assert.Equal(decisionstore.VerdictWhitelist, lookup.Verdict, text)
	}
}

func TestOverruleUnknownCase(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.Overrule(ctx, "nope", "admin1", decisionstore.VerdictWhitelist, "")
	assert.ErrorIs(err, ErrCaseNotFound)
}

type countingDecisionStore struct {
	decisionstore.DecisionStore
	puts atomic.Int64
}

func (s *countingDecisionStore) Put(ctx context.Context, d *decisionstore.Decision) error {
	s.puts.Add(1)
	return s.DecisionStore.Put(ctx, d)
}

// Many concurrent voters, one finalization: the decision is written exactly
// once no matter how the votes interleave.
func TestConcurrentVotesSingleFinalize(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	counting := &countingDecisionStore{DecisionStore: eng.Decisions}
	eng.Decisions = counting
	openCase(t, &eng, "c1", "fr33 vi3ws!!!")

	const voters = 16
	var resolved atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			vr, err := eng.CastVote(ctx, "c1", "mod"+string(rune('a'+n)), decisionstore.VerdictBlacklist)
			if err != nil {
				t.Errorf("casting vote: %v", err)
				return
			}
			if vr.Outcome == VoteResolved {
				resolved.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(int64(1), resolved.Load())
	assert.Equal(int64(1), counting.puts.Load())
	assert.Equal(0, eng.Cases.Len())
}
