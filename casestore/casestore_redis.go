package casestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siftmod/sift/decisionstore"
)

var redisCasePrefix = "case/"

// Snapshots age out of redis after this long even if never resolved; open
// cases have no in-process timeout, this is storage housekeeping only.
var redisCaseTTL = 14 * 24 * time.Hour

type caseSnapshot struct {
	Content         RawContent `json:"content"`
	NormalizedText  string     `json:"normalized_text"`
	Variants        []string   `json:"variants"`
	CreatedAt       time.Time  `json:"created_at"`
	Status          string     `json:"status"`
	WhitelistVoters []string   `json:"whitelist_voters"`
	BlacklistVoters []string   `json:"blacklist_voters"`
}

// RedisJournal keeps one JSON snapshot per open case, so reviews in flight
// can be re-hydrated after a restart.
type RedisJournal struct {
	Client *redis.Client
}

var _ Journal = (*RedisJournal)(nil)

func NewRedisJournal(redisURL string) (*RedisJournal, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisJournal{Client: rdb}, nil
}

// Save snapshots the case. Callers must hold the case lock.
func (j *RedisJournal) Save(ctx context.Context, fc *FlagCase) error {
	snap := caseSnapshot{
		Content:         fc.Content,
		NormalizedText:  fc.NormalizedText,
		Variants:        fc.Variants,
		CreatedAt:       fc.CreatedAt,
		Status:          fc.status.String(),
		WhitelistVoters: voterList(fc.whitelistVoters),
		BlacklistVoters: voterList(fc.blacklistVoters),
	}
	raw, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("marshalling case snapshot: %w", err)
	}
	key := redisCasePrefix + fc.Content.ContentID
	if err := j.Client.Set(ctx, key, raw, redisCaseTTL).Err(); err != nil {
		return fmt.Errorf("saving case snapshot: %w", err)
	}
	return nil
}

func (j *RedisJournal) Delete(ctx context.Context, contentID string) error {
	return j.Client.Del(ctx, redisCasePrefix+contentID).Err()
}

func (j *RedisJournal) LoadAll(ctx context.Context) ([]*FlagCase, error) {
	var out []*FlagCase
	iter := j.Client.Scan(ctx, 0, redisCasePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := j.Client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("reading case snapshot %s: %w", iter.Val(), err)
		}
		var snap caseSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("parsing case snapshot %s: %w", iter.Val(), err)
		}
		out = append(out, restore(&snap))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning case snapshots: %w", err)
	}
	return out, nil
}

func restore(snap *caseSnapshot) *FlagCase {
	fc := NewFlagCase(snap.Content, snap.NormalizedText, snap.Variants)
	if !snap.CreatedAt.IsZero() {
		fc.CreatedAt = snap.CreatedAt
	}
	for _, id := range snap.WhitelistVoters {
		fc.RecordVote(id, decisionstore.VerdictWhitelist)
	}
	for _, id := range snap.BlacklistVoters {
		fc.RecordVote(id, decisionstore.VerdictBlacklist)
	}
	if snap.Status == StatusAwaitingAdmin.String() {
		fc.status = StatusAwaitingAdmin
	}
	return fc
}

func voterList(voters map[string]bool) []string {
	out := make([]string, 0, len(voters))
	for id := range voters {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
