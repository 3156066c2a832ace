package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Review log statuses. The strings are part of the persisted audit trail.
const (
	StatusPendingReview     = "pending_review"
	StatusAutoApproved      = "auto_approved"
	StatusBlacklisted       = "blacklisted"
	StatusApproved          = "approved"
	StatusRejected          = "rejected"
	StatusOverruledApproved = "overruled_approved"
	StatusOverruledRejected = "overruled_rejected"
)

// ReviewEntry is one flagged item's audit record, tracking its status from
// flagging through resolution.
type ReviewEntry struct {
	ContentID  string
	ScopeID    string
	AuthorID   string
	Content    string
	Link       string
	Status     string
	ReviewerID string
	Reason     string
	CreatedAt  time.Time
	ReviewedAt *time.Time
}

// ReviewLog is the audit trail of flagged content and its outcomes, plus
// the read paths the review UI needs.
type ReviewLog interface {
	Record(ctx context.Context, entry *ReviewEntry) error
	Get(ctx context.Context, contentID string) (*ReviewEntry, error)
	SetStatus(ctx context.Context, contentID, status, reviewerID, reason string) error
	Pending(ctx context.Context, scopeID string, limit int) ([]*ReviewEntry, error)
	Stats(ctx context.Context, scopeID string, since time.Time) (map[string]int, error)
}

// ReviewRecord is the gorm row behind ReviewLog.
type ReviewRecord struct {
	ID         uint   `gorm:"primarykey"`
	ContentID  string `gorm:"uniqueIndex"`
	ScopeID    string `gorm:"index:idx_scope_created"`
	AuthorID   string
	Content    string
	Link       string
	Status     string `gorm:"index"`
	ReviewerID string
	Reason     string
	CreatedAt  time.Time `gorm:"index:idx_scope_created"`
	UpdatedAt  time.Time
	ReviewedAt *time.Time
}

type GormReviewLog struct {
	db *gorm.DB
}

var _ ReviewLog = (*GormReviewLog)(nil)

func NewGormReviewLog(db *gorm.DB) (*GormReviewLog, error) {
	if err := db.AutoMigrate(&ReviewRecord{}); err != nil {
		return nil, fmt.Errorf("migrating review log table: %w", err)
	}
	return &GormReviewLog{db: db}, nil
}

func (l *GormReviewLog) Record(ctx context.Context, entry *ReviewEntry) error {
	row := ReviewRecord{
		ContentID:  entry.ContentID,
		ScopeID:    entry.ScopeID,
		AuthorID:   entry.AuthorID,
		Content:    entry.Content,
		Link:       entry.Link,
		Status:     entry.Status,
		ReviewerID: entry.ReviewerID,
		Reason:     entry.Reason,
	}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "reviewer_id", "reason", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("recording review entry: %w", err)
	}
	return nil
}

func (l *GormReviewLog) Get(ctx context.Context, contentID string) (*ReviewEntry, error) {
	var row ReviewRecord
	err := l.db.WithContext(ctx).First(&row, "content_id = ?", contentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading review entry: %w", err)
	}
	return &ReviewEntry{
		ContentID:  row.ContentID,
		ScopeID:    row.ScopeID,
		AuthorID:   row.AuthorID,
		Content:    row.Content,
		Link:       row.Link,
		Status:     row.Status,
		ReviewerID: row.ReviewerID,
		Reason:     row.Reason,
		CreatedAt:  row.CreatedAt,
		ReviewedAt: row.ReviewedAt,
	}, nil
}

func (l *GormReviewLog) SetStatus(ctx context.Context, contentID, status, reviewerID, reason string) error {
	now := time.Now()
	res := l.db.WithContext(ctx).Model(&ReviewRecord{}).Where("content_id = ?", contentID).Updates(map[string]any{
		"status":      status,
		"reviewer_id": reviewerID,
		"reason":      reason,
		"reviewed_at": &now,
	})
	if res.Error != nil {
		return fmt.Errorf("updating review status: %w", res.Error)
	}
	return nil
}

func (l *GormReviewLog) Pending(ctx context.Context, scopeID string, limit int) ([]*ReviewEntry, error) {
	var rows []ReviewRecord
	q := l.db.WithContext(ctx).Where("status = ?", StatusPendingReview)
	if scopeID != "" {
		q = q.Where("scope_id = ?", scopeID)
	}
	if err := q.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing pending reviews: %w", err)
	}
	out := make([]*ReviewEntry, len(rows))
	for i, row := range rows {
		out[i] = &ReviewEntry{
			ContentID:  row.ContentID,
			ScopeID:    row.ScopeID,
			AuthorID:   row.AuthorID,
			Content:    row.Content,
			Link:       row.Link,
			Status:     row.Status,
			ReviewerID: row.ReviewerID,
			Reason:     row.Reason,
			CreatedAt:  row.CreatedAt,
			ReviewedAt: row.ReviewedAt,
		}
	}
	return out, nil
}

func (l *GormReviewLog) Stats(ctx context.Context, scopeID string, since time.Time) (map[string]int, error) {
	type statusCount struct {
		Status string
		Count  int
	}
	var counts []statusCount
	q := l.db.WithContext(ctx).Model(&ReviewRecord{}).
		Select("status, count(*) as count").
		Where("created_at >= ?", since)
	if scopeID != "" {
		q = q.Where("scope_id = ?", scopeID)
	}
	if err := q.Group("status").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("aggregating review stats: %w", err)
	}
	out := make(map[string]int, len(counts))
	total := 0
	for _, c := range counts {
		out[c.Status] = c.Count
		total += c.Count
	}
	out["total_flagged"] = total
	return out, nil
}

// MemReviewLog is an in-memory ReviewLog for tests and database-less runs.
type MemReviewLog struct {
	mu      sync.Mutex
	entries map[string]*ReviewEntry
	order   []string
}

var _ ReviewLog = (*MemReviewLog)(nil)

func NewMemReviewLog() *MemReviewLog {
	return &MemReviewLog{
		entries: make(map[string]*ReviewEntry),
	}
}

func (l *MemReviewLog) Record(ctx context.Context, entry *ReviewEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cpy := *entry
	if cpy.CreatedAt.IsZero() {
		cpy.CreatedAt = time.Now()
	}
	if _, exists := l.entries[cpy.ContentID]; !exists {
		l.order = append(l.order, cpy.ContentID)
	}
	l.entries[cpy.ContentID] = &cpy
	return nil
}

func (l *MemReviewLog) Get(ctx context.Context, contentID string) (*ReviewEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[contentID]
	if !ok {
		return nil, nil
	}
	cpy := *entry
	return &cpy, nil
}

func (l *MemReviewLog) SetStatus(ctx context.Context, contentID, status, reviewerID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[contentID]
	if !ok {
		return nil
	}
	now := time.Now()
	entry.Status = status
	entry.ReviewerID = reviewerID
	entry.Reason = reason
	entry.ReviewedAt = &now
	return nil
}

func (l *MemReviewLog) Pending(ctx context.Context, scopeID string, limit int) ([]*ReviewEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*ReviewEntry
	for i := len(l.order) - 1; i >= 0 && len(out) < limit; i-- {
		entry := l.entries[l.order[i]]
		if entry.Status != StatusPendingReview {
			continue
		}
		if scopeID != "" && entry.ScopeID != scopeID {
			continue
		}
		cpy := *entry
		out = append(out, &cpy)
	}
	return out, nil
}

func (l *MemReviewLog) Stats(ctx context.Context, scopeID string, since time.Time) (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	total := 0
	for _, entry := range l.entries {
		if scopeID != "" && entry.ScopeID != scopeID {
			continue
		}
		if entry.CreatedAt.Before(since) {
			continue
		}
		out[entry.Status]++
		total++
	}
	out["total_flagged"] = total
	return out, nil
}
