package decisionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DecisionRecord is one durable decision row, keyed by its primary
// fingerprint.
type DecisionRecord struct {
	ID             uint   `gorm:"primarykey"`
	Fingerprint    string `gorm:"uniqueIndex"`
	Verdict        string
	ReviewerID     string
	Reason         string
	NormalizedText string
	Source         string
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

// VariantRecord is a lightweight pointer row: any variant fingerprint of a
// decision resolves to the primary fingerprint it belongs to. The primary
// fingerprint also gets a self-referencing row so that all lookups go
// through one index.
type VariantRecord struct {
	ID                 uint   `gorm:"primarykey"`
	Fingerprint        string `gorm:"uniqueIndex"`
	PrimaryFingerprint string `gorm:"index"`
}

// GormDecisionStore persists decisions in a relational database (sqlite or
// postgres in practice).
type GormDecisionStore struct {
	db *gorm.DB
}

var _ DecisionStore = (*GormDecisionStore)(nil)

func NewGormDecisionStore(db *gorm.DB) (*GormDecisionStore, error) {
	if err := db.AutoMigrate(&DecisionRecord{}, &VariantRecord{}); err != nil {
		return nil, fmt.Errorf("migrating decision tables: %w", err)
	}
	return &GormDecisionStore{db: db}, nil
}

func (s *GormDecisionStore) Put(ctx context.Context, d *Decision) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := DecisionRecord{
		Fingerprint:    d.PrimaryFingerprint,
		Verdict:        d.Verdict.String(),
		ReviewerID:     d.ReviewerID,
		Reason:         d.Reason,
		NormalizedText: d.NormalizedText,
		Source:         d.Source.String(),
		CreatedAt:      createdAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"verdict", "reviewer_id", "reason", "normalized_text", "source", "created_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upserting decision: %w", err)
	}

	pointers := make([]VariantRecord, 0, len(d.VariantFingerprints)+1)
	pointers = append(pointers, VariantRecord{
		Fingerprint:        d.PrimaryFingerprint,
		PrimaryFingerprint: d.PrimaryFingerprint,
	})
	for _, fp := range d.VariantFingerprints {
		if fp == d.PrimaryFingerprint {
			continue
		}
		pointers = append(pointers, VariantRecord{
			Fingerprint:        fp,
			PrimaryFingerprint: d.PrimaryFingerprint,
		})
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"primary_fingerprint"}),
	}).Create(&pointers).Error
	if err != nil {
		return fmt.Errorf("upserting variant pointers: %w", err)
	}
	return nil
}

func (s *GormDecisionStore) Get(ctx context.Context, fingerprint string) (*Decision, error) {
	var pointer VariantRecord
	err := s.db.WithContext(ctx).First(&pointer, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("looking up variant pointer: %w", err)
	}

	var row DecisionRecord
	err = s.db.WithContext(ctx).First(&row, "fingerprint = ?", pointer.PrimaryFingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("looking up decision: %w", err)
	}

	var variants []VariantRecord
	if err := s.db.WithContext(ctx).Find(&variants, "primary_fingerprint = ?", row.Fingerprint).Error; err != nil {
		return nil, fmt.Errorf("looking up variant set: %w", err)
	}

	out, err := hydrate(&row)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		if v.Fingerprint != row.Fingerprint {
			out.VariantFingerprints = append(out.VariantFingerprints, v.Fingerprint)
		}
	}
	return out, nil
}

func (s *GormDecisionStore) RecentWindow(ctx context.Context, limit int) ([]*Decision, error) {
	var rows []DecisionRecord
	err := s.db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetching recent decisions: %w", err)
	}
	out := make([]*Decision, 0, len(rows))
	for i := range rows {
		d, err := hydrate(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func hydrate(row *DecisionRecord) (*Decision, error) {
	verdict, err := ParseVerdict(row.Verdict)
	if err != nil {
		return nil, fmt.Errorf("corrupt decision row %s: %w", row.Fingerprint, err)
	}
	return &Decision{
		PrimaryFingerprint: row.Fingerprint,
		Verdict:            verdict,
		ReviewerID:         row.ReviewerID,
		Reason:             row.Reason,
		NormalizedText:     row.NormalizedText,
		Source:             ParseSource(row.Source),
		CreatedAt:          row.CreatedAt,
	}, nil
}
