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

const settingModerationEnabled = "moderation_enabled"

// SettingsStore holds per-scope moderation settings as string values keyed
// by (scope, name). Get returns "" for unset settings.
type SettingsStore interface {
	Set(ctx context.Context, scopeID, name, value string) error
	Get(ctx context.Context, scopeID, name string) (string, error)
}

// ModerationEnabled reports whether moderation is switched on for a scope.
// Off by default: scopes opt in.
func ModerationEnabled(ctx context.Context, s SettingsStore, scopeID string) (bool, error) {
	val, err := s.Get(ctx, scopeID, settingModerationEnabled)
	if err != nil {
		return false, err
	}
	return val == "true", nil
}

func SetModerationEnabled(ctx context.Context, s SettingsStore, scopeID string, enabled bool) error {
	val := "false"
	if enabled {
		val = "true"
	}
	return s.Set(ctx, scopeID, settingModerationEnabled, val)
}

type SettingRecord struct {
	ID        uint   `gorm:"primarykey"`
	ScopeID   string `gorm:"uniqueIndex:idx_scope_setting"`
	Name      string `gorm:"uniqueIndex:idx_scope_setting"`
	Value     string
	UpdatedAt time.Time
}

type GormSettingsStore struct {
	db *gorm.DB
}

var _ SettingsStore = (*GormSettingsStore)(nil)

func NewGormSettingsStore(db *gorm.DB) (*GormSettingsStore, error) {
	if err := db.AutoMigrate(&SettingRecord{}); err != nil {
		return nil, fmt.Errorf("migrating settings table: %w", err)
	}
	return &GormSettingsStore{db: db}, nil
}

func (s *GormSettingsStore) Set(ctx context.Context, scopeID, name, value string) error {
	row := SettingRecord{ScopeID: scopeID, Name: name, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upserting setting %s/%s: %w", scopeID, name, err)
	}
	return nil
}

func (s *GormSettingsStore) Get(ctx context.Context, scopeID, name string) (string, error) {
	var row SettingRecord
	err := s.db.WithContext(ctx).First(&row, "scope_id = ? AND name = ?", scopeID, name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("reading setting %s/%s: %w", scopeID, name, err)
	}
	return row.Value, nil
}

type MemSettingsStore struct {
	mu   sync.Mutex
	data map[string]string
}

var _ SettingsStore = (*MemSettingsStore)(nil)

func NewMemSettingsStore() *MemSettingsStore {
	return &MemSettingsStore{data: make(map[string]string)}
}

func (s *MemSettingsStore) Set(ctx context.Context, scopeID, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[scopeID+"/"+name] = value
	return nil
}

func (s *MemSettingsStore) Get(ctx context.Context, scopeID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[scopeID+"/"+name], nil
}
