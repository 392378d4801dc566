package data

import (
	"context"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settings caches the settings table in memory.
type Settings struct {
	db    *gorm.DB
	mu    sync.RWMutex
	cache map[string]string
}

func NewSettings(db *gorm.DB) *Settings {
	return &Settings{db: db, cache: map[string]string{}}
}

// Load loads all settings from the database into cache
func (s *Settings) Load(ctx context.Context) error {
	var settings []Setting
	if err := s.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string]string, len(settings))
	for _, st := range settings {
		s.cache[st.Name] = st.Value
	}
	return nil
}

// Get retrieves a setting value from cache (call Load first)
func (s *Settings) Get(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[name]
}

// Set upserts a setting and refreshes the cache entry.
func (s *Settings) Set(ctx context.Context, name, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Name: name, Value: value}).Error
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()
	return nil
}
