package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/flagr/internal/storage"
)

// DefaultSidebarExpanded is used when no sidebar state is stored
const DefaultSidebarExpanded = true

// PreferencesService stores per-user interface preferences
type PreferencesService struct {
	kv storage.Store
}

// NewPreferencesService creates a new preferences service
func NewPreferencesService(kv storage.Store) *PreferencesService {
	return &PreferencesService{kv: kv}
}

// SidebarExpanded returns the stored sidebar state. A missing or unreadable
// value yields the default.
func (s *PreferencesService) SidebarExpanded(ctx context.Context, userID string) bool {
	data, err := s.kv.Get(ctx, storage.SidebarKey(userID))
	if err != nil {
		return DefaultSidebarExpanded
	}

	var expanded bool
	if err := json.Unmarshal(data, &expanded); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to parse sidebar state")
		return DefaultSidebarExpanded
	}
	return expanded
}

// SetSidebarExpanded stores the sidebar state
func (s *PreferencesService) SetSidebarExpanded(ctx context.Context, userID string, expanded bool) error {
	data, _ := json.Marshal(expanded)
	return s.kv.Set(ctx, storage.SidebarKey(userID), data)
}
