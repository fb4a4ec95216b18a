package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sydlexius/medley/internal/composite"
	"github.com/sydlexius/medley/internal/encryption"
	"github.com/sydlexius/medley/internal/media"
)

// SettingsService manages service credentials and the per-field priority
// tables using the settings key-value table.
type SettingsService struct {
	db        *sql.DB
	encryptor *encryption.Encryptor
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(db *sql.DB, encryptor *encryption.Encryptor) *SettingsService {
	return &SettingsService{db: db, encryptor: encryptor}
}

// apiKeySettingKey returns the settings table key for a service's API key.
func apiKeySettingKey(name media.ServiceName) string {
	return fmt.Sprintf("service.%s.api_key", name)
}

// prioritySettingKey returns the settings table key for a kind's priority table.
func prioritySettingKey(kind media.Kind) string {
	return fmt.Sprintf("priority.%s", kind)
}

// ctxKeyOverride is the context key for per-request API key overrides.
// This lets handlers inject an unsaved key so adapters read it during
// TestConnection without persisting first.
type ctxKeyOverride struct{}

// WithAPIKeyOverride returns a child context that overrides the stored API
// key for the named service. GetAPIKey will return this value instead of
// querying the database.
func WithAPIKeyOverride(ctx context.Context, name media.ServiceName, key string) context.Context {
	parentOverrides, _ := ctx.Value(ctxKeyOverride{}).(map[media.ServiceName]string)

	// Always create a fresh map to avoid mutating any map stored in a parent context.
	overrides := make(map[media.ServiceName]string, len(parentOverrides)+1)
	for k, v := range parentOverrides {
		overrides[k] = v
	}
	overrides[name] = key
	return context.WithValue(ctx, ctxKeyOverride{}, overrides)
}

// GetAPIKey retrieves and decrypts the API key for a service.
// Returns empty string if no key is configured.
func (s *SettingsService) GetAPIKey(ctx context.Context, name media.ServiceName) (string, error) {
	if overrides, ok := ctx.Value(ctxKeyOverride{}).(map[media.ServiceName]string); ok {
		if v, found := overrides[name]; found {
			return v, nil
		}
	}

	key := apiKeySettingKey(name)
	var encrypted string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading API key for %s: %w", name, err)
	}
	plaintext, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypting API key for %s: %w", name, err)
	}
	return plaintext, nil
}

// SetAPIKey encrypts and stores the API key for a service.
func (s *SettingsService) SetAPIKey(ctx context.Context, name media.ServiceName, apiKey string) error {
	encrypted, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypting API key for %s: %w", name, err)
	}
	if err := s.upsert(ctx, apiKeySettingKey(name), encrypted); err != nil {
		return fmt.Errorf("storing API key for %s: %w", name, err)
	}
	return nil
}

// DeleteAPIKey removes the API key for a service.
func (s *SettingsService) DeleteAPIKey(ctx context.Context, name media.ServiceName) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", apiKeySettingKey(name)); err != nil {
		return fmt.Errorf("deleting API key for %s: %w", name, err)
	}
	return nil
}

// HasAPIKey checks whether a service has a stored API key.
func (s *SettingsService) HasAPIKey(ctx context.Context, name media.ServiceName) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM settings WHERE key = ?", apiKeySettingKey(name)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking API key for %s: %w", name, err)
	}
	return count > 0, nil
}

// KeyStatus describes the credential configuration state for a service.
type KeyStatus struct {
	Name        media.ServiceName `json:"name"`
	DisplayName string            `json:"display_name"`
	RequiresKey bool              `json:"requires_key"`
	HasKey      bool              `json:"has_key"`
	AccessTier  AccessTier        `json:"access_tier"`
	HelpURL     string            `json:"help_url,omitempty"`
	RateLimit   *RateLimitInfo    `json:"rate_limit,omitempty"`
}

// ListKeyStatuses returns the credential status for all known services.
func (s *SettingsService) ListKeyStatuses(ctx context.Context) ([]KeyStatus, error) {
	caps := Capabilities()
	var statuses []KeyStatus
	for _, name := range media.AllServiceNames() {
		hasKey, err := s.HasAPIKey(ctx, name)
		if err != nil {
			return nil, err
		}
		cap := caps[name]
		statuses = append(statuses, KeyStatus{
			Name:        name,
			DisplayName: name.DisplayName(),
			RequiresKey: cap.Tier != TierFree,
			HasKey:      hasKey,
			AccessTier:  cap.Tier,
			HelpURL:     cap.HelpURL,
			RateLimit:   cap.RateLimit,
		})
	}
	return statuses, nil
}

// Priorities returns the priority table for an entity kind, falling back to
// the shipped defaults when no override is stored. Satisfies
// composite.PrioritySource.
func (s *SettingsService) Priorities(ctx context.Context, kind media.Kind) (composite.Priorities, error) {
	defaults, err := composite.DefaultPriorities().Priorities(ctx, kind)
	if err != nil {
		return composite.Priorities{}, err
	}

	var raw string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", prioritySettingKey(kind)).Scan(&raw)
	if err == sql.ErrNoRows {
		return defaults, nil
	}
	if err != nil {
		return composite.Priorities{}, fmt.Errorf("reading priorities for %s: %w", kind, err)
	}

	var stored composite.Priorities
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return composite.Priorities{}, fmt.Errorf("parsing priorities for %s: %w", kind, err)
	}
	if len(stored.General) == 0 {
		stored.General = defaults.General
	}
	// Stored overrides replace whole field entries; untouched fields keep
	// their defaults.
	merged := composite.FieldOrder{}
	for f, order := range defaults.Fields {
		merged[f] = order
	}
	for f, order := range stored.Fields {
		merged[f] = order
	}
	stored.Fields = merged
	return stored, nil
}

// SetPriorities stores a priority table override for an entity kind.
func (s *SettingsService) SetPriorities(ctx context.Context, kind media.Kind, pri composite.Priorities) error {
	raw, err := json.Marshal(pri)
	if err != nil {
		return fmt.Errorf("encoding priorities for %s: %w", kind, err)
	}
	if err := s.upsert(ctx, prioritySettingKey(kind), string(raw)); err != nil {
		return fmt.Errorf("storing priorities for %s: %w", kind, err)
	}
	return nil
}

// ResetPriorities removes any stored override for an entity kind.
func (s *SettingsService) ResetPriorities(ctx context.Context, kind media.Kind) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", prioritySettingKey(kind)); err != nil {
		return fmt.Errorf("resetting priorities for %s: %w", kind, err)
	}
	return nil
}

func (s *SettingsService) upsert(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')",
		key, value, value,
	)
	return err
}
