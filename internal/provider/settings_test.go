package provider

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sydlexius/medley/internal/composite"
	"github.com/sydlexius/medley/internal/encryption"
	"github.com/sydlexius/medley/internal/media"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		t.Fatalf("creating settings table: %v", err)
	}
	return db
}

func setupTestEncryptor(t *testing.T) *encryption.Encryptor {
	t.Helper()
	enc, _, err := encryption.NewEncryptor("")
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}
	return enc
}

func newTestSettings(t *testing.T) *SettingsService {
	t.Helper()
	return NewSettingsService(setupTestDB(t), setupTestEncryptor(t))
}

func TestAPIKeyRoundTrip(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	// Initially empty
	key, err := svc.GetAPIKey(ctx, media.ServiceYouTube)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key, got %s", key)
	}

	if err := svc.SetAPIKey(ctx, media.ServiceYouTube, "my-secret-key-123"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	key, err = svc.GetAPIKey(ctx, media.ServiceYouTube)
	if err != nil {
		t.Fatalf("GetAPIKey after set: %v", err)
	}
	if key != "my-secret-key-123" {
		t.Errorf("expected 'my-secret-key-123', got %s", key)
	}

	// Verify it is encrypted at rest
	var raw string
	err = svc.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", "service.youtube.api_key").Scan(&raw)
	if err != nil {
		t.Fatalf("reading raw value: %v", err)
	}
	if raw == "my-secret-key-123" {
		t.Error("API key stored in plaintext, expected encrypted")
	}

	if err := svc.SetAPIKey(ctx, media.ServiceYouTube, "updated-key-456"); err != nil {
		t.Fatalf("SetAPIKey update: %v", err)
	}
	key, err = svc.GetAPIKey(ctx, media.ServiceYouTube)
	if err != nil {
		t.Fatalf("GetAPIKey after update: %v", err)
	}
	if key != "updated-key-456" {
		t.Errorf("expected 'updated-key-456', got %s", key)
	}
}

func TestDeleteAPIKey(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	if err := svc.SetAPIKey(ctx, media.ServiceGenius, "token-abc"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if err := svc.DeleteAPIKey(ctx, media.ServiceGenius); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}

	key, err := svc.GetAPIKey(ctx, media.ServiceGenius)
	if err != nil {
		t.Fatalf("GetAPIKey after delete: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key after delete, got %s", key)
	}
}

func TestAPIKeyOverride(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	if err := svc.SetAPIKey(ctx, media.ServiceGenius, "stored-key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	overridden := WithAPIKeyOverride(ctx, media.ServiceGenius, "override-key")
	key, err := svc.GetAPIKey(overridden, media.ServiceGenius)
	if err != nil {
		t.Fatalf("GetAPIKey with override: %v", err)
	}
	if key != "override-key" {
		t.Errorf("expected override-key, got %s", key)
	}

	// Other services are unaffected by the override
	key, err = svc.GetAPIKey(overridden, media.ServiceYouTube)
	if err != nil {
		t.Fatalf("GetAPIKey other service: %v", err)
	}
	if key != "" {
		t.Errorf("expected empty key for youtube, got %s", key)
	}

	// The parent context still reads the stored key
	key, err = svc.GetAPIKey(ctx, media.ServiceGenius)
	if err != nil {
		t.Fatalf("GetAPIKey parent ctx: %v", err)
	}
	if key != "stored-key" {
		t.Errorf("expected stored-key, got %s", key)
	}
}

func TestListKeyStatuses(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	if err := svc.SetAPIKey(ctx, media.ServiceYouTube, "yt-key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	statuses, err := svc.ListKeyStatuses(ctx)
	if err != nil {
		t.Fatalf("ListKeyStatuses: %v", err)
	}
	if len(statuses) != len(media.AllServiceNames()) {
		t.Fatalf("expected %d statuses, got %d", len(media.AllServiceNames()), len(statuses))
	}

	byName := make(map[media.ServiceName]KeyStatus, len(statuses))
	for _, st := range statuses {
		byName[st.Name] = st
	}
	if !byName[media.ServiceYouTube].HasKey {
		t.Error("expected youtube HasKey true")
	}
	if byName[media.ServiceITunes].HasKey {
		t.Error("expected itunes HasKey false")
	}
	if byName[media.ServiceITunes].RequiresKey {
		t.Error("itunes should not require a key")
	}
	if !byName[media.ServiceYouTube].RequiresKey {
		t.Error("youtube should require a key")
	}
}

func TestPrioritiesDefaults(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	pri, err := svc.Priorities(ctx, media.KindTrack)
	if err != nil {
		t.Fatalf("Priorities: %v", err)
	}
	if len(pri.General) == 0 || pri.General[0] != media.ServiceSpotify {
		t.Errorf("expected spotify-first default general order, got %v", pri.General)
	}
	if got := pri.Order("genre"); len(got) == 0 || got[0] != media.ServiceITunes {
		t.Errorf("expected itunes-first genre order, got %v", got)
	}
}

func TestPrioritiesOverrideAndReset(t *testing.T) {
	svc := newTestSettings(t)
	ctx := context.Background()

	override := composite.Priorities{
		General: []media.ServiceName{media.ServiceITunes, media.ServiceSpotify},
		Fields: composite.FieldOrder{
			"genre": {media.ServiceSpotify, media.ServiceITunes},
		},
	}
	if err := svc.SetPriorities(ctx, media.KindTrack, override); err != nil {
		t.Fatalf("SetPriorities: %v", err)
	}

	pri, err := svc.Priorities(ctx, media.KindTrack)
	if err != nil {
		t.Fatalf("Priorities after set: %v", err)
	}
	if pri.General[0] != media.ServiceITunes {
		t.Errorf("expected itunes-first override, got %v", pri.General)
	}
	if got := pri.Order("genre"); got[0] != media.ServiceSpotify {
		t.Errorf("expected spotify-first genre override, got %v", got)
	}
	// Fields missing from the override keep their defaults
	if got := pri.Order("description"); len(got) == 0 || got[0] != media.ServiceGenius {
		t.Errorf("expected default genius-first description order, got %v", got)
	}

	if err := svc.ResetPriorities(ctx, media.KindTrack); err != nil {
		t.Fatalf("ResetPriorities: %v", err)
	}
	pri, err = svc.Priorities(ctx, media.KindTrack)
	if err != nil {
		t.Fatalf("Priorities after reset: %v", err)
	}
	if pri.General[0] != media.ServiceSpotify {
		t.Errorf("expected spotify-first after reset, got %v", pri.General)
	}
}
