package firestore

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumia-devs/onboarding/internal/services/web/profile"
)

func TestDocumentMapping(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	p := profile.NewDefault("user-1", "Ana", "ana@example.com", "google.com", now)
	p.Progress = json.RawMessage(`{"current":1}`)

	doc := toDocument(p)
	assert.Equal(t, "user-1", doc.Authentication.UIDAuth)
	assert.Equal(t, "google.com", doc.Authentication.Provider)
	assert.Equal(t, 0, doc.Wallet.Stars)
	assert.Equal(t, `{"current":1}`, doc.Progress)

	back := fromDocument("user-1", doc)
	assert.Equal(t, p.Name, back.Name)
	assert.Equal(t, p.Provider, back.Provider)
	assert.JSONEq(t, string(p.Progress), string(back.Progress))
	assert.True(t, back.CreatedAt.Equal(now))
}

func TestFromDocumentWithoutProgress(t *testing.T) {
	got := fromDocument("user-1", document{Status: "active"})
	assert.Nil(t, got.Progress)
}

func TestPatchUpdatesOnlyCarriesSetFields(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	complete := true
	updates := patchUpdates(profile.Patch{OnboardingComplete: &complete}, now)
	assert.Equal(t, map[string]any{"updatedAt": now, "onboardingComplete": true}, updates)

	name := "Ana"
	updates = patchUpdates(profile.Patch{Name: &name, Progress: json.RawMessage(`{}`)}, now)
	assert.Equal(t, "Ana", updates["name"])
	assert.Equal(t, "{}", updates["onboardingProgress"])
	assert.NotContains(t, updates, "email")
}

func TestOpenRequiresProjectID(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}

// Runs against the emulator when FIRESTORE_EMULATOR_HOST is set.
func TestStoreAgainstEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "kumia-test")
	require.NoError(t, err)
	store := New(client)
	t.Cleanup(func() { _ = store.Close() })

	userID := uuid.NewString()
	_, err = store.GetProfile(ctx, userID)
	require.ErrorIs(t, err, profile.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.CreateProfile(ctx, profile.NewDefault(userID, "Ana", "ana@example.com", "password", now)))
	require.ErrorIs(t, store.CreateProfile(ctx, profile.NewDefault(userID, "Ana", "ana@example.com", "password", now)), profile.ErrAlreadyExists)

	complete := true
	require.NoError(t, store.UpsertProfile(ctx, userID, profile.Patch{OnboardingComplete: &complete}))
	got, err := store.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.OnboardingComplete)
	assert.Equal(t, "Ana", got.Name)

	other := uuid.NewString()
	require.NoError(t, store.UpsertProfile(ctx, other, profile.Patch{Progress: json.RawMessage(`{"current":2}`)}))
	got, err = store.GetProfile(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, profile.StatusActive, got.Status)
	assert.False(t, got.OnboardingComplete)
}
