// Package firestore stores user profiles as documents in the "users"
// collection, in the shape the restaurant dashboard reads.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kumia-devs/onboarding/internal/services/web/profile"
)

// Collection is the Firestore collection holding one document per user id.
const Collection = "users"

// Config configures a Store.
type Config struct {
	ProjectID string
	// CredentialsFile is optional; application default credentials are
	// used when empty. FIRESTORE_EMULATOR_HOST is honored by the client.
	CredentialsFile string
}

// Store implements profile.Store over Firestore.
type Store struct {
	client *firestore.Client
	now    func() time.Time
}

type authentication struct {
	Provider string `firestore:"provider"`
	UIDAuth  string `firestore:"uidAuth"`
}

type wallet struct {
	Stars int `firestore:"stars"`
}

type document struct {
	Name               string         `firestore:"name"`
	Email              string         `firestore:"email"`
	Status             string         `firestore:"status"`
	OnboardingComplete bool           `firestore:"onboardingComplete"`
	Authentication     authentication `firestore:"authentication"`
	Wallet             wallet         `firestore:"wallet"`
	Progress           string         `firestore:"onboardingProgress,omitempty"`
	CreatedAt          time.Time      `firestore:"createdAt"`
	UpdatedAt          time.Time      `firestore:"updatedAt"`
}

// Open creates a Firestore client for cfg.ProjectID.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return New(client), nil
}

// New wraps an existing client.
func New(client *firestore.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// Close closes the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// GetProfile implements profile.Store.
func (s *Store) GetProfile(ctx context.Context, userID string) (profile.Profile, error) {
	userID, err := profile.ValidateUserID(userID)
	if err != nil {
		return profile.Profile{}, err
	}
	snap, err := s.client.Collection(Collection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	var doc document
	if err := snap.DataTo(&doc); err != nil {
		return profile.Profile{}, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return fromDocument(userID, doc), nil
}

// UpsertProfile implements profile.Store. A missing document is created in
// the same transaction with the default fields plus the patch.
func (s *Store) UpsertProfile(ctx context.Context, userID string, patch profile.Patch) error {
	userID, err := profile.ValidateUserID(userID)
	if err != nil {
		return err
	}
	ref := s.client.Collection(Collection).Doc(userID)
	now := s.now().UTC()
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			created := patch.Apply(profile.Profile{UserID: userID, Status: profile.StatusActive, CreatedAt: now}, now)
			return tx.Create(ref, toDocument(created))
		}
		if err != nil {
			return err
		}
		return tx.Set(ref, patchUpdates(patch, now), firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", userID, err)
	}
	return nil
}

// CreateProfile implements profile.Store.
func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) error {
	userID, err := profile.ValidateUserID(p.UserID)
	if err != nil {
		return err
	}
	p.UserID = userID
	_, err = s.client.Collection(Collection).Doc(userID).Create(ctx, toDocument(p))
	if status.Code(err) == codes.AlreadyExists {
		return profile.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create profile %s: %w", userID, err)
	}
	return nil
}

func toDocument(p profile.Profile) document {
	return document{
		Name:               p.Name,
		Email:              p.Email,
		Status:             p.Status,
		OnboardingComplete: p.OnboardingComplete,
		Authentication:     authentication{Provider: p.Provider, UIDAuth: p.UserID},
		Wallet:             wallet{Stars: p.WalletStars},
		Progress:           string(p.Progress),
		CreatedAt:          p.CreatedAt.UTC(),
		UpdatedAt:          p.UpdatedAt.UTC(),
	}
}

func fromDocument(userID string, doc document) profile.Profile {
	p := profile.Profile{
		UserID:             userID,
		Name:               doc.Name,
		Email:              doc.Email,
		Status:             doc.Status,
		Provider:           doc.Authentication.Provider,
		OnboardingComplete: doc.OnboardingComplete,
		WalletStars:        doc.Wallet.Stars,
		CreatedAt:          doc.CreatedAt.UTC(),
		UpdatedAt:          doc.UpdatedAt.UTC(),
	}
	if doc.Progress != "" {
		p.Progress = json.RawMessage(doc.Progress)
	}
	return p
}

// patchUpdates is the MergeAll payload for patch. Keys use the document
// field names.
func patchUpdates(patch profile.Patch, now time.Time) map[string]any {
	updates := map[string]any{"updatedAt": now}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.OnboardingComplete != nil {
		updates["onboardingComplete"] = *patch.OnboardingComplete
	}
	if patch.Progress != nil {
		updates["onboardingProgress"] = string(patch.Progress)
	}
	return updates
}

var _ profile.Store = (*Store)(nil)
