// Package credentials persists provider API keys in the history medium's
// credentials partition.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"genstudio/internal/history"
)

const (
	Partition      = "credentials"
	ProviderGemini = "gemini"
)

type tokenPayload struct {
	Token string `json:"token"`
}

type Store struct {
	medium history.Medium
	clock  func() time.Time
}

// NewStore opens the credentials partition on medium.
func NewStore(ctx context.Context, medium history.Medium) (*Store, error) {
	if medium == nil {
		return nil, errors.New("credentials: medium is required")
	}
	if err := medium.Open(ctx, Partition); err != nil {
		return nil, fmt.Errorf("credentials: open: %w", err)
	}
	return &Store{medium: medium, clock: time.Now}, nil
}

func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	entries, err := s.medium.Scan(ctx, Partition)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Key != provider {
			continue
		}
		var payload tokenPayload
		if err := json.Unmarshal(e.Value, &payload); err != nil {
			return "", fmt.Errorf("credentials: decode %s: %w", provider, err)
		}
		return strings.TrimSpace(payload.Token), nil
	}
	return "", nil
}

func (s *Store) SetGeminiAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("gemini api key is required")
	}
	return s.upsert(ctx, ProviderGemini, key)
}

// Forget removes the stored token for provider.
func (s *Store) Forget(ctx context.Context, provider string) error {
	return s.medium.Delete(ctx, Partition, provider)
}

func (s *Store) upsert(ctx context.Context, provider, token string) error {
	raw, err := json.Marshal(tokenPayload{Token: token})
	if err != nil {
		return err
	}
	_, err = s.medium.Upsert(ctx, Partition, history.Entry{
		Key:       provider,
		CreatedAt: s.clock().UTC(),
		Value:     raw,
	})
	return err
}
