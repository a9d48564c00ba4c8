// Package auth implements the authorization gate in front of the remote
// generator. Authorization means an API key is available; requesting
// authorization re-reads the key from the environment and the credentials
// store, which is where the key-selection flow writes it.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// KeySource returns the currently stored API key, or "" when none is stored.
type KeySource interface {
	GeminiAPIKey(ctx context.Context) (string, error)
}

type Gate struct {
	source KeySource
	envKey string
	logger *infra.Logger

	mu         sync.RWMutex
	key        string
	authorized bool
	revokedKey string
}

// NewGate builds a gate. A stored key wins over envKey so that a key saved
// at runtime replaces the one the process started with.
func NewGate(source KeySource, envKey string, logger *infra.Logger) *Gate {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Gate{source: source, envKey: strings.TrimSpace(envKey), logger: logger}
}

func (g *Gate) IsAuthorized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.authorized
}

// APIKey returns the key in use, or "" while unauthorized.
func (g *Gate) APIKey() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.authorized {
		return ""
	}
	return g.key
}

// RequestAuthorization looks for a usable key. A key that was revoked is
// only accepted again once a different key has been stored, unless it comes
// from the environment.
func (g *Gate) RequestAuthorization(ctx context.Context) error {
	key, origin, err := g.lookup(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthDialogFailed, err)
	}
	if key == "" {
		return fmt.Errorf("%w: no api key configured", domain.ErrAuthDialogFailed)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if origin == "store" && key == g.revokedKey {
		return fmt.Errorf("%w: stored api key was rejected, select another key", domain.ErrAuthDialogFailed)
	}
	g.key = key
	g.authorized = true
	g.revokedKey = ""
	g.logger.Info().Str("origin", origin).Msg("auth: authorized")
	return nil
}

func (g *Gate) Revoke() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authorized {
		g.logger.Warn().Msg("auth: api key revoked")
	}
	g.revokedKey = g.key
	g.key = ""
	g.authorized = false
}

func (g *Gate) lookup(ctx context.Context) (string, string, error) {
	if g.source != nil {
		key, err := g.source.GeminiAPIKey(ctx)
		if err != nil {
			if g.envKey != "" {
				g.logger.Warn().Err(err).Msg("auth: credentials store unavailable, using environment key")
				return g.envKey, "env", nil
			}
			return "", "", err
		}
		if key = strings.TrimSpace(key); key != "" {
			return key, "store", nil
		}
	}
	if g.envKey != "" {
		return g.envKey, "env", nil
	}
	return "", "", nil
}
