// Package app resolves the active user and config for CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	"dayline/internal/config"
	"dayline/internal/domain"
	"dayline/internal/repo"
)

// ResolveUserAndConfig loads dayline.yml from the workspace (falling back
// to defaults when absent), applies the user override, and makes sure the
// user row exists. The resolved user id is returned alongside the config.
func ResolveUserAndConfig(ctx context.Context, workspace, userOverride string, r repo.Repo) (string, *config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return "", nil, err
	}
	if cfg == nil {
		seed := userOverride
		if seed == "" {
			seed = "local-user"
		}
		cfg = config.Default(seed)
	}
	if userOverride != "" {
		cfg.User.ID = userOverride
	}
	userID := cfg.User.ID
	if userID == "" {
		return "", nil, fmt.Errorf("user not specified; use --user or set user.id in %s", config.Path(workspace))
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if err := r.EnsureUser(ctx, domain.User{ID: userID, CreatedAt: now}); err != nil {
		return "", nil, fmt.Errorf("ensure user: %w", err)
	}
	return userID, cfg, nil
}
