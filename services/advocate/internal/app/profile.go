package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"advocateai/internal/util"
	"advocateai/pkg/domain"
	"advocateai/pkg/store"
)

// EnsureProfile returns the caller's profile, creating it with the default
// credit allowance on first use.
func (a *App) EnsureProfile(ctx context.Context, id domain.Identity) (domain.Profile, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return domain.Profile{}, ErrUnauthenticated
	}
	p, err := a.store.GetProfile(ctx, id.UserID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	now := a.now()
	p, err = a.store.CreateProfile(ctx, domain.Profile{
		ID:               id.UserID,
		Email:            id.Email,
		FullName:         displayName(id),
		AvatarURL:        id.MetadataString("avatar_url", "picture"),
		SubscriptionTier: domain.TierFree,
		CreditsRemaining: a.defaultCredits,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	util.LoggerFromContext(ctx).Info("profile created", "user_id", p.ID, "credits", p.CreditsRemaining)
	return p, nil
}

// GetProfile is EnsureProfile for read-only callers.
func (a *App) GetProfile(ctx context.Context, id domain.Identity) (domain.Profile, error) {
	return a.EnsureProfile(ctx, id)
}

func displayName(id domain.Identity) string {
	if name := id.MetadataString("full_name", "name"); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(id.Email, "@"); ok && local != "" {
		return local
	}
	if id.Email != "" {
		return id.Email
	}
	return "User"
}
