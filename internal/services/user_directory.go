package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeq/internal/identity"
	"codeq/internal/models"

	"github.com/rs/zerolog"
)

var ErrUserExists = errors.New("user already exists")

// UserStore is the persistence behind UserDirectory.
type UserStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	LinkExternalID(ctx context.Context, userID uint, externalID string) error
	// Create returns ErrUserExists when external id or email is taken.
	Create(ctx context.Context, user *models.User) error
}

// UserDirectory maps identity provider subjects to internal users.
type UserDirectory struct {
	store  UserStore
	logger zerolog.Logger
}

func NewUserDirectory(store UserStore, logger zerolog.Logger) *UserDirectory {
	return &UserDirectory{
		store:  store,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// EnsureUser returns the user for id, creating it on first sight. An existing
// account with the same email is linked to the new subject instead.
func (d *UserDirectory) EnsureUser(ctx context.Context, id *identity.Identity) (*models.User, error) {
	if id == nil || id.Subject == "" {
		return nil, ErrUnauthenticated
	}

	for attempt := 0; attempt < 2; attempt++ {
		user, err := d.store.FindByExternalID(ctx, id.Subject)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("find user by subject: %w", err)
		}

		if id.Email != "" {
			user, err = d.store.FindByEmail(ctx, id.Email)
			switch {
			case err == nil:
				if err := d.store.LinkExternalID(ctx, user.ID, id.Subject); err != nil {
					return nil, fmt.Errorf("link subject to user %d: %w", user.ID, err)
				}
				user.ExternalID = id.Subject
				d.logger.Info().Uint("user_id", user.ID).Str("subject", id.Subject).Msg("linked identity to existing user")
				return user, nil
			case !errors.Is(err, ErrUserNotFound):
				return nil, fmt.Errorf("find user by email: %w", err)
			}
		}

		user = newUserFromIdentity(id)
		err = d.store.Create(ctx, user)
		if err == nil {
			d.logger.Info().Uint("user_id", user.ID).Str("subject", id.Subject).Msg("user created")
			return user, nil
		}
		if !errors.Is(err, ErrUserExists) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// A concurrent request created it; read it back.
	}
	return nil, ErrUserNotFound
}

func newUserFromIdentity(id *identity.Identity) *models.User {
	name := id.Name
	if name == "" {
		name = strings.Split(id.Email, "@")[0]
	}
	if name == "" {
		name = "User"
	}
	return &models.User{
		ExternalID:  id.Subject,
		Email:       id.Email,
		Name:        name,
		DisplayName: name,
		AvatarURL:   id.AvatarURL,
	}
}
