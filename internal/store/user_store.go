package store

import (
	"context"
	"errors"

	"codeq/internal/models"
	"codeq/internal/services"

	"gorm.io/gorm"
)

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.first(ctx, "external_id = ?", externalID)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *UserStore) LinkExternalID(ctx context.Context, userID uint, externalID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("external_id", externalID).Error
	if IsUniqueViolation(err) {
		return services.ErrUserExists
	}
	return err
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if IsUniqueViolation(err) {
		return services.ErrUserExists
	}
	return err
}

func (s *UserStore) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
