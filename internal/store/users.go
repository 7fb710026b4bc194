package store

import (
	"context"
	"fmt"

	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/models"
	"gorm.io/gorm"
)

type userDirectory struct {
	db *gorm.DB
}

func (u *userDirectory) Exists(ctx context.Context, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	if err := u.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: check user %d: %w", id, err)
	}
	return count > 0, nil
}

// DisplayName falls back to the login when no display name was set.
func (u *userDirectory) DisplayName(ctx context.Context, id uint) (string, error) {
	var user models.User
	if err := u.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if nf := notFound(err, "user %d", id); nf != nil {
			return "", nf
		}
		return "", fmt.Errorf("store: get user %d: %w", id, err)
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.Login, nil
}

// CreateUser adds a user account.
func (s *Store) CreateUser(ctx context.Context, login, displayName, email string) (*models.User, error) {
	if login == "" {
		return nil, host.Validationf("user login is required")
	}
	user := models.User{Login: login, DisplayName: displayName, Email: email}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("store: create user %q: %w", login, err)
	}
	return &user, nil
}

// ListUsers returns every user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return users, nil
}
