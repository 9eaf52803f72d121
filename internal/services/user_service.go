package services

import (
	"context"

	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/internal/security"
	"github.com/mroshb/catchup/internal/streak"
	"github.com/mroshb/catchup/pkg/errors"
	"github.com/mroshb/catchup/pkg/logger"
)

type UserService struct {
	users           UserStore
	defaultTimezone string
}

func NewUserService(users UserStore, defaultTimezone string) *UserService {
	if !streak.ValidTimezone(defaultTimezone) {
		defaultTimezone = streak.DefaultTimezone
	}
	return &UserService{
		users:           users,
		defaultTimezone: defaultTimezone,
	}
}

// Register creates a user with a zero streak. An unknown timezone falls back
// to the service default instead of rejecting the signup.
func (s *UserService) Register(ctx context.Context, input models.User) (*models.User, error) {
	if err := models.ValidateUserID(input.ID); err != nil {
		return nil, err
	}

	tz := input.Timezone
	if !streak.ValidTimezone(tz) {
		if tz != "" {
			logger.Info("Unknown timezone on signup, using default", "user_id", input.ID, "timezone", tz)
		}
		tz = s.defaultTimezone
	}

	user := &models.User{
		ID:          input.ID,
		DisplayName: security.SanitizeDisplayName(input.DisplayName),
		Username:    security.SanitizeUsername(input.Username),
		PhotoURL:    security.SanitizePhotoURL(input.PhotoURL),
		Timezone:    tz,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	logger.Info("User registered", "user_id", user.ID, "timezone", user.Timezone)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if err := models.ValidateUserID(id); err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, id)
}

// UpdateTimezone changes the zone used for the user's future day keys. The
// stored streak day key is not rewritten.
func (s *UserService) UpdateTimezone(ctx context.Context, id, tz string) (*models.User, error) {
	if err := models.ValidateUserID(id); err != nil {
		return nil, err
	}
	if !streak.ValidTimezone(tz) {
		return nil, errors.New(errors.ErrCodeValidation, "unknown timezone")
	}

	err := s.users.UpdateUser(ctx, id, func(user *models.User) error {
		user.Timezone = tz
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, id)
}
