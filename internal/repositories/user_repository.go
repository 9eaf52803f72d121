package repositories

import (
	"context"
	stderrors "errors"

	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, translateError(result.Error, "failed to get user")
	}

	return &user, nil
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Create(user)

	if stderrors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return errors.New(errors.ErrCodeAlreadyExists, "user already exists")
	}
	return translateError(result.Error, "failed to create user")
}

// UpdateUser locks the row, applies fn and saves it in one transaction.
func (r *UserRepository) UpdateUser(ctx context.Context, id string, fn func(user *models.User) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&user)
		if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
			return errors.New(errors.ErrCodeNotFound, "user not found")
		}
		if result.Error != nil {
			return result.Error
		}

		if err := fn(&user); err != nil {
			return err
		}
		user.ID = id
		return tx.Save(&user).Error
	})
	return translateError(err, "failed to update user")
}
