package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mcosolutions20/historical-stocks/src/database"
	"github.com/mcosolutions20/historical-stocks/src/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository() *UserRepository {
	logger.WithField("component", "UserRepository").
		Info("Creating new UserRepository with MainDB")

	return &UserRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *UserRepository) WithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(
	ctx context.Context,
	userID uint,
) (*model.User, error) {

	var u model.User
	err := r.db.WithContext(ctx).
		First(&u, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FindByLogin matches either the username or the email address.
func (r *UserRepository) FindByLogin(
	ctx context.Context,
	usernameOrEmail string,
) (*model.User, error) {

	var u model.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", usernameOrEmail, usernameOrEmail).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(
	ctx context.Context,
	u *model.User,
) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) Save(
	ctx context.Context,
	u *model.User,
) error {
	return r.db.WithContext(ctx).Save(u).Error
}
