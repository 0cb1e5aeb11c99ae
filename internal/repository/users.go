package repository

import (
	"context"

	"bitwise74/drop-api/internal/model"

	"gorm.io/gorm"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) Create(ctx context.Context, u *model.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r *Users) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}

	return &u, nil
}

// FindByLogin matches either the phone number or the username
func (r *Users) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Where("phone_number = ? OR username = ?", login, login).
		First(&u).
		Error
	if err != nil {
		return nil, translate(err)
	}

	return &u, nil
}

func (r *Users) Exists(ctx context.Context, id string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Count(&count).
		Error

	return count > 0, err
}

func (r *Users) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
