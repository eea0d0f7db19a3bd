package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"wolweb/internal/auth/hash"
	"wolweb/internal/validate"
)

// Users is the credential store over the users table.
type Users struct {
	db *gorm.DB
}

// Register validates the fields, derives a password hash and persists a
// new account. The first account created receives identifier 1 and the
// admin flag: the superuser must be an admin from birth.
func (u *Users) Register(ctx context.Context, username, email, rawPassword string) (uint, error) {
	if err := validate.Username(username); err != nil {
		return 0, err
	}
	if err := validate.Email(email); err != nil {
		return 0, err
	}
	if err := validate.Password(rawPassword); err != nil {
		return 0, err
	}

	var count int64
	if err := u.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return 0, err
	}

	phc, err := hash.Password(rawPassword)
	if err != nil {
		return 0, err
	}
	user := User{
		Username:     username,
		Email:        email,
		PasswordHash: phc,
		IsAdmin:      count == 0,
	}
	if err := u.db.WithContext(ctx).Create(&user).Error; err != nil {
		switch {
		case isUniqueViolation(err, "users.username"):
			return 0, ErrDuplicateUsername
		case isUniqueViolation(err, "users.email"):
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("creating user: %w", err)
	}
	return user.ID, nil
}

// Authenticate looks up the account by username and verifies the raw
// password against the stored hash. The password is never logged.
func (u *Users) Authenticate(ctx context.Context, username, rawPassword string) (uint, error) {
	var user User
	err := u.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAuthFailure
		}
		return 0, err
	}
	if !hash.Verify(user.PasswordHash, rawPassword) {
		return 0, ErrAuthFailure
	}
	return user.ID, nil
}

// GetByID returns the account or ErrNotFound.
func (u *Users) GetByID(ctx context.Context, id uint) (User, error) {
	var user User
	err := u.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// List returns every account, ordered by identifier.
func (u *Users) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := u.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetPassword re-derives and overwrites the hash. No history is kept.
func (u *Users) SetPassword(ctx context.Context, id uint, rawPassword string) error {
	if err := validate.Password(rawPassword); err != nil {
		return err
	}
	phc, err := hash.Password(rawPassword)
	if err != nil {
		return err
	}
	res := u.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Update("password_hash", phc)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile changes username and email, keeping both unique.
func (u *Users) UpdateProfile(ctx context.Context, id uint, username, email string) error {
	if err := validate.Username(username); err != nil {
		return err
	}
	if err := validate.Email(email); err != nil {
		return err
	}
	res := u.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Updates(map[string]any{"username": username, "email": email})
	if res.Error != nil {
		switch {
		case isUniqueViolation(res.Error, "users.username"):
			return ErrDuplicateUsername
		case isUniqueViolation(res.Error, "users.email"):
			return ErrDuplicateEmail
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAdmin mutates the admin flag. Changing the superuser's flag is
// forbidden regardless of caller privilege.
func (u *Users) SetAdmin(ctx context.Context, id uint, isAdmin bool) error {
	if id == SuperuserID && !isAdmin {
		return ErrForbiddenOperation
	}
	res := u.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the account. The superuser cannot be deleted. Hosts
// owned by the account are left in place; owner-scoped queries never
// surface them again (see DESIGN.md on the cascade question).
func (u *Users) Delete(ctx context.Context, id uint) error {
	if id == SuperuserID {
		return ErrForbiddenOperation
	}
	res := u.db.WithContext(ctx).Delete(&User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
