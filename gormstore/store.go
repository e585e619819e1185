// Package gormstore implements the credential store on PostgreSQL via GORM.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	authcore "github.com/campuskit/authcore"
)

// accountModel is the persistence shape of an account row.
type accountModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex:idx_accounts_email;size:254;not null"`
	Username     string `gorm:"uniqueIndex:idx_accounts_username;size:64;not null"`
	DisplayName  string `gorm:"size:128;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	Role         string `gorm:"size:16;not null"`
	Verified     bool   `gorm:"not null;default:false"`
	Status       uint8  `gorm:"not null;default:0"`

	FailedLoginCount  int `gorm:"not null;default:0"`
	LockedUntil       *time.Time
	ResetTokenHash    *string `gorm:"size:64"`
	ResetTokenExpires *time.Time
	LastLogin         *time.Time
	CreatedAt         time.Time
}

func (accountModel) TableName() string { return "accounts" }

// Store is a [authcore.CredentialStore] backed by GORM.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the accounts table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&accountModel{})
}

func toDomain(m *accountModel) *authcore.Account {
	a := &authcore.Account{
		ID:               m.ID,
		Email:            m.Email,
		Username:         m.Username,
		DisplayName:      m.DisplayName,
		PasswordHash:     m.PasswordHash,
		Role:             authcore.Role(m.Role),
		Verified:         m.Verified,
		Status:           authcore.AccountStatus(m.Status),
		FailedLoginCount: m.FailedLoginCount,
		CreatedAt:        m.CreatedAt,
	}
	if m.LockedUntil != nil {
		a.LockedUntil = *m.LockedUntil
	}
	if m.ResetTokenHash != nil {
		a.ResetTokenHash = *m.ResetTokenHash
	}
	if m.ResetTokenExpires != nil {
		a.ResetTokenExpires = *m.ResetTokenExpires
	}
	if m.LastLogin != nil {
		a.LastLogin = *m.LastLogin
	}
	return a
}

func fromDomain(a *authcore.Account) *accountModel {
	m := &accountModel{
		ID:               a.ID,
		Email:            a.Email,
		Username:         a.Username,
		DisplayName:      a.DisplayName,
		PasswordHash:     a.PasswordHash,
		Role:             string(a.Role),
		Verified:         a.Verified,
		Status:           uint8(a.Status),
		FailedLoginCount: a.FailedLoginCount,
		CreatedAt:        a.CreatedAt,
	}
	if !a.LockedUntil.IsZero() {
		t := a.LockedUntil
		m.LockedUntil = &t
	}
	if a.ResetTokenHash != "" {
		h := a.ResetTokenHash
		m.ResetTokenHash = &h
	}
	if !a.ResetTokenExpires.IsZero() {
		t := a.ResetTokenExpires
		m.ResetTokenExpires = &t
	}
	if !a.LastLogin.IsZero() {
		t := a.LastLogin
		m.LastLogin = &t
	}
	return m
}

func (s *Store) findOne(ctx context.Context, query string, args ...interface{}) (*authcore.Account, error) {
	var m accountModel
	err := s.db.WithContext(ctx).Where(query, args...).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomain(&m), nil
}

func (s *Store) FindByLogin(ctx context.Context, emailOrUsername string) (*authcore.Account, error) {
	id := strings.ToLower(emailOrUsername)
	return s.findOne(ctx, "email = ? OR username = ?", id, id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	return s.findOne(ctx, "email = ?", strings.ToLower(email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*authcore.Account, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Store) Insert(ctx context.Context, account *authcore.Account) error {
	err := s.db.WithContext(ctx).Create(fromDomain(account)).Error
	if err == nil {
		return nil
	}
	// Requires gorm.Config{TranslateError: true}; the constraint name in
	// the driver message disambiguates which unique index fired.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if strings.Contains(err.Error(), "idx_accounts_username") {
			return authcore.ErrDuplicateUsername
		}
		return authcore.ErrDuplicateEmail
	}
	return err
}

// updateFields runs a single UPDATE and maps a zero-row result to not-found.
func (s *Store) updateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&accountModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

func (s *Store) UpdateLockout(ctx context.Context, id string, failedCount int, lockedUntil, lastLogin time.Time) error {
	fields := map[string]interface{}{
		"failed_login_count": failedCount,
	}
	if lockedUntil.IsZero() {
		fields["locked_until"] = nil
	} else {
		fields["locked_until"] = lockedUntil
	}
	if !lastLogin.IsZero() {
		fields["last_login"] = lastLogin
	}
	return s.updateFields(ctx, id, fields)
}

func (s *Store) UpdateVerification(ctx context.Context, id string, verified bool) error {
	return s.updateFields(ctx, id, map[string]interface{}{"verified": verified})
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status authcore.AccountStatus) error {
	return s.updateFields(ctx, id, map[string]interface{}{"status": uint8(status)})
}

func (s *Store) UpdateResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	return s.updateFields(ctx, id, map[string]interface{}{
		"reset_token_hash":    tokenHash,
		"reset_token_expires": expires,
	})
}

func (s *Store) ClearResetToken(ctx context.Context, id string) error {
	return s.updateFields(ctx, id, map[string]interface{}{
		"reset_token_hash":    nil,
		"reset_token_expires": nil,
	})
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	return s.updateFields(ctx, id, map[string]interface{}{"password_hash": passwordHash})
}
