package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/YKarmar/JobMail/internal/types"
)

type TokenRepository interface {
	// Save stores the token for token.Email, replacing an existing one. An
	// empty refresh token keeps the previously stored refresh token.
	Save(ctx context.Context, token *types.UserToken) error
	// Latest returns the most recently updated token or ErrNotFound.
	Latest(ctx context.Context) (*types.UserToken, error)
	DeleteAll(ctx context.Context) error
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Save(ctx context.Context, token *types.UserToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing types.UserToken
		err := tx.Where("email = ?", token.Email).First(&existing).Error
		if err != nil {
			if err := notFound(err); err != ErrNotFound {
				return fmt.Errorf("find token for %s: %w", token.Email, err)
			}
			if err := tx.Create(token).Error; err != nil {
				return fmt.Errorf("create token for %s: %w", token.Email, err)
			}
			return nil
		}

		existing.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			existing.RefreshToken = token.RefreshToken
		}
		existing.TokenExpiry = token.TokenExpiry
		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("update token for %s: %w", token.Email, err)
		}
		*token = existing
		return nil
	})
}

func (r *tokenRepository) Latest(ctx context.Context) (*types.UserToken, error) {
	var token types.UserToken
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC").First(&token).Error; err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

func (r *tokenRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&types.UserToken{}).Error; err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}
