package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YKarmar/JobMail/internal/store"
	"github.com/YKarmar/JobMail/internal/testutil"
	"github.com/YKarmar/JobMail/internal/types"
)

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	repo := store.NewTokenRepository(testutil.NewTestDB(t))

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.Save(ctx, &types.UserToken{
		Email:        "me@gmail.com",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	t.Run("update keeps refresh token", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &types.UserToken{
			Email:       "me@gmail.com",
			AccessToken: "access-2",
		}))

		tok, err := repo.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, "me@gmail.com", tok.Email)
		assert.Equal(t, "access-2", tok.AccessToken)
		assert.Equal(t, "refresh-1", tok.RefreshToken)
	})

	t.Run("delete all", func(t *testing.T) {
		require.NoError(t, repo.DeleteAll(ctx))
		_, err := repo.Latest(ctx)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := store.Open("oracle", "dsn")
	assert.Error(t, err)
}
