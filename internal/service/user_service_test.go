package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Forecast_Hub/internal/model"
	"Forecast_Hub/internal/pkg/errs"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	users := f.svc.Users

	u, err := users.Register(f.ctx, "  alice  ", "s3cret-pass", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "s3cret-pass", u.Password)
	assert.True(t, u.IsActive)

	tests := []struct {
		name     string
		username string
		password string
		email    string
		field    string
	}{
		{"short username", "al", "s3cret-pass", "al@example.com", "username"},
		{"short password", "bobby", "short", "bob@example.com", "password"},
		{"bad email", "bobby", "s3cret-pass", "not-an-email", "email"},
		{"taken username", "alice", "s3cret-pass", "other@example.com", "username"},
		{"taken email", "bobby", "s3cret-pass", "alice@example.com", "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Register(f.ctx, tt.username, tt.password, tt.email)
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	users := f.svc.Users
	u, err := users.Register(f.ctx, "alice", "s3cret-pass", "alice@example.com")
	require.NoError(t, err)

	_, err = users.Login(f.ctx, "alice", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Login(f.ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err := users.Login(f.ctx, "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	got, err := users.Authenticate(f.ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.Authenticate(f.ctx, pair.RefreshToken)
	assert.Error(t, err)

	refreshed, err := users.Refresh(f.ctx, pair.RefreshToken)
	require.NoError(t, err)
	got, err = users.Authenticate(f.ctx, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, f.db.Model(&model.User{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	_, err = users.Authenticate(f.ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInactiveUser)
	_, err = users.Login(f.ctx, "alice", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	users := f.svc.Users
	u, err := users.Register(f.ctx, "alice", "s3cret-pass", "alice@example.com")
	require.NoError(t, err)

	var ve *errs.ValidationError
	err = users.ChangePassword(f.ctx, u.ID, "wrong-pass", "brand-new-pass")
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "old_password")

	err = users.ChangePassword(f.ctx, u.ID, "s3cret-pass", "short")
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "new_password")

	require.NoError(t, users.ChangePassword(f.ctx, u.ID, "s3cret-pass", "brand-new-pass"))
	_, err = users.Login(f.ctx, "alice", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Login(f.ctx, "alice", "brand-new-pass")
	assert.NoError(t, err)
}
