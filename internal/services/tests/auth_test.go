package services_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ManYouOriginal/ChatTest/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtKey = "test_key"

func newAuthService(key string) (*services.AuthService, *services.MemoryPresenceStore) {
	presence := services.NewMemoryPresenceStore()
	tokens := services.NewMemoryTokenRepository()
	return services.NewAuthService(presence, tokens, []byte(key), slog.Default()), presence
}

func TestAuth_Login_TableDriven(t *testing.T) {
	ctx := context.Background()

	ts := []struct {
		name          string
		nickname      string
		expectedError error
	}{
		{
			name:          "Successful login",
			nickname:      "alice",
			expectedError: nil,
		},
		{
			name:          "Empty nickname",
			nickname:      "",
			expectedError: services.ErrNicknameRequired,
		},
		{
			name:          "Whitespace nickname",
			nickname:      "   ",
			expectedError: services.ErrNicknameRequired,
		},
	}

	for _, tt := range ts {
		t.Run(tt.name, func(t *testing.T) {
			service, presence := newAuthService(jwtKey)

			userID, token, err := service.Login(ctx, tt.nickname)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, userID)
				assert.Empty(t, token)
				return
			}

			require.NoError(t, err)
			assert.Len(t, userID, 8)
			assert.NotEmpty(t, token)

			nickname, err := presence.Nickname(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, tt.nickname, nickname)
		})
	}
}

func TestAuth_UserIDIsStable(t *testing.T) {
	assert.Equal(t, services.UserIDFor("alice"), services.UserIDFor("alice"))
	assert.NotEqual(t, services.UserIDFor("alice"), services.UserIDFor("bob"))
	assert.Len(t, services.UserIDFor("alice"), 8)
}

func TestAuth_LoginValidateRoundTrip(t *testing.T) {
	ctx := context.Background()
	service, _ := newAuthService(jwtKey)

	userID, token, err := service.Login(ctx, "alice")
	require.NoError(t, err)

	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtKey), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	validatedID, err := service.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, validatedID)
}

func TestAuth_RevokedTokenRejected(t *testing.T) {
	ctx := context.Background()
	service, _ := newAuthService(jwtKey)

	_, token, err := service.Login(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, service.RevokeToken(ctx, token))

	_, err = service.ValidateToken(ctx, token)
	assert.EqualError(t, err, "token revoked")
}

func TestAuth_ValidateToken_Invalid(t *testing.T) {
	ctx := context.Background()

	service, _ := newAuthService(jwtKey)
	otherService, _ := newAuthService("different_key")

	_, token, err := otherService.Login(ctx, "alice")
	require.NoError(t, err)

	ts := []struct {
		name  string
		token string
	}{
		{
			name:  "Empty token",
			token: "",
		},
		{
			name:  "Garbage token",
			token: "not.a.jwt",
		},
		{
			name:  "Wrong signing key",
			token: token,
		},
	}

	for _, tt := range ts {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateToken(ctx, tt.token)
			assert.Error(t, err)
		})
	}
}
