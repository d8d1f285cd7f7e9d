package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ManYouOriginal/ChatTest/internal/ports"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 7 * 24 * time.Hour

type AuthService struct {
	presence  ports.PresenceStore
	tokenRepo ports.TokenRepository
	jwtKey    []byte
	logger    *slog.Logger
}

func NewAuthService(presence ports.PresenceStore, tokenRepo ports.TokenRepository, jwtKey []byte, logger *slog.Logger) *AuthService {
	return &AuthService{presence: presence, tokenRepo: tokenRepo, jwtKey: jwtKey, logger: logger}
}

// UserIDFor derives the stable opaque identifier for a nickname. The same
// nickname always maps to the same id, which is all the core requires of
// identity issuance.
func UserIDFor(nickname string) string {
	sum := sha256.Sum256([]byte(nickname))
	return hex.EncodeToString(sum[:])[:8]
}

// Login exchanges a plaintext nickname for an opaque user id and a bearer
// token. The nickname is written to the presence directory so other users
// see it instead of the placeholder.
func (s *AuthService) Login(ctx context.Context, nickname string) (string, string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		s.logger.Warn("login attempt with empty nickname")
		return "", "", ErrNicknameRequired
	}

	userID := UserIDFor(nickname)

	if err := s.presence.SetNickname(ctx, userID, nickname); err != nil {
		s.logger.Error("failed to store nickname", "userID", userID, "error", err)
		return "", "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtKey)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		return "", "", errors.New("authentication failed")
	}

	s.logger.Info("login successful", "userID", userID, "nickname", nickname)
	return userID, tokenString, nil
}

// ValidateToken returns the user id carried by a valid, unrevoked token.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("token is required")
	}

	hash := sha256.Sum256([]byte(tokenString))
	tokenHash := hex.EncodeToString(hash[:])

	isRevoked, err := s.tokenRepo.IsRevoked(ctx, tokenHash)
	if err != nil {
		s.logger.Error("token revocation check failed", "error", err)
		return "", err
	}
	if isRevoked {
		return "", errors.New("token revoked")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtKey, nil
	})
	if err != nil {
		s.logger.Warn("token parsing failed", "error", err)
		return "", errors.New("invalid token")
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", errors.New("token expiration missing")
	}
	if time.Now().Unix() > int64(exp) {
		return "", errors.New("token expired")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("user id missing in token")
	}

	s.logger.Debug("token validated", "userID", userID)
	return userID, nil
}

func (s *AuthService) RevokeToken(ctx context.Context, tokenString string) error {
	hash := sha256.Sum256([]byte(tokenString))
	tokenHash := hex.EncodeToString(hash[:])
	return s.tokenRepo.Revoke(ctx, tokenHash, tokenTTL)
}

var ErrNicknameRequired = errors.New("nickname is required")
