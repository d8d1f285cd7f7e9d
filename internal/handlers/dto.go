//go:build swagger
// +build swagger

package handlers

// DTO structs only for Swagger documentation

// LoginRequest represents login request data
type LoginRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// TokenResponse represents the issued credential
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}
