package models

// User is the presence view of a user. Online is derived from registry
// membership, it is not authoritative on its own.
type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Online   bool   `json:"online"`
}

// DefaultNickname is used whenever no nickname has been stored for a user.
func DefaultNickname(userID string) string {
	return "User " + userID
}
