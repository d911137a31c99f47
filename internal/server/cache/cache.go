// Package cache defines the expiring string key/value contract used for
// server-side refresh-token state, and its Redis implementation.
package cache

// Refresh tokens are cached under two co-dependent keys sharing one TTL:
// the first answers "does this user have an active refresh token", the
// second "which user does this refresh token belong to". Neither entry is
// meaningful without the other.

// RefreshTokenKey is the user-to-token direction.
func RefreshTokenKey(userID string) string {
	return "refresh_token:" + userID
}

// RefreshTokenLookupKey is the token-to-user direction.
func RefreshTokenLookupKey(token string) string {
	return "refresh_token_lookup:" + token
}
