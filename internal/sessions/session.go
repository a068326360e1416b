package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session is a refresh session issued after a verified sign-in. Only the
// hash of the refresh token is stored.
type Session struct {
	ID          string    `bson:"_id,omitempty" json:"id,omitempty"`
	TokenHash   string    `bson:"tokenHash" json:"tokenHash"`
	UserID      string    `bson:"userId" json:"userId"`
	DisplayName string    `bson:"displayName" json:"displayName"`
	Email       string    `bson:"email,omitempty" json:"email,omitempty"`
	ExpiresAt   time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// HashToken is the hex sha256 of a bearer or refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
