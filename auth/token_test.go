package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Token_RoundTrip(t *testing.T) {
	req := require.New(t)
	secret := []byte("test-secret")

	token, err := GenerateToken(secret, "participant-1", "Alice", time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(secret, token)
	req.NoError(err)
	req.Equal("participant-1", claims.ParticipantID)
	req.Equal("Alice", claims.Name)
	req.Equal("chat-sync", claims.Issuer)
}

func Test_Token_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken([]byte("secret-a"), "participant-1", "Alice", time.Hour)
	req.NoError(err)

	_, err = ValidateToken([]byte("secret-b"), token)
	req.Error(err)
}

func Test_Token_Rejects_Expired(t *testing.T) {
	req := require.New(t)
	secret := []byte("test-secret")

	token, err := GenerateToken(secret, "participant-1", "Alice", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(secret, token)
	req.Error(err)
}
