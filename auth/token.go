package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ParticipantClaims is the data carried inside a session token. The
// display fields are convenience only; the profile store remains the
// source of truth for rendering.
type ParticipantClaims struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed session JWT for a participant.
func GenerateToken(secret []byte, participantID, name string, tokenDuration time.Duration) (string, error) {
	claims := &ParticipantClaims{
		ParticipantID: participantID,
		Name:          name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-sync",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and validates the signature and expiration of a
// session token.
func ValidateToken(secret []byte, tokenString string) (*ParticipantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ParticipantClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*ParticipantClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
