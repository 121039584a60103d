//go:generate go run go.uber.org/mock/mockgen -source=provider.go -destination=../mocks/mock_identity_provider.go -package=mocks
// Package auth is the identity provider adapter: it authenticates a caller
// and yields a stable participant identifier plus a display snapshot. The
// sync engine itself never sees credentials, only participant ids.
package auth

import (
	"time"

	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/repositories"
)

type IIdentityProvider interface {
	Register(req RegisterRequest) (domain.Participant, string, error)
	Login(req LoginRequest) (domain.Participant, string, error)
	Authenticate(tokenString string) (domain.Participant, error)
	UpdateProfile(id, name, avatarURL string) (domain.Participant, error)
}

type Provider struct {
	profiles      repositories.IProfileRepository
	secret        []byte
	tokenDuration time.Duration
}

func NewProvider(profiles repositories.IProfileRepository, secret []byte, tokenDuration time.Duration) *Provider {
	return &Provider{profiles: profiles, secret: secret, tokenDuration: tokenDuration}
}

// Register validates the request, stores the profile with a hashed
// password and returns the participant together with a session token.
func (p *Provider) Register(req RegisterRequest) (domain.Participant, string, error) {
	if err := ValidateRegister(req); err != nil {
		return domain.Participant{}, "", err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return domain.Participant{}, "", err
	}
	participant, err := p.profiles.Create(domain.Participant{
		Name:  req.Name,
		Email: req.Email,
	}, hash)
	if err != nil {
		return domain.Participant{}, "", err
	}
	token, err := GenerateToken(p.secret, participant.ID, participant.Name, p.tokenDuration)
	if err != nil {
		return domain.Participant{}, "", err
	}
	return participant, token, nil
}

// Login checks the credentials and returns a fresh session token.
// A missing profile and a wrong password are indistinguishable to the
// caller.
func (p *Provider) Login(req LoginRequest) (domain.Participant, string, error) {
	if err := ValidateLogin(req); err != nil {
		return domain.Participant{}, "", err
	}
	participant, hash, err := p.profiles.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrProfileNotFound) {
			return domain.Participant{}, "", errors.ErrInvalidCredentials
		}
		return domain.Participant{}, "", err
	}
	match, err := ComparePassword(req.Password, hash)
	if err != nil || !match {
		return domain.Participant{}, "", errors.ErrInvalidCredentials
	}
	token, err := GenerateToken(p.secret, participant.ID, participant.Name, p.tokenDuration)
	if err != nil {
		return domain.Participant{}, "", err
	}
	return participant, token, nil
}

// Authenticate resolves a bearer token to the current profile record.
func (p *Provider) Authenticate(tokenString string) (domain.Participant, error) {
	claims, err := ValidateToken(p.secret, tokenString)
	if err != nil {
		return domain.Participant{}, errors.ErrInvalidCredentials
	}
	participant, err := p.profiles.Get(claims.ParticipantID)
	if err != nil {
		return domain.Participant{}, errors.ErrInvalidCredentials
	}
	return participant, nil
}

// UpdateProfile rewrites the display fields. Mirror entries caching the
// old snapshot are refreshed lazily by the reconciler.
func (p *Provider) UpdateProfile(id, name, avatarURL string) (domain.Participant, error) {
	return p.profiles.Update(id, name, avatarURL)
}
