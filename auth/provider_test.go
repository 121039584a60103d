package auth

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-sync/errors"
	"chat-sync/repositories"
)

const testPassword = "Sup3r$ecretPass!"

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	profiles := repositories.NewProfileRepository(db)
	return NewProvider(profiles, []byte("test-secret"), time.Hour)
}

func Test_Register_Then_Authenticate(t *testing.T) {
	req := require.New(t)
	provider := newTestProvider(t)

	participant, token, err := provider.Register(RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: testPassword,
	})
	req.NoError(err)
	req.NotEmpty(participant.ID)
	req.NotEmpty(token)

	resolved, err := provider.Authenticate(token)
	req.NoError(err)
	req.Equal(participant, resolved)
}

func Test_Register_Rejects_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	provider := newTestProvider(t)

	_, _, err := provider.Register(RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: testPassword,
	})
	req.NoError(err)

	_, _, err = provider.Register(RegisterRequest{
		Name: "Imposter", Email: "alice@example.com", Password: testPassword,
	})
	req.ErrorIs(err, errors.ErrEmailTaken)
}

func Test_Register_Rejects_Weak_Password(t *testing.T) {
	req := require.New(t)
	provider := newTestProvider(t)

	// Long enough but missing character classes.
	_, _, err := provider.Register(RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "alllowercaseletters",
	})
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func Test_Login_Succeeds_With_Correct_Credentials(t *testing.T) {
	req := require.New(t)
	provider := newTestProvider(t)

	registered, _, err := provider.Register(RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: testPassword,
	})
	req.NoError(err)

	participant, token, err := provider.Login(LoginRequest{
		Email: "alice@example.com", Password: testPassword,
	})
	req.NoError(err)
	req.Equal(registered, participant)
	req.NotEmpty(token)
}

func Test_Login_Failures_Are_Indistinguishable(t *testing.T) {
	req := require.New(t)
	provider := newTestProvider(t)

	_, _, err := provider.Register(RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: testPassword,
	})
	req.NoError(err)

	// Wrong password and unknown account yield the same error.
	_, _, err = provider.Login(LoginRequest{
		Email: "alice@example.com", Password: "Wr0ng$Password!!",
	})
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	_, _, err = provider.Login(LoginRequest{
		Email: "ghost@example.com", Password: testPassword,
	})
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func Test_Authenticate_Rejects_Bad_Tokens(t *testing.T) {
	req := require.New(t)
	provider := newTestProvider(t)

	_, err := provider.Authenticate("not-a-token")
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	// A token signed with another secret is rejected too.
	foreign, err := GenerateToken([]byte("other-secret"), "id", "name", time.Hour)
	req.NoError(err)
	_, err = provider.Authenticate(foreign)
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func Test_UpdateProfile_Changes_Display_Fields(t *testing.T) {
	req := require.New(t)
	provider := newTestProvider(t)

	participant, token, err := provider.Register(RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: testPassword,
	})
	req.NoError(err)

	updated, err := provider.UpdateProfile(participant.ID, "Alice Cooper", "https://example.com/a.png")
	req.NoError(err)
	req.Equal("Alice Cooper", updated.Name)

	// An existing session resolves to the refreshed profile.
	resolved, err := provider.Authenticate(token)
	req.NoError(err)
	req.Equal(updated, resolved)
}
