package domain

import "net/url"

// Participant is the externally-owned identity of a chat user.
// The engine stores only a reference (ID) plus cached display snapshots
// inside mirrors; the identity provider remains the source of truth.
type Participant struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// DisplayName falls back to a generic label for profiles created
// without a name.
func (p Participant) DisplayName() string {
	if p.Name == "" {
		return "User"
	}
	return p.Name
}

// AvatarOrFallback resolves an empty avatar to a deterministic
// placeholder seeded by the display name.
func (p Participant) AvatarOrFallback() string {
	if p.AvatarURL != "" {
		return p.AvatarURL
	}
	seed := p.Name
	if seed == "" {
		seed = p.ID
	}
	return "https://api.dicebear.com/9.x/thumbs/svg?seed=" + url.QueryEscape(seed)
}
