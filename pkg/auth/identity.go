package auth

// Identity represents an authenticated identity in provider-neutral form.
//
// It mirrors the fields internal/authtable.Entry tracks per user, so the
// default provider can populate it directly from a table lookup; other
// providers fill in what they have and leave the rest zero.
type Identity struct {
	// Username is the authenticated username, if resolved.
	// Empty for anonymous access.
	Username string

	// Permissions is the permission bitmask granted to this identity,
	// as stored in internal/authtable.Entry.
	Permissions uint8

	// Anonymous indicates this is an unauthenticated or guest identity.
	// When true, Username is empty and Permissions is 0.
	Anonymous bool

	// Attributes holds extensible provider-specific metadata, e.g.
	// "source" -> "authtable".
	Attributes map[string]string
}
