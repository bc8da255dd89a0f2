package auth

import (
	"bytes"
	"context"

	"github.com/chuxmalux/vaultd/internal/authtable"
)

// TableProvider authenticates "username\x00password" tokens against an
// internal/authtable.Table. It is the default provider every deployment
// needs before any other AuthProvider (an LDAP bind, a one-time code) is
// considered.
type TableProvider struct {
	table  *authtable.Table
	verify authtable.VerifyFunc
}

// NewTableProvider builds a TableProvider backed by table. A nil verify
// defaults to authtable.Verify, which dispatches per entry between
// DefaultHash and BcryptHash digests, so a table populated by either (or
// both, entry by entry) authenticates correctly.
func NewTableProvider(table *authtable.Table, verify authtable.VerifyFunc) *TableProvider {
	if verify == nil {
		verify = authtable.Verify
	}
	return &TableProvider{table: table, verify: verify}
}

// CanHandle reports whether token is framed as "username\x00password".
func (p *TableProvider) CanHandle(token []byte) bool {
	return bytes.IndexByte(token, 0) >= 0
}

// Authenticate looks username up in the auth table and compares the hash of
// the presented password against the stored one.
func (p *TableProvider) Authenticate(ctx context.Context, token []byte) (*AuthResult, error) {
	idx := bytes.IndexByte(token, 0)
	if idx < 0 {
		return nil, ErrInvalidCredentials
	}
	username := string(token[:idx])
	password := token[idx+1:]

	entry, err := p.table.Lookup(username)
	if err != nil {
		return nil, ErrAuthFailed
	}
	if !p.verify(password, entry.PasswordHash) {
		return nil, ErrAuthFailed
	}

	return &AuthResult{
		Identity: Identity{
			Username:    entry.Username,
			Permissions: entry.Permissions,
			Attributes:  map[string]string{"source": "authtable"},
		},
		Authenticated: true,
		Provider:      p.Name(),
	}, nil
}

// Name implements AuthProvider.
func (p *TableProvider) Name() string { return "authtable" }
