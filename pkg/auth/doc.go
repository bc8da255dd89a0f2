// Package auth provides centralized authentication abstractions for vaultd.
//
// This package defines the core types and interfaces for authentication:
//
//   - AuthProvider: Pluggable authentication mechanism
//   - Authenticator: Chains AuthProviders, tries each in order
//   - AuthResult: Authentication outcome with Identity
//   - Identity: Protocol-neutral authenticated identity
//
// The concrete username/password-hash/permission table lives in
// internal/authtable; this package is the pluggable layer in front of it,
// letting a deployment swap in alternate credential checks without touching
// the dispatch loop.
package auth
