// Package models defines the core domain models for chorecoins.
//
// # Models
//
//   - Chore: a recurring task assigned to a child with a monetary reward
//   - Child: a child profile with its balance and chore list
//   - Profile: the signed-in parent's display info
//   - Session: an authenticated session (user id + bearer token)
//   - ToggleResult: the authoritative outcome of flipping a chore's completion
//
// # Design Principles
//
//  1. Relationships use ID strings instead of pointers to avoid circular
//     references.
//  2. The balance on a Child is never computed locally; it always carries the
//     value most recently returned by the backend (toggle result, redemption,
//     or full reload).
//  3. Timestamps are Unix seconds to keep the models storage-agnostic.
package models
