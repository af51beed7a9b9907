// Package session holds server-side session records keyed by opaque identifiers.
//
// # Capability
//
// Store is the whole contract the rest of the application sees:
//
//	id, err := s.Create(ctx, session.Data{UserID: 7})
//	rec, err := s.Get(ctx, id)          // ErrNotFound once destroyed or expired
//	err = s.Touch(ctx, id)              // rolling expiry, no-op when absent
//	newID, err := s.Regenerate(ctx, id) // old id stops resolving
//	err = s.Destroy(ctx, id)            // idempotent
//
// Get never extends expiry. A record whose cookie expiry has passed is
// treated as absent on the next read and evicted.
//
// # Backends
//
//   - MemoryStore: process-local map. Sessions do not survive a restart.
//   - RedisStore: JSON records in Redis with a native key expiry, for
//     deployments running more than one process.
//
// Both serialize create, destroy and regenerate on the same identifier.
// Operations on different identifiers do not block each other beyond the
// store's own short critical sections.
//
// # Identifiers
//
// Identifiers are 32 bytes from crypto/rand, base64url encoded. They are
// the only thing a client ever holds.
package session
