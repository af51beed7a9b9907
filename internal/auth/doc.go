// Package auth authenticates users and authorizes requests for timecard.
//
// # Credential Verification
//
// Verifier checks a username and password against the user directory:
//
//	v := auth.NewVerifier(users, codec)
//	principal, err := v.Authenticate(ctx, username, password)
//
// Failures are *AuthError values carrying a Reason (no such user, bad
// credential, malformed stored credential). Callers must present every
// reason identically to clients; the reason exists for logging only. When
// the username is unknown a dummy credential is still verified so both
// failure paths cost one KDF run.
//
// # Request Gate
//
// Gate.Middleware resolves the caller on every request. A session
// identifier is read from the timecard.sid cookie or, failing that, from a
// bearer JWT whose "sid" claim names the session. The session's user is
// re-read from the directory on every request so role changes and deleted
// accounts take effect immediately. A resolved session has its expiry
// rolled forward.
//
// Handlers read the caller with:
//
//	p := auth.FromContext(r.Context())   // nil when anonymous
//	auth.IsAuthenticated(r.Context())
//	auth.SessionIDFromContext(r.Context())
//
// # Requirements
//
// Routes declare one of Public, Authenticated or AdminOnly and are wrapped
// with Gate.Require. Both unauthenticated and insufficient-role requests are
// answered with 401 and a {"message": ...} body.
//
// # Bearer Tokens
//
// TokenSigner issues HS256 JWTs bound to an existing session. Destroying or
// regenerating the session invalidates every token issued for it.
package auth
