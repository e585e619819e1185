// Package middleware exposes HTTP middleware adapters built on top of
// authcore.Engine authentication.
//
// # Guards
//
//   - [RequireAuth] verifies the bearer access token and injects the
//     resulting identity into the request context.
//   - [RequireRole] is RequireAuth plus a role allow-list.
//
// Each guard reads the Authorization header, calls Engine.Authenticate,
// and attaches client IP and User-Agent context for audit records.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Make authorization decisions beyond pass/reject and the role
//     allow-list.
package middleware
