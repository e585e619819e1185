// Package authcore is the authentication and session security core for the
// CampusKit school-administration platform: registration and email
// verification, password login with brute-force lockout, short-lived access
// and refresh token issuance, logout via a bounded revocation cache,
// password-reset workflows, per-endpoint admission control, and an
// append-only security audit stream.
//
// The package is a library, not a service. HTTP routing, dashboards, and
// email delivery are collaborators: callers supply a [CredentialStore] for
// durable account state and a [Notifier] for outbound mail, and mount the
// representative HTTP surface from the httpapi sub-package if they want one.
//
// Engine methods are safe for concurrent use after initialization through
// [Builder.Build]. The only cross-request in-process state is the revocation
// cache; everything else is a function of the credential store and the clock.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the external contracts ([CredentialStore], [Notifier], [AuditSink]) and
// value types. Admission-control plumbing lives under internal/ and is never
// exported.
//
// # What this package must NOT do
//
//   - Implement persistence or email transport (external contracts only).
//   - Block an authentication operation on notification delivery or audit
//     sink backpressure.
//   - Reveal through any error whether an email address is registered.
package authcore
