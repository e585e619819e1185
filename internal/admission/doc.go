// Package admission implements the per-route, per-identity request throttle
// that runs before any authentication business logic.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Every
// request consumes budget whether or not it later succeeds; the window
// resets abruptly at expiry rather than sliding. Keys are
// prefix:route:identity.
//
// # What this package must NOT do
//
//   - Implement account-level lockout (that lives in the engine and
//     survives process restarts via the credential store).
//   - Be imported outside the authcore module.
package admission
