// Package httpapi mounts the authentication engine on a chi router.
//
// Every response uses the same JSON envelope:
//
//	{"status": "success"|"error", "message": "...", "data": {...}}
//
// Engine error categories map to status codes via errors.Is: validation
// 400, authentication 401, conflict 409, rate limit 429 (with Retry-After).
// Everything else is a generic 500 so persistence details never leak.
package httpapi
