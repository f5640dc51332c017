// Package domain defines the core domain models for glovectl.
//
// Domain models are plain value types without IO dependencies:
//
//   - Credential: bearer access token plus refresh token
//   - Identity: the signed-in user's profile and role set
//   - Envelope: the service's uniform {code, message, data} reply
//   - Errors: classified client errors with display-ready messages
package domain
