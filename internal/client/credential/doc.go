// Package credential persists the session credential across process runs.
//
// A Store holds exactly one named slot. Backends:
//
//   - FileStore: an AEAD-sealed file under the user's config directory (default)
//   - BadgerStore: a key in an embedded Badger database
//   - MemoryStore: process-local, for tests and --ephemeral mode
//
// Stores never validate what they hold; the controller decides what a
// credential means.
package credential
