// Package domain defines the core domain models for kvwait.
//
// Domain models are pure values without IO dependencies:
//
//   - Credential: registered username with its Argon2id password hash
//   - Errors: coded domain errors shared by the server and the CLI
package domain
