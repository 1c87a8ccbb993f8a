// Package memory provides the in-memory storage engine for kvwait.
//
// The Store owns three pieces of shared state:
//
//   - entries: key -> opaque byte value
//   - users: username -> credential
//   - the wait registry: condition key -> notification channel
//
// Reads (Get, MultiGet, AuthenticateUser, the check step of GetWhen) share a
// read lock. Writes (Put, MultiPut, RegisterUser) take the exclusive lock and
// wake watchers of every key they write while still holding it.
package memory
