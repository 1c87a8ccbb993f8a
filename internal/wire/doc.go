// Package wire implements the kvwait binary frame codec.
//
// Every request starts with a one-byte command code followed by the
// command's payload. All integers are big-endian. A string is a uint16
// length followed by that many bytes; a byte payload is an int32 length
// followed by raw bytes; a bool is a single byte where any nonzero value
// is true. The server answers each command with exactly one response frame,
// except EXIT which closes the connection silently.
package wire
