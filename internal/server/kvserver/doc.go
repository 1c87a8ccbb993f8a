// Package kvserver serves the kvwait binary protocol over TCP.
//
// Every accepted connection first waits for a session slot from the
// admission controller, then runs a per-connection state machine:
// unauthenticated until a successful LOGIN, authenticated afterwards,
// closed on EXIT, on any framing error or on I/O failure. Data commands
// sent before LOGIN are decoded in full and answered with the command's
// negative response so the stream stays framed.
//
// A connection blocked in admission or in GETWHEN is watched for hang-up;
// when the peer goes away the wait is cancelled and its slot released.
package kvserver
